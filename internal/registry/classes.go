// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"

	"github.com/nzmetsched/cycler/internal/reftime"
	"github.com/nzmetsched/cycler/internal/requisite"
	"github.com/nzmetsched/cycler/internal/task"
)

func downloaderDescriptor() Descriptor {
	const class = "downloader"
	return Descriptor{
		Class:       class,
		ValidHours:  reftime.NewValidHours(0, 6, 12, 18),
		Variant:     task.VariantRunaheadLimited,
		MaxFinished: task.DefaultMaxFinished,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			return requisite.NewExact(token(class, string(refTime)), nil), nil
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			hour, err := hourOf(refTime)
			if err != nil {
				return nil, err
			}
			lbc06, err := reftime.Decrement(refTime, 6)
			if err != nil {
				return nil, err
			}
			lbc12, err := reftime.Decrement(refTime, 12)
			if err != nil {
				return nil, err
			}

			var entries []requisite.TimedEntry
			switch hour {
			case "00":
				entries = []requisite.TimedEntry{
					{OffsetMinutes: 0, Token: class + " started for " + rt},
					{OffsetMinutes: 0.5, Token: "file obstore_" + rt + ".um ready"},
					{OffsetMinutes: 1, Token: "file bgerr" + rt + ".um ready"},
					{OffsetMinutes: 106, Token: "file lbc_" + string(lbc12) + ".um ready"},
					{OffsetMinutes: 122, Token: "file 10mwind_" + rt + ".um ready"},
					{OffsetMinutes: 122.5, Token: "file seaice_" + rt + ".um ready"},
					{OffsetMinutes: 199, Token: "file dump_" + rt + ".um ready"},
					{OffsetMinutes: 200, Token: class + " finished for " + rt},
				}
			case "12":
				entries = []requisite.TimedEntry{
					{OffsetMinutes: 0, Token: class + " started for " + rt},
					{OffsetMinutes: 0.5, Token: "file obstore_" + rt + ".um ready"},
					{OffsetMinutes: 1, Token: "file bgerr" + rt + ".um ready"},
					{OffsetMinutes: 97, Token: "file lbc_" + string(lbc12) + ".um ready"},
					{OffsetMinutes: 98, Token: class + " finished for " + rt},
				}
			case "06", "18":
				entries = []requisite.TimedEntry{
					{OffsetMinutes: 0, Token: class + " started for " + rt},
					{OffsetMinutes: 0, Token: "file lbc_" + string(lbc06) + ".um ready"},
					{OffsetMinutes: 0.5, Token: "file obstore_" + rt + ".um ready"},
					{OffsetMinutes: 1, Token: "file bgerr" + rt + ".um ready"},
					{OffsetMinutes: 2, Token: class + " finished for " + rt},
				}
			default:
				return nil, fmt.Errorf("registry: downloader has no template for hour %s", hour)
			}
			return requisite.NewTimed(token(class, rt), entries), nil
		},
	}
}

func operToTopnetDescriptor() Descriptor {
	const class = "oper_to_topnet"
	return Descriptor{
		Class:       class,
		ValidHours:  reftime.NewValidHours(6, 18),
		Variant:     task.VariantRunaheadLimited,
		MaxFinished: task.DefaultMaxFinished,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			return requisite.NewExact(token(class, string(refTime)), nil), nil
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
				{OffsetMinutes: 0, Token: class + " started for " + rt},
				{OffsetMinutes: 1, Token: "file tn_" + rt + ".nc ready"},
				{OffsetMinutes: 2, Token: class + " finished for " + rt},
			}), nil
		},
	}
}

func nzlamDescriptor() Descriptor {
	const class = "nzlam"
	return Descriptor{
		Class:      class,
		ValidHours: reftime.NewValidHours(0, 6, 12, 18),
		Variant:    task.VariantStandard,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			rt := string(refTime)
			hour, err := hourOf(refTime)
			if err != nil {
				return nil, err
			}
			switch hour {
			case "00", "12":
				lbc12, err := reftime.Decrement(refTime, 12)
				if err != nil {
					return nil, err
				}
				return requisite.NewExact(token(class, rt), []string{
					"file obstore_" + rt + ".um ready",
					"file bgerr" + rt + ".um ready",
					"file lbc_" + string(lbc12) + ".um ready",
				}), nil
			case "06", "18":
				lbc06, err := reftime.Decrement(refTime, 6)
				if err != nil {
					return nil, err
				}
				return requisite.NewExact(token(class, rt), []string{
					"file obstore_" + rt + ".um ready",
					"file bgerr" + rt + ".um ready",
					"file lbc_" + string(lbc06) + ".um ready",
				}), nil
			default:
				return nil, fmt.Errorf("registry: nzlam has no template for hour %s", hour)
			}
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			hour, err := hourOf(refTime)
			if err != nil {
				return nil, err
			}
			switch hour {
			case "00", "12":
				return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
					{OffsetMinutes: 0, Token: class + " started for " + rt},
					{OffsetMinutes: 30, Token: "file sls_" + rt + ".um ready"},
					{OffsetMinutes: 32, Token: class + " finished for " + rt},
				}), nil
			case "06", "18":
				return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
					{OffsetMinutes: 0, Token: class + " started for " + rt},
					{OffsetMinutes: 110, Token: "file tn_" + rt + ".um ready"},
					{OffsetMinutes: 111, Token: "file sls_" + rt + ".um ready"},
					{OffsetMinutes: 112, Token: "file met_" + rt + ".um ready"},
					{OffsetMinutes: 115, Token: class + " finished for " + rt},
				}), nil
			default:
				return nil, fmt.Errorf("registry: nzlam has no template for hour %s", hour)
			}
		},
	}
}

func nzlamPostDescriptor() Descriptor {
	const class = "nzlam_post"
	return Descriptor{
		Class:      class,
		ValidHours: reftime.NewValidHours(0, 6, 12, 18),
		Variant:    task.VariantStandard,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			rt := string(refTime)
			hour, err := hourOf(refTime)
			if err != nil {
				return nil, err
			}
			switch hour {
			case "00", "12":
				return requisite.NewExact(token(class, rt), []string{
					"file sls_" + rt + ".um ready",
				}), nil
			case "06", "18":
				return requisite.NewExact(token(class, rt), []string{
					"file tn_" + rt + ".um ready",
					"file sls_" + rt + ".um ready",
					"file met_" + rt + ".um ready",
				}), nil
			default:
				return nil, fmt.Errorf("registry: nzlam_post has no template for hour %s", hour)
			}
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			hour, err := hourOf(refTime)
			if err != nil {
				return nil, err
			}
			switch hour {
			case "00", "12":
				return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
					{OffsetMinutes: 0, Token: class + " started for " + rt},
					{OffsetMinutes: 10, Token: "file sls_" + rt + ".nc ready"},
					{OffsetMinutes: 11, Token: class + " finished for " + rt},
				}), nil
			case "06", "18":
				return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
					{OffsetMinutes: 0, Token: class + " started for " + rt},
					{OffsetMinutes: 10, Token: "file sls_" + rt + ".nc ready"},
					{OffsetMinutes: 20, Token: "file tn_" + rt + ".nc ready"},
					{OffsetMinutes: 30, Token: "file met_" + rt + ".nc ready"},
					{OffsetMinutes: 31, Token: class + " finished for " + rt},
				}), nil
			default:
				return nil, fmt.Errorf("registry: nzlam_post has no template for hour %s", hour)
			}
		},
	}
}

func globalprepDescriptor() Descriptor {
	const class = "globalprep"
	return Descriptor{
		Class:      class,
		ValidHours: reftime.NewValidHours(0),
		Variant:    task.VariantStandard,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewExact(token(class, rt), []string{
				"file 10mwind_" + rt + ".um ready",
				"file seaice_" + rt + ".um ready",
			}), nil
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
				{OffsetMinutes: 0, Token: class + " started for " + rt},
				{OffsetMinutes: 5, Token: "file 10mwind_" + rt + ".nc ready"},
				{OffsetMinutes: 7, Token: "file seaice_" + rt + ".nc ready"},
				{OffsetMinutes: 10, Token: class + " finished for " + rt},
			}), nil
		},
	}
}

func globalwaveDescriptor() Descriptor {
	const class = "globalwave"
	return Descriptor{
		Class:      class,
		ValidHours: reftime.NewValidHours(0),
		Variant:    task.VariantStandard,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewExact(token(class, rt), []string{
				"file 10mwind_" + rt + ".nc ready",
				"file seaice_" + rt + ".nc ready",
			}), nil
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
				{OffsetMinutes: 0, Token: class + " started for " + rt},
				{OffsetMinutes: 120, Token: "file globalwave_" + rt + ".nc ready"},
				{OffsetMinutes: 121, Token: class + " finished for " + rt},
			}), nil
		},
	}
}

func nzwaveDescriptor() Descriptor {
	const class = "nzwave"
	return Descriptor{
		Class:      class,
		ValidHours: reftime.NewValidHours(0, 6, 12, 18),
		Variant:    task.VariantStandard,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewExact(token(class, rt), []string{
				"file sls_" + rt + ".nc ready",
			}), nil
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
				{OffsetMinutes: 0, Token: class + " started for " + rt},
				{OffsetMinutes: 110, Token: "file nzwave_" + rt + ".nc ready"},
				{OffsetMinutes: 112, Token: class + " finished for " + rt},
			}), nil
		},
	}
}

func ricomDescriptor() Descriptor {
	const class = "ricom"
	return Descriptor{
		Class:      class,
		ValidHours: reftime.NewValidHours(6, 18),
		Variant:    task.VariantStandard,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewExact(token(class, rt), []string{
				"file sls_" + rt + ".nc ready",
			}), nil
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
				{OffsetMinutes: 0, Token: class + " started for " + rt},
				{OffsetMinutes: 30, Token: "file ricom_" + rt + ".nc ready"},
				{OffsetMinutes: 31, Token: class + " finished for " + rt},
			}), nil
		},
	}
}

func mosDescriptor() Descriptor {
	const class = "mos"
	return Descriptor{
		Class:      class,
		ValidHours: reftime.NewValidHours(0, 6, 12, 18),
		Variant:    task.VariantStandard,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			rt := string(refTime)
			hour, err := hourOf(refTime)
			if err != nil {
				return nil, err
			}
			if hour == "06" || hour == "18" {
				return requisite.NewExact(token(class, rt), []string{
					"file met_" + rt + ".nc ready",
				}), nil
			}
			return requisite.NewExact(token(class, rt), nil), nil
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
				{OffsetMinutes: 0, Token: class + " started for " + rt},
				{OffsetMinutes: 5, Token: "file mos_" + rt + ".nc ready"},
				{OffsetMinutes: 6, Token: class + " finished for " + rt},
			}), nil
		},
	}
}

func nztideDescriptor() Descriptor {
	const class = "nztide"
	return Descriptor{
		Class:       class,
		ValidHours:  reftime.NewValidHours(6, 18),
		Variant:     task.VariantRunaheadLimited,
		MaxFinished: task.DefaultMaxFinished,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			return requisite.NewExact(token(class, string(refTime)), nil), nil
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
				{OffsetMinutes: 0, Token: class + " started for " + rt},
				{OffsetMinutes: 1, Token: "file nztide_" + rt + ".nc ready"},
				{OffsetMinutes: 2, Token: class + " finished for " + rt},
			}), nil
		},
	}
}

// topnet's prerequisite cutoff shifts with the process-wide catchup
// mode flag (spec §4.4, §9): 11 hours back while catching up, 23 hours
// back once caught up. Its fuzzy window runs from that cutoff up to one
// hour before ref_time; requisites.py (the original's range/sharpening
// implementation) was not available to transcribe, so the window bound
// is inferred from spec.md's end-to-end sharpening scenario.
func topnetDescriptor() Descriptor {
	const class = "topnet"
	return Descriptor{
		Class:      class,
		ValidHours: reftime.NewValidHours(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23),
		Variant:    task.VariantFuzzyConsumer,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			backHours := 23
			if catchupMode {
				backHours = 11
			}
			cutoff, err := reftime.Decrement(refTime, backHours)
			if err != nil {
				return nil, err
			}
			windowEnd, err := reftime.Decrement(refTime, 1)
			if err != nil {
				return nil, err
			}
			pattern := fmt.Sprintf("file tn_<%s..%s>.nc ready", cutoff, windowEnd)
			return requisite.NewFuzzy(token(class, string(refTime)), []string{pattern}), nil
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
				{OffsetMinutes: 0, Token: "streamflow extraction started for " + rt},
				{OffsetMinutes: 2, Token: "got streamflow data for " + rt},
				{OffsetMinutes: 2.1, Token: "streamflow extraction finished for " + rt},
				{OffsetMinutes: 3, Token: class + " started for " + rt},
				{OffsetMinutes: 4, Token: "file topnet_" + rt + ".nc ready"},
				{OffsetMinutes: 5, Token: class + " finished for " + rt},
			}), nil
		},
	}
}

func nwpglobalDescriptor() Descriptor {
	const class = "nwpglobal"
	return Descriptor{
		Class:      class,
		ValidHours: reftime.NewValidHours(0),
		Variant:    task.VariantStandard,
		BuildPrerequisites: func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewExact(token(class, rt), []string{
				"file 10mwind_" + rt + ".um ready",
			}), nil
		},
		BuildPostrequisites: func(refTime reftime.Stamp) (requisite.Set, error) {
			rt := string(refTime)
			return requisite.NewTimed(token(class, rt), []requisite.TimedEntry{
				{OffsetMinutes: 0, Token: class + " started for " + rt},
				{OffsetMinutes: 120, Token: "file 10mwind_" + rt + ".nc ready"},
				{OffsetMinutes: 121, Token: class + " finished for " + rt},
			}), nil
		},
	}
}
