// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the static table of known task classes: their
// valid hours, dispatch variant, and the prerequisite/postrequisite
// templates a scheduler instantiates per ref_time (spec §4.4).
package registry

import (
	"fmt"

	"github.com/nzmetsched/cycler/internal/reftime"
	"github.com/nzmetsched/cycler/internal/requisite"
	"github.com/nzmetsched/cycler/internal/task"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Descriptor is the static definition of one task class.
type Descriptor struct {
	Class       string
	ValidHours  reftime.ValidHours
	Variant     task.Variant
	MaxFinished int

	// BuildPrerequisites constructs a fresh prerequisite set for an
	// instance of this class at refTime. catchupMode only affects
	// topnet's cutoff window; every other class ignores it.
	BuildPrerequisites func(refTime reftime.Stamp, catchupMode bool) (requisite.Set, error)

	// BuildPostrequisites constructs a fresh postrequisite set for an
	// instance of this class at refTime.
	BuildPostrequisites func(refTime reftime.Stamp) (requisite.Set, error)
}

var normalizer = cases.Lower(language.Und)

var classes map[string]Descriptor

func init() {
	classes = map[string]Descriptor{
		"downloader":      downloaderDescriptor(),
		"oper_to_topnet":  operToTopnetDescriptor(),
		"nzlam":           nzlamDescriptor(),
		"nzlam_post":      nzlamPostDescriptor(),
		"globalprep":      globalprepDescriptor(),
		"globalwave":      globalwaveDescriptor(),
		"nzwave":          nzwaveDescriptor(),
		"ricom":           ricomDescriptor(),
		"mos":             mosDescriptor(),
		"nztide":          nztideDescriptor(),
		"topnet":          topnetDescriptor(),
		"nwpglobal":       nwpglobalDescriptor(),
	}
}

// Lookup resolves a (possibly differently-cased) class token to its
// Descriptor. Class tokens arrive from free-form suite configuration,
// so "NZLAM" and "nzlam" must resolve to the same entry.
func Lookup(class string) (Descriptor, error) {
	d, ok := classes[normalizer.String(class)]
	if !ok {
		return Descriptor{}, fmt.Errorf("registry: unknown task class %q", class)
	}
	return d, nil
}

// Classes returns every registered class name, for suite-wide seeding.
func Classes() []string {
	out := make([]string, 0, len(classes))
	for name := range classes {
		out = append(out, name)
	}
	return out
}

func hourOf(refTime reftime.Stamp) (string, error) {
	h, err := reftime.Hour(refTime)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d", h), nil
}

func token(class, refTime string) string { return class + "%" + refTime }
