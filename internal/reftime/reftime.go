// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package reftime implements cycle stamp arithmetic for the cycler
// scheduling core: parsing, incrementing, decrementing, and adjusting
// 10-character YYYYMMDDHH stamps against a task class's valid hours.
package reftime

import (
	"sort"
	"time"

	cyclererrors "github.com/nzmetsched/cycler/pkg/errors"
)

// Layout is the canonical cycle stamp format: YYYYMMDDHH.
const Layout = "2006010215"

// Stamp is a 10-character decimal cycle stamp, e.g. "2011010100".
type Stamp string

// Parse validates a stamp and returns the UTC time it denotes.
func Parse(s Stamp) (time.Time, error) {
	if len(s) != 10 {
		return time.Time{}, cyclererrors.BadStamp(string(s))
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, cyclererrors.BadStamp(string(s))
		}
	}
	t, err := time.ParseInLocation(Layout, string(s), time.UTC)
	if err != nil {
		return time.Time{}, cyclererrors.BadStamp(string(s))
	}
	return t, nil
}

// Format renders a time back to its 10-character cycle stamp.
func Format(t time.Time) Stamp {
	return Stamp(t.UTC().Format(Layout))
}

// Hour returns the two-digit hour-of-day encoded in the stamp, or an
// error if the stamp is malformed.
func Hour(s Stamp) (int, error) {
	t, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return t.Hour(), nil
}

// Increment advances a stamp by the given number of hours (may be negative).
func Increment(s Stamp, hours int) (Stamp, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(t.Add(time.Duration(hours) * time.Hour)), nil
}

// Decrement moves a stamp back by the given number of hours.
func Decrement(s Stamp, hours int) (Stamp, error) {
	return Increment(s, -hours)
}

// ValidHours is a non-empty, sorted, de-duplicated subset of {0..23} at
// which a task class is defined.
type ValidHours []int

// NewValidHours normalises an arbitrary slice of hours into a sorted,
// deduplicated ValidHours set.
func NewValidHours(hours ...int) ValidHours {
	seen := make(map[int]bool, len(hours))
	out := make(ValidHours, 0, len(hours))
	for _, h := range hours {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	sort.Ints(out)
	return out
}

// NearestRefTime returns the smallest stamp >= s whose hour is a member
// of valid, wrapping to the next day via min(valid)+24 if necessary.
// Idempotent: NearestRefTime(NearestRefTime(s, v), v) == NearestRefTime(s, v).
func NearestRefTime(s Stamp, valid ValidHours) (Stamp, error) {
	h, err := Hour(s)
	if err != nil {
		return "", err
	}

	candidates := append(ValidHours{}, valid...)
	candidates = append(candidates, valid[0]+24)

	for _, v := range candidates {
		if v >= h {
			return Increment(s, v-h)
		}
	}
	// unreachable: valid[0]+24 is always >= h for h in [0,23]
	return Increment(s, candidates[len(candidates)-1]-h)
}

// NextRefTime advances a stamp to the next element of valid after its
// current hour, wrapping to the first element +24 when the current hour
// is the last valid hour.
func NextRefTime(s Stamp, valid ValidHours) (Stamp, error) {
	h, err := Hour(s)
	if err != nil {
		return "", err
	}

	idx := sort.SearchInts(valid, h)
	if idx >= len(valid) || valid[idx] != h {
		// current hour isn't itself valid: the next valid hour after it is
		// the nearest one
		return NearestRefTime(s, valid)
	}

	if len(valid) == 1 {
		return Increment(s, 24)
	}

	if idx < len(valid)-1 {
		return Increment(s, valid[idx+1]-valid[idx])
	}
	return Increment(s, valid[0]+24-valid[idx])
}
