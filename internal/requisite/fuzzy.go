// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package requisite

import (
	"regexp"
	"sort"
)

var rangePattern = regexp.MustCompile(`^(.*)<(\d{10})\.\.(\d{10})>(.*)$`)

type fuzzyItem struct {
	pattern   string // "file tn_<lo..hi>.nc ready" (unsharpened) or a literal token (sharpened)
	sharpened bool
	satisfied bool
}

// Fuzzy requisites are patterns of the form "file <glob> ready" where
// glob may contain a range expression "<lo..hi>". A candidate
// postrequisite satisfies a fuzzy prerequisite if it matches the
// pattern; on first match the prerequisite sharpens to the concrete
// matched token (spec §4.2).
type Fuzzy struct {
	owner string
	items []*fuzzyItem
}

// NewFuzzy constructs a fuzzy requisite set for owner from raw pattern strings.
func NewFuzzy(owner string, patterns []string) *Fuzzy {
	f := &Fuzzy{owner: owner}
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		if seen[p] {
			continue
		}
		seen[p] = true
		f.items = append(f.items, &fuzzyItem{pattern: p})
	}
	return f
}

func (f *Fuzzy) Owner() string { return f.owner }

func (f *Fuzzy) find(token string) *fuzzyItem {
	for _, it := range f.items {
		if it.pattern == token {
			return it
		}
	}
	return nil
}

func (f *Fuzzy) Exists(token string) bool { return f.find(token) != nil }

func (f *Fuzzy) Satisfied(token string) bool {
	it := f.find(token)
	return it != nil && it.satisfied
}

func (f *Fuzzy) SetSatisfied(token string) bool {
	it := f.find(token)
	if it == nil {
		return false
	}
	already := it.satisfied
	it.satisfied = true
	return already
}

func (f *Fuzzy) SetAllSatisfied() {
	for _, it := range f.items {
		it.satisfied = true
	}
}

func (f *Fuzzy) AllSatisfied() bool {
	for _, it := range f.items {
		if !it.satisfied {
			return false
		}
	}
	return true
}

func (f *Fuzzy) Snapshot() []string {
	out := make([]string, len(f.items))
	for i, it := range f.items {
		out[i] = it.pattern
	}
	return out
}

func (f *Fuzzy) SatisfiedTokens() []string {
	out := make([]string, 0, len(f.items))
	for _, it := range f.items {
		if it.satisfied {
			out = append(out, it.pattern)
		}
	}
	return out
}

// SatisfyMe mutates f: unsharpened items are matched against other's
// satisfied tokens and, on match, sharpened to the lexicographically
// greatest matching token; already-sharpened items behave like exact
// requisites.
func (f *Fuzzy) SatisfyMe(other Set) {
	satisfied := other.SatisfiedTokens()
	for _, it := range f.items {
		if it.satisfied {
			continue
		}
		if it.sharpened {
			for _, tok := range satisfied {
				if tok == it.pattern {
					it.satisfied = true
					break
				}
			}
			continue
		}
		if match := bestMatch(it.pattern, satisfied); match != "" {
			it.pattern = match
			it.sharpened = true
			it.satisfied = true
		}
	}
}

// WillSatisfyMe reports, without mutating f, whether matching against
// other's satisfied tokens would leave every requisite satisfied.
func (f *Fuzzy) WillSatisfyMe(other Set) bool {
	satisfied := other.SatisfiedTokens()
	for _, it := range f.items {
		if it.satisfied {
			continue
		}
		if it.sharpened {
			found := false
			for _, tok := range satisfied {
				if tok == it.pattern {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if bestMatch(it.pattern, satisfied) == "" {
			return false
		}
	}
	return true
}

// Clone returns an independent copy, preserving sharpened state.
func (f *Fuzzy) Clone() Set {
	clone := &Fuzzy{owner: f.owner}
	for _, it := range f.items {
		clone.items = append(clone.items, &fuzzyItem{
			pattern:   it.pattern,
			sharpened: it.sharpened,
			satisfied: it.satisfied,
		})
	}
	return clone
}

// bestMatch returns the lexicographically greatest candidate matching
// pattern, or "" if none match.
func bestMatch(pattern string, candidates []string) string {
	m := rangePattern.FindStringSubmatch(pattern)
	if m == nil {
		// no range expression: behaves as a literal, unsharpened match
		for _, c := range candidates {
			if c == pattern {
				return c
			}
		}
		return ""
	}
	prefix, lo, hi, suffix := m[1], m[2], m[3], m[4]
	literal := regexp.QuoteMeta(prefix) + `(\d{10})` + regexp.QuoteMeta(suffix)
	re := regexp.MustCompile("^" + literal + "$")

	var matches []string
	for _, c := range candidates {
		sub := re.FindStringSubmatch(c)
		if sub == nil {
			continue
		}
		stamp := sub[1]
		if stamp >= lo && stamp <= hi {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}
