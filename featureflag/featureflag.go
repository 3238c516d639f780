// Package featureflag turns server features off from configuration.
package featureflag

import (
	"slices"
	"strings"
)

// FeatureFlag is the set of flags a server runs with. A nil FeatureFlag has
// no flag set.
type FeatureFlag map[Flag]struct{}

// New returns the feature flags named in flags. Names are trimmed and
// upper cased; empty names are ignored.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
			featureFlag[Flag(f)] = struct{}{}
		}
	}
	return featureFlag
}

// IsSet reports whether flag is set.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs do when flag is set.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		do()
	}
}

// IfNotSet runs do when flag is not set.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		do()
	}
}

// Unknown returns the sorted flags that no feature checks.
func (f FeatureFlag) Unknown() []Flag {
	var unknown []Flag
	for flag := range f {
		if !slices.Contains(knownFlags, flag) {
			unknown = append(unknown, flag)
		}
	}
	slices.Sort(unknown)
	return unknown
}
