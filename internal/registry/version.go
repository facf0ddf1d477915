// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

var (
	constraintRegex = regexp.MustCompile(`^([~^]|>=|<=|>|<|=)?v?(\d+(?:\.\d+)?(?:\.\d+)?(?:-[0-9A-Za-z\-\.]+)?)$`)
	exactRegex      = regexp.MustCompile(`^v?\d+\.\d+\.\d+(?:-[0-9A-Za-z\-\.]+)?(?:\+[0-9A-Za-z\-\.]+)?$`)
)

// constraint is a single version range. A bare partial version ("1", "1.2")
// matches every version sharing those leading components.
type constraint struct {
	op      string
	version string // canonical "vX.Y.Z[-pre]"
	parts   int    // number of numeric components written
	major   int
	minor   int
	patch   int
}

// IsExactVersion reports whether s names one specific version, so no version
// index lookup is needed.
func IsExactVersion(s string) bool {
	return exactRegex.MatchString(s)
}

// isLatest reports whether s asks for the newest version.
func isLatest(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "*", "latest":
		return true
	}
	return false
}

func parseConstraint(s string) (constraint, error) {
	s = strings.TrimSpace(s)
	m := constraintRegex.FindStringSubmatch(s)
	if m == nil {
		return constraint{}, fmt.Errorf("invalid version constraint %q", s)
	}

	c := constraint{op: m[1]}
	if c.op == "" {
		c.op = "="
	}

	numeric, pre, _ := strings.Cut(m[2], "-")
	nums := strings.Split(numeric, ".")
	c.parts = len(nums)
	vals := [3]int{}
	for i, n := range nums {
		v, err := strconv.Atoi(n)
		if err != nil {
			return constraint{}, fmt.Errorf("invalid version constraint %q: %w", s, err)
		}
		vals[i] = v
	}
	c.major, c.minor, c.patch = vals[0], vals[1], vals[2]
	c.version = fmt.Sprintf("v%d.%d.%d", c.major, c.minor, c.patch)
	if pre != "" {
		c.version += "-" + pre
	}
	return c, nil
}

func (c constraint) matches(version string) bool {
	v := "v" + version
	if !semver.IsValid(v) {
		return false
	}
	// Prereleases only satisfy constraints that name a prerelease themselves.
	if semver.Prerelease(v) != "" && semver.Prerelease(c.version) == "" {
		return false
	}
	cmp := semver.Compare(v, c.version)
	sameMajor := semver.Major(v) == semver.Major(c.version)
	sameMinor := semver.MajorMinor(v) == semver.MajorMinor(c.version)

	switch c.op {
	case "=":
		switch c.parts {
		case 1:
			return sameMajor
		case 2:
			return sameMinor
		default:
			return cmp == 0
		}
	case "^":
		if cmp < 0 {
			return false
		}
		switch {
		case c.major != 0 || c.parts == 1:
			return sameMajor
		case c.minor != 0 || c.parts == 2:
			return sameMinor
		default:
			return sameMinor && semver.Canonical(v) == semver.Canonical(c.version)
		}
	case "~":
		if cmp < 0 {
			return false
		}
		if c.parts == 1 {
			return sameMajor
		}
		return sameMinor
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	default:
		return false
	}
}

// CompareVersions orders two version strings. Valid semantic versions compare
// by precedence and sort above invalid ones; two invalid versions compare
// lexically.
func CompareVersions(a, b string) int {
	va, vb := "v"+a, "v"+b
	okA, okB := semver.IsValid(va), semver.IsValid(vb)
	switch {
	case okA && okB:
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case okA:
		return 1
	case okB:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// SelectVersion picks the greatest version in available that satisfies
// constraint. For an empty, "*" or "latest" constraint, stable releases are
// preferred over prereleases.
func SelectVersion(name string, available []string, constraintStr string) (string, error) {
	if len(available) == 0 {
		return "", &NoVersionMatchError{Package: name, Constraint: constraintStr}
	}

	sorted := append([]string(nil), available...)
	sort.Slice(sorted, func(i, j int) bool { return CompareVersions(sorted[i], sorted[j]) > 0 })

	if isLatest(constraintStr) {
		for _, v := range sorted {
			if semver.IsValid("v"+v) && semver.Prerelease("v"+v) == "" {
				return v, nil
			}
		}
		return sorted[0], nil
	}

	c, err := parseConstraint(constraintStr)
	if err != nil {
		return "", err
	}
	for _, v := range sorted {
		if c.matches(v) {
			return v, nil
		}
	}
	return "", &NoVersionMatchError{Package: name, Constraint: constraintStr, Available: sorted}
}
