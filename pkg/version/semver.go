package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var releasePattern = regexp.MustCompile(`^v?(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

// SemVer is a release tag such as v1.4.0 or v2.0.0-rc.1+build.7.
type SemVer struct {
	Major, Minor, Patch int64
	PreRelease          string
	Build               string
}

// Parse reads a semantic version with an optional leading "v".
func Parse(raw string) (SemVer, error) {
	m := releasePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return SemVer{}, fmt.Errorf("%q is not a semantic version", raw)
	}

	var v SemVer
	for i, dst := range []*int64{&v.Major, &v.Minor, &v.Patch} {
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return SemVer{}, fmt.Errorf("%q is not a semantic version: %w", raw, err)
		}
		*dst = n
	}
	v.PreRelease, v.Build = m[4], m[5]

	// Numeric pre-release identifiers must not carry leading zeros.
	for _, id := range strings.Split(v.PreRelease, ".") {
		if len(id) > 1 && id[0] == '0' && strings.Trim(id, "0123456789") == "" {
			return SemVer{}, fmt.Errorf("%q is not a semantic version: pre-release %q has a leading zero", raw, id)
		}
	}
	return v, nil
}

// IsPreRelease reports whether v carries a pre-release suffix.
func (v SemVer) IsPreRelease() bool {
	return v.PreRelease != ""
}

// String renders v with a leading "v".
func (v SemVer) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "v%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		b.WriteString("-" + v.PreRelease)
	}
	if v.Build != "" {
		b.WriteString("+" + v.Build)
	}
	return b.String()
}
