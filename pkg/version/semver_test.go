package version

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want SemVer
		str  string
	}{
		{"1.2.3", SemVer{Major: 1, Minor: 2, Patch: 3}, "v1.2.3"},
		{" v2.0.1 ", SemVer{Major: 2, Patch: 1}, "v2.0.1"},
		{"v1.0.0-rc.1+exp.sha", SemVer{Major: 1, PreRelease: "rc.1", Build: "exp.sha"}, "v1.0.0-rc.1+exp.sha"},
		{"0.9.0-alpha.0a", SemVer{Minor: 9, PreRelease: "alpha.0a"}, "v0.9.0-alpha.0a"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.String() != tt.str {
			t.Errorf("Parse(%q).String() = %q, want %q", tt.in, got.String(), tt.str)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "dev", "1", "v1.0", "1.0.0.0", "01.0.0", "1.0.0-01", "1.0.0-rc..1"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}
