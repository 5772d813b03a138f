package durationspec

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := []struct {
		token string
		want  time.Duration
	}{
		{"1d", Day},
		{"7d", 7 * Day},
		{"0d", 0},
		{"2w", 2 * Week},
		{"1W", Week},
		{"14D", 14 * Day},
		{"14", 14 * Day},
		{"0", 0},
	}
	for _, tc := range cases {
		got, err := Parse(tc.token)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.token, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestParseRejectsMalformedTokens(t *testing.T) {
	for _, token := range []string{"", "soon", "7h", "-3d", "d", "3dd", "1.5w", "3 d"} {
		if _, err := Parse(token); err == nil {
			t.Errorf("Parse(%q): expected error", token)
		}
	}
}

func TestParseBoundsOversizedSpans(t *testing.T) {
	// Past the bound a Duration would overflow and go negative, which
	// would slip under any later cap comparison.
	for _, token := range []string{"200000d", "40000w", "200000", "9223372036854775807d"} {
		got, err := Parse(token)
		if err == nil {
			t.Errorf("Parse(%q) = %v, expected out-of-range error", token, got)
		}
	}
	if _, err := Parse("36500d"); err != nil {
		t.Errorf("Parse at the bound: %v", err)
	}
}
