// Package durationspec parses leave duration tokens such as "3d" or "2w".
// A bare integer is interpreted as days.
package durationspec

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var tokenRe = regexp.MustCompile(`(?i)^(\d+)([dw])$`)

const (
	Day  = 24 * time.Hour
	Week = 7 * Day

	// maxDays bounds any parsed span. time.Duration overflows just past
	// 106751 days; anything near that is nonsense input anyway.
	maxDays = 100 * 365
)

// Parse returns the duration a token describes.
func Parse(token string) (time.Duration, error) {
	if m := tokenRe.FindStringSubmatch(token); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("duration out of range: %q", token)
		}
		days := n
		if m[2] == "w" || m[2] == "W" {
			days = n * 7
		}
		if n > maxDays || days > maxDays {
			return 0, fmt.Errorf("duration out of range: %q", token)
		}
		return time.Duration(days) * Day, nil
	}
	if n, err := strconv.Atoi(token); err == nil && n >= 0 {
		if n > maxDays {
			return 0, fmt.Errorf("duration out of range: %q", token)
		}
		return time.Duration(n) * Day, nil
	}
	return 0, fmt.Errorf("malformed duration %q: want <n>d, <n>w or a day count", token)
}
