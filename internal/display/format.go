// Package display holds console formatting helpers shared by the
// pipeline summary and log lines.
package display

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes returns a human-readable IEC size ("700 MiB", "4.7 GiB").
func FormatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// FormatBytesWithSign prefixes with + or - for delta display (e.g. "- 1.2 GiB").
func FormatBytesWithSign(n int64) string {
	sign := ""
	if n > 0 {
		sign = "+ "
	} else if n < 0 {
		sign = "- "
		n = -n
	}
	return sign + FormatBytes(n)
}

// FormatCount renders large counts with thousands separators.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatDuration trims a duration to a readable precision: sub-second
// values keep milliseconds, longer ones drop them.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
