package cli

import (
	"fmt"
	"math"
	"time"
)

// FormatSize formats a byte count in kilobytes with one decimal ("12.3KB").
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.1fKB", float64(bytes)/1024)
}

// FormatSeconds formats a duration as seconds with two decimals ("1.25").
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}

// FormatSavings formats a savings percentage with its sign: a reduction is
// shown as "-42.10%", no reduction or growth as "+0.00%" or "+12.50%".
func FormatSavings(percent float64) string {
	if percent > 0 {
		return fmt.Sprintf("-%.2f%%", percent)
	}
	return fmt.Sprintf("+%.2f%%", math.Abs(percent))
}
