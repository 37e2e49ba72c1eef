// Package sizes converts between human-readable byte sizes ("1.5 MB") and byte counts.
package sizes

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Unknown is the display value used when a size cannot be determined.
const Unknown = "Unknown"

var sizePattern = regexp.MustCompile(`(?i)^([\d.]+)\s*([KMGT]?B?)`)

var multipliers = map[string]int64{
	"B": 1,
	"K": 1 << 10,
	"M": 1 << 20,
	"G": 1 << 30,
	"T": 1 << 40,
}

var units = []string{"B", "KB", "MB", "GB", "TB"}

// Parse returns the number of bytes described by text. Zero means the size
// is not determinable, not that the file is empty.
func Parse(text string) int64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if cleaned == "" || strings.EqualFold(cleaned, Unknown) {
		return 0
	}

	match := sizePattern.FindStringSubmatch(cleaned)
	if match == nil {
		return 0
	}

	magnitude, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}

	unit := "B"
	if match[2] != "" {
		unit = strings.ToUpper(match[2][:1])
	}

	// Sizes beyond int64 are reported as unknown rather than wrapping.
	bytes := magnitude * float64(multipliers[unit])
	if math.IsNaN(bytes) || bytes >= math.MaxInt64 {
		return 0
	}
	return int64(bytes)
}

// Format renders bytes with two decimals in the largest unit that keeps the
// value below 1024. TB absorbs anything larger.
func Format(bytes int64) string {
	size := float64(bytes)
	for index, unit := range units {
		if size < 1024 || index == len(units)-1 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return ""
}

// Display returns the formatted size, or raw when the size is unknown.
func Display(bytes int64, raw string) string {
	if bytes > 0 {
		return Format(bytes)
	}
	if strings.TrimSpace(raw) == "" {
		return Unknown
	}
	return raw
}
