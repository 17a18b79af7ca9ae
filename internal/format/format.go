// Package format renders sizes and proportion bars for listing rows.
package format

import (
	"fmt"
	"math"
	"strings"
)

const (
	sizeWidth = 8
	barCells  = 8
)

var units = []string{"", "kB", "MB", "GB", "TB", "PB", "EB"}

// partial cell glyphs, indexed by eighths filled.
var eighths = []string{" ", "▏", "▎", "▍", "▌", "▋", "▊", "▉", "█"}

// Size prettifies a byte count with a 1024 base and pads it to a fixed
// column. Values below 1024 are printed as plain integers.
func Size(bytes uint64) string {
	return pad(humanize(bytes), sizeWidth)
}

func humanize(bytes uint64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d", bytes)
	}
	value := float64(bytes)
	exp := 0
	for value >= 1024 && exp < len(units)-1 {
		value /= 1024
		exp++
	}
	return fmt.Sprintf("%.1f%s", value, units[exp])
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// Bar draws the share of child in parent as a bracketed bar of 8 cells with
// one partial cell glyph.
func Bar(child, parent uint64) string {
	fraction := 0.0
	if parent > 0 {
		fraction = math.Min(float64(child)/float64(parent), 1)
	}
	filled := fraction * barCells
	full := int(math.Floor(filled))

	var b strings.Builder
	b.WriteString(" [")
	b.WriteString(strings.Repeat("█", full))
	cells := full
	if full < barCells {
		idx := int(math.Round((filled - float64(full)) * 8))
		b.WriteString(eighths[min(max(idx, 0), 8)])
		cells++
	}
	b.WriteString(strings.Repeat(" ", barCells-cells))
	b.WriteString("] ")
	return b.String()
}
