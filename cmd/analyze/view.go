package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/sizeview/sizeview/internal/format"
)

func (m model) View() string {
	var b strings.Builder
	fmt.Fprintln(&b)

	if m.scanning || m.engine == nil {
		m.viewScanning(&b, m.root)
		return b.String()
	}

	v := m.engine.View()
	fmt.Fprintf(&b, "%s  %s  |  Total: %s\n",
		titleStyle.Render("Analyze Disk"),
		pathStyle.Render(shortenPath(displayPath(v.Path), pathMaxWidth)),
		strings.TrimSpace(format.Size(v.Total)))

	if m.rescanning {
		m.viewScanning(&b, v.Path)
		return b.String()
	}
	if v.Warning != nil {
		fmt.Fprintln(&b, warnStyle.Render("! "+firstLine(v.Warning.Error())))
	} else {
		fmt.Fprintln(&b)
	}

	if len(v.Rows) == 0 {
		fmt.Fprintln(&b, "  Empty directory")
	} else {
		end := min(m.offset+m.viewport(), len(v.Rows))
		for idx := m.offset; idx < end; idx++ {
			row := v.Rows[idx]
			name := runewidth.Truncate(row.Label(), nameMaxWidth, "...")
			if idx == v.Selected {
				fmt.Fprintln(&b, selectedStyle.Render(" ▶ "+row.SizeText+row.Bar+name))
				continue
			}
			if row.Dir {
				name = dirStyle.Render(name)
			}
			fmt.Fprintf(&b, "   %s%s%s\n", row.SizeText, row.Bar, name)
		}
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, m.statusLine())
	fmt.Fprint(&b, m.helpLine())
	return b.String()
}

// viewScanning draws the spinner with live progress counters.
func (m model) viewScanning(b *strings.Builder, path string) {
	snap := m.scanner.Progress().Snapshot()
	if m.engine == nil {
		fmt.Fprintf(b, "%s  %s\n", titleStyle.Render("Analyze Disk"), pathStyle.Render(displayPath(path)))
	}
	fmt.Fprintf(b, "\n%s Scanning: %s, %s, %s\n",
		selectedStyle.Render(spinnerFrames[m.spinner]),
		countStyle.Render(formatNumber(snap.Files)+" files"),
		countStyle.Render(formatNumber(snap.Dirs)+" dirs"),
		bytesStyle.Render(strings.TrimSpace(format.Size(uint64(max(snap.Bytes, 0))))))
	if snap.Path != "" {
		fmt.Fprintln(b, pathStyle.Render(shortenPath(displayPath(snap.Path), pathMaxWidth)))
	}
}

func (m model) statusLine() string {
	var parts []string
	if m.status != "" {
		if strings.HasPrefix(m.status, "Rescan failed") {
			parts = append(parts, errorStyle.Render(m.status))
		} else {
			parts = append(parts, m.status)
		}
	}
	if m.warnings > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("%d unreadable", m.warnings)))
	}
	if m.stale {
		parts = append(parts, warnStyle.Render("changed on disk, press r to rescan"))
	}
	return strings.Join(parts, "  |  ")
}

func (m model) helpLine() string {
	bindings := m.keys.help()
	parts := make([]string, 0, len(bindings))
	for _, k := range bindings {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, "  |  "))
}

func displayPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == home || strings.HasPrefix(path, home+string(os.PathSeparator)) {
		return "~" + path[len(home):]
	}
	return path
}

// shortenPath keeps the tail of path within width display cells.
func shortenPath(path string, width int) string {
	if runewidth.StringWidth(path) <= width {
		return path
	}
	runes := []rune(path)
	for len(runes) > 0 && runewidth.StringWidth(string(runes))+3 > width {
		runes = runes[1:]
	}
	return "..." + string(runes)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " (and more)"
	}
	return s
}
