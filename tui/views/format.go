package views

import (
	"fmt"
	"strings"
	"time"
)

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

// formatPrice renders whole euros with dot grouping: 1250 -> "€1.250".
func formatPrice(p float64) string {
	if p <= 0 {
		return "—"
	}
	n := int64(p + 0.5)
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return "€" + b.String()
}

func formatSize(size *float64) string {
	if size == nil || *size <= 0 {
		return "—"
	}
	return fmt.Sprintf("%.0fm²", *size)
}

func formatDistance(km *float64) string {
	if km == nil {
		return "—"
	}
	if *km < 1 {
		return fmt.Sprintf("%.0fm", *km*1000)
	}
	return fmt.Sprintf("%.1fkm", *km)
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 40
	}
	var lines []string
	words := strings.Fields(text)
	var line string
	for _, word := range words {
		if len(line)+len(word)+1 > width {
			lines = append(lines, line)
			line = word
		} else {
			if line != "" {
				line += " "
			}
			line += word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// logLevelOf picks the level out of a daemon log line in either the
// console ("INF", "WRN") or JSON ("level":"warn") format.
func logLevelOf(line string) string {
	switch {
	case strings.Contains(line, " ERR ") || strings.Contains(line, " FTL ") || strings.Contains(line, `"level":"error"`):
		return "ERROR"
	case strings.Contains(line, " WRN ") || strings.Contains(line, `"level":"warn"`):
		return "WARN"
	case strings.Contains(line, " DBG ") || strings.Contains(line, `"level":"debug"`):
		return "DEBUG"
	case strings.Contains(line, " INF ") || strings.Contains(line, `"level":"info"`):
		return "INFO"
	}
	return ""
}
