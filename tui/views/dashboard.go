package views

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type dashboardDataMsg struct {
	stats db.RunStats
	runs  []db.FetchRun
}

type logTailMsg struct {
	lines        []string
	modTime      time.Time
	daemonActive bool
}

type Dashboard struct {
	db            *db.Client
	width, height int
	stats         db.RunStats
	runs          []db.FetchRun
	logLines      []string
	logPath       string
	logScroll     int       // 0 = newest
	logViewport   int       // visible lines
	logBuffer     int       // total lines to keep
	logModTime    time.Time // last modification time of log file
	daemonActive  bool
}

func NewDashboard(dbClient *db.Client, logPath string) Dashboard {
	if logPath == "" {
		logPath = "rentscout.log"
	}
	return Dashboard{
		db:          dbClient,
		logPath:     logPath,
		logViewport: 20,
		logBuffer:   200,
	}
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.Refresh(), d.RefreshLog())
}

func (d Dashboard) Refresh() tea.Cmd {
	return func() tea.Msg {
		stats, _ := d.db.GetRunStats()
		runs, _ := d.db.GetRecentRuns(10)
		return dashboardDataMsg{stats, runs}
	}
}

func (d Dashboard) RefreshLog() tea.Cmd {
	return func() tea.Msg {
		lines, modTime := readLastLines(d.logPath, d.logBuffer)
		return logTailMsg{lines, modTime, isDaemonActive(modTime)}
	}
}

// isDaemonActive asks systemd first and falls back to log freshness when
// the daemon is not running as a unit.
func isDaemonActive(logModTime time.Time) bool {
	out, err := exec.Command("systemctl", "is-active", "rentscout").Output()
	if err == nil {
		return strings.TrimSpace(string(out)) == "active"
	}
	return !logModTime.IsZero() && time.Since(logModTime) < 5*time.Minute
}

func readLastLines(path string, n int) ([]string, time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	modTime := info.ModTime()

	f, err := os.Open(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	defer f.Close()

	var allLines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	if len(allLines) == 0 {
		return []string{"(empty log)"}, modTime
	}

	start := len(allLines) - n
	if start < 0 {
		start = 0
	}
	return allLines[start:], modTime
}

func (d Dashboard) SetSize(w, h int) Dashboard {
	d.width = w
	d.height = h
	if h > 30 {
		d.logViewport = h - 22
	}
	return d
}

func (d Dashboard) Update(msg tea.Msg) (Dashboard, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.stats = msg.stats
		d.runs = msg.runs
	case logTailMsg:
		d.logLines = msg.lines
		d.logModTime = msg.modTime
		d.daemonActive = msg.daemonActive
	case tea.KeyMsg:
		maxScroll := len(d.logLines) - d.logViewport
		if maxScroll < 0 {
			maxScroll = 0
		}
		switch msg.String() {
		case "up", "k":
			d.logScroll = min(d.logScroll+1, maxScroll)
		case "down", "j":
			d.logScroll = max(d.logScroll-1, 0)
		case "pgup":
			d.logScroll = min(d.logScroll+10, maxScroll)
		case "pgdown":
			d.logScroll = max(d.logScroll-10, 0)
		case "home":
			d.logScroll = maxScroll
		case "end":
			d.logScroll = 0
		}
	}
	return d, nil
}

func (d Dashboard) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Dashboard"),
		d.renderStatCards(),
		"",
		styles.Title.Render("Recent Fetches"),
		d.renderRunsTable(),
		"",
		d.renderLogTail(),
	)
}

func (d Dashboard) renderStatCards() string {
	last := "never"
	if d.stats.LastRunAt != nil {
		last = relativeTime(*d.stats.LastRunAt)
	}

	successRate := "—"
	if d.stats.TotalRuns > 0 {
		successRate = fmt.Sprintf("%.0f%%", float64(d.stats.OKRuns)*100/float64(d.stats.TotalRuns))
	}

	cards := []string{
		d.renderStatCard("Listings", fmt.Sprintf("%d", d.stats.LastLoaded)),
		d.renderStatCard("Fetches", fmt.Sprintf("%d", d.stats.TotalRuns)),
		d.renderStatCard("Live OK", successRate),
		d.renderStatCard("Fallbacks", fmt.Sprintf("%d", d.stats.FallbackRuns)),
		d.renderStatCard("Avg time", fmt.Sprintf("%dms", d.stats.AvgDurationMs)),
		d.renderStatCard("Last", last),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (d Dashboard) renderStatCard(label, value string) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		styles.StatValue.Render(value),
		styles.StatLabel.Render(label),
	)
	return styles.CardBorder.Width(14).Render(content)
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "ok":
		return styles.StatusSuccess
	case "failed":
		return styles.StatusError
	case "fallback", "running":
		return styles.StatusPending
	}
	return styles.Muted
}

func (d Dashboard) renderRunsTable() string {
	if len(d.runs) == 0 {
		return styles.Muted.Render("No fetches yet")
	}

	header := fmt.Sprintf("%-9s %-9s %-10s %4s %7s %7s %7s %6s",
		"Started", "Store", "Status", "Try", "Fetched", "Dropped", "Loaded", "Took")
	rows := styles.TableHeader.Render(header) + "\n"

	for _, r := range d.runs {
		took := "—"
		if r.FinishedAt != nil {
			took = fmt.Sprintf("%dms", r.FinishedAt.Sub(r.StartedAt).Milliseconds())
		}

		row := fmt.Sprintf("%-9s %-9s %s %4d %7d %7d %7d %6s",
			r.StartedAt.Local().Format("15:04:05"),
			truncate(r.Store, 9),
			statusStyle(r.Status).Render(fmt.Sprintf("%-10s", r.Status)),
			r.Attempts,
			r.RecordsFetched,
			r.RecordsDropped,
			r.ListingsLoaded,
			took,
		)
		if r.ErrorMessage != "" {
			row += "  " + styles.StatusError.Render(truncate(r.ErrorMessage, d.width-75))
		}
		rows += row + "\n"
	}
	return rows
}

func (d Dashboard) renderLogTail() string {
	if len(d.logLines) == 0 {
		content := styles.Muted.Render("(waiting for logs...)")
		return styles.LogBox.Width(d.width - 4).Render(content)
	}

	total := len(d.logLines)
	endIdx := total - d.logScroll
	startIdx := endIdx - d.logViewport
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > total {
		endIdx = total
	}

	maxLineWidth := d.width - 8
	var lines []string
	for _, line := range d.logLines[startIdx:endIdx] {
		lines = append(lines, styleLogLine(truncate(line, maxLineWidth)))
	}

	var scrollInfo string
	switch {
	case !d.daemonActive:
		scrollInfo = styles.StatusError.Render(" ● STOPPED ")
	case d.logScroll > 0:
		scrollInfo = styles.StatusPending.Render(fmt.Sprintf(" ↑%d ", d.logScroll))
	default:
		scrollInfo = styles.StatusSuccess.Render(" ● LIVE ")
	}

	header := styles.Title.Render("Live Log") + scrollInfo +
		styles.Muted.Render(fmt.Sprintf("[%d-%d/%d]", startIdx+1, endIdx, total))

	return styles.LogBox.Width(d.width - 4).Render(header + "\n" + strings.Join(lines, "\n"))
}

func styleLogLine(line string) string {
	// console format starts with an RFC3339 timestamp
	ts, rest := "", line
	if i := strings.IndexByte(line, ' '); i >= 20 && line[4] == '-' && line[10] == 'T' {
		ts, rest = line[:i], line[i:]
	}

	var style lipgloss.Style
	switch logLevelOf(line) {
	case "ERROR":
		style = styles.StatusError
	case "WARN":
		style = styles.StatusPending
	case "DEBUG":
		style = styles.Muted
	default:
		style = styles.LogInfo
	}

	if ts == "" {
		return style.Render(rest)
	}
	return styles.LogTimestamp.Render(ts) + style.Render(rest)
}
