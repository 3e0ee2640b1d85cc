package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"tui/db"
	"tui/feed"
	"tui/styles"
	"tui/views"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
)

type tab int

const (
	tabDashboard tab = iota
	tabListings
	tabLogs
)

type model struct {
	db            *db.Client
	feed          *feed.Client
	activeTab     tab
	width, height int
	notification  string
	notifyUntil   time.Time

	areas     []feed.Area
	areaIndex int

	dashboard views.Dashboard
	listings  views.Listings
	logs      views.Logs
}

type tickMsg time.Time
type logTickMsg time.Time
type areasMsg []feed.Area

func initialModel(dbClient *db.Client, feedClient *feed.Client, logPath string) model {
	return model{
		db:        dbClient,
		feed:      feedClient,
		activeTab: tabDashboard,
		areaIndex: -1,
		dashboard: views.NewDashboard(dbClient, logPath),
		listings:  views.NewListings(feedClient),
		logs:      views.NewLogs(dbClient),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.Init(),
		m.listings.Init(),
		m.logs.Init(),
		m.loadAreas(),
		tickCmd(),
		logTickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func logTickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return logTickMsg(t)
	})
}

func (m model) loadAreas() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		areas, _ := m.feed.Areas(ctx)
		return areasMsg(areas)
	}
}

func (m *model) notify(text string) {
	m.notification = text
	m.notifyUntil = time.Now().Add(2 * time.Second)
}

// command sends a queued command and reports the outcome in the status bar.
func (m *model) command(sent string, send func() error) {
	if err := send(); err != nil {
		m.notify("Command failed: " + err.Error())
		return
	}
	m.notify(sent)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "d":
			m.activeTab = tabDashboard
		case "v":
			m.activeTab = tabListings
		case "l":
			m.activeTab = tabLogs
		case "tab":
			m.activeTab = (m.activeTab + 1) % 3
		case "r":
			m.notify("Refreshed")
			return m, m.refreshActive()
		case "f":
			m.command("Refetch command sent!", m.db.Refetch)
		case "p":
			m.command("Scheduler paused", m.db.Pause)
		case "u":
			m.command("Scheduler resumed", m.db.Resume)
		case "a":
			if len(m.areas) == 0 {
				m.notify("No area presets")
				break
			}
			m.areaIndex = (m.areaIndex + 1) % len(m.areas)
			area := m.areas[m.areaIndex]
			m.command("Area: "+area.Name, func() error { return m.db.SelectArea(area.ID) })
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.dashboard = m.dashboard.SetSize(msg.Width, msg.Height-4)
		m.listings = m.listings.SetSize(msg.Width, msg.Height-4)
		m.logs = m.logs.SetSize(msg.Width, msg.Height-4)

	case areasMsg:
		m.areas = msg

	case tickMsg:
		cmds = append(cmds, m.refreshActive(), tickCmd())

	case logTickMsg:
		cmds = append(cmds, m.dashboard.RefreshLog(), logTickCmd())
	}

	// Keys go to the active tab, everything else to all views.
	var cmd tea.Cmd
	switch msg.(type) {
	case tea.KeyMsg:
		switch m.activeTab {
		case tabDashboard:
			m.dashboard, cmd = m.dashboard.Update(msg)
		case tabListings:
			m.listings, cmd = m.listings.Update(msg)
		case tabLogs:
			m.logs, cmd = m.logs.Update(msg)
		}
		cmds = append(cmds, cmd)
	default:
		m.dashboard, cmd = m.dashboard.Update(msg)
		cmds = append(cmds, cmd)
		m.listings, cmd = m.listings.Update(msg)
		cmds = append(cmds, cmd)
		m.logs, cmd = m.logs.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) refreshActive() tea.Cmd {
	switch m.activeTab {
	case tabDashboard:
		return m.dashboard.Refresh()
	case tabListings:
		return m.listings.Refresh()
	case tabLogs:
		return m.logs.Refresh()
	}
	return nil
}

func (m model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		m.renderContent(),
		m.renderStatusBar(),
	)
}

func (m model) renderTabs() string {
	tabNames := []string{"Dashboard", "Listings", "Logs"}
	var rendered []string
	for i, name := range tabNames {
		if tab(i) == m.activeTab {
			rendered = append(rendered, styles.TabActive.Render(name))
		} else {
			rendered = append(rendered, styles.TabInactive.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func (m model) renderContent() string {
	switch m.activeTab {
	case tabDashboard:
		return m.dashboard.View()
	case tabListings:
		return m.listings.View()
	case tabLogs:
		return m.logs.View()
	}
	return ""
}

func (m model) renderStatusBar() string {
	left := "d Dash  v Listings  l Log  r Refresh  f Refetch  p Pause  u Resume  a Area  q Quit"
	right := ""
	if time.Now().Before(m.notifyUntil) {
		right = styles.Notification.Render(m.notification)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 0 {
		gap = 0
	}

	return styles.StatusBar.Render(left) + lipgloss.NewStyle().Width(gap).Render("") + right
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func main() {
	_ = godotenv.Load()

	sqlitePath := getEnv("DB_PATH", "rentscout.db")
	logPath := getEnv("LOG_PATH", "rentscout.log")
	httpAddr := getEnv("HTTP_ADDR", ":8080")

	dbClient, err := db.New(sqlitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	p := tea.NewProgram(
		initialModel(dbClient, feed.NewClient(httpAddr), logPath),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
