package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tui/feed"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type feedMsg struct {
	feed *feed.Feed
	err  error
}

type Listings struct {
	client        *feed.Client
	width, height int
	feed          *feed.Feed
	err           error
	selectedRow   int
}

func NewListings(client *feed.Client) Listings {
	return Listings{client: client}
}

func (l Listings) Init() tea.Cmd {
	return l.Refresh()
}

func (l Listings) Refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		f, err := l.client.Listings(ctx)
		return feedMsg{f, err}
	}
}

func (l Listings) loadMore() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		f, err := l.client.LoadMore(ctx)
		return feedMsg{f, err}
	}
}

func (l Listings) SetSize(w, h int) Listings {
	l.width = w
	l.height = h
	return l
}

// Selected returns the highlighted listing, if any.
func (l Listings) Selected() *feed.Listing {
	if l.feed == nil || l.selectedRow >= len(l.feed.Listings) {
		return nil
	}
	return &l.feed.Listings[l.selectedRow]
}

func (l Listings) Update(msg tea.Msg) (Listings, tea.Cmd) {
	switch msg := msg.(type) {
	case feedMsg:
		l.err = msg.err
		if msg.err == nil {
			l.feed = msg.feed
		}
		if l.feed != nil && l.selectedRow >= len(l.feed.Listings) {
			l.selectedRow = 0
		}

	case tea.KeyMsg:
		count := 0
		if l.feed != nil {
			count = len(l.feed.Listings)
		}
		switch msg.String() {
		case "up", "k":
			l.selectedRow = max(l.selectedRow-1, 0)
		case "down", "j":
			l.selectedRow = max(min(l.selectedRow+1, count-1), 0)
		case "pgdown", "ctrl+d":
			l.selectedRow = max(min(l.selectedRow+10, count-1), 0)
		case "pgup", "ctrl+u":
			l.selectedRow = max(l.selectedRow-10, 0)
		case "home", "g":
			l.selectedRow = 0
		case "end", "G":
			l.selectedRow = max(count-1, 0)
		case "n":
			if l.feed != nil && l.feed.HasMore {
				return l, l.loadMore()
			}
		}
	}
	return l, nil
}

func (l Listings) visibleRows() int {
	rows := 20
	if l.height > 0 {
		rows = (l.height * 55) / 100
		if rows < 8 {
			rows = 8
		}
	}
	return rows
}

func (l Listings) View() string {
	if l.err != nil && l.feed == nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			styles.Title.Render("Listings"),
			styles.StatusError.Render("Daemon unreachable: "+l.err.Error()),
		)
	}
	if l.feed == nil {
		return styles.Title.Render("Listings") + "\n" + styles.Muted.Render("Loading...")
	}

	status := fmt.Sprintf("  %d/%d shown", len(l.feed.Listings), l.feed.Total)
	if l.feed.HasMore {
		status += "  [n] load more"
	}
	header := styles.Title.Render("Listings") + styles.StatValue.Render(status)
	if l.feed.Loading {
		header += styles.StatusPending.Render("  ◐ fetching")
	}
	if l.feed.Error != "" {
		header += "  " + styles.StatusError.Render("fallback data: "+truncate(l.feed.Error, 60))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		l.renderTable(),
		"",
		l.renderDetails(),
	)
}

func (l Listings) renderTable() string {
	if len(l.feed.Listings) == 0 {
		return styles.Muted.Render("No listings match the current filters")
	}

	header := fmt.Sprintf("%-32s %-14s %10s %-10s %6s %5s %8s",
		"Title", "City", "Price", "Type", "Size", "Rooms", "Distance")
	rows := styles.TableHeader.Render(header) + "\n"

	visible := l.visibleRows()
	offset := 0
	if l.selectedRow >= visible {
		offset = l.selectedRow - visible + 1
	}
	end := min(offset+visible, len(l.feed.Listings))

	for i := offset; i < end; i++ {
		item := l.feed.Listings[i]
		rooms := "—"
		if item.Rooms != nil {
			rooms = fmt.Sprintf("%d", *item.Rooms)
		}

		row := fmt.Sprintf("%-32s %-14s %10s %-10s %6s %5s %8s",
			truncate(item.Title, 32),
			truncate(item.City, 14),
			formatPrice(item.Price),
			truncate(item.Type, 10),
			formatSize(item.Size),
			rooms,
			formatDistance(item.Distance),
		)
		if i == l.selectedRow {
			rows += styles.TableSelected.Render(row) + "\n"
		} else {
			rows += row + "\n"
		}
	}

	if len(l.feed.Listings) > visible {
		rows += styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", offset+1, end, len(l.feed.Listings)))
	}
	return rows
}

func (l Listings) renderDetails() string {
	item := l.Selected()
	if item == nil {
		return ""
	}

	width := l.width - 4
	if width < 30 {
		width = 60
	}

	lines := []string{
		styles.StatValue.Render(item.Title),
		item.Address + ", " + item.City,
		"",
		styles.StatLabel.Render("Price: ") + formatPrice(item.Price) + "/month",
	}
	if item.Months != nil {
		lines = append(lines, styles.StatLabel.Render("Min stay: ")+fmt.Sprintf("%d months", *item.Months))
	}
	if !item.CreatedAt.IsZero() {
		lines = append(lines, styles.StatLabel.Render("Listed: ")+item.CreatedAt.Format("2006-01-02")+
			" ("+relativeTime(item.CreatedAt)+")")
	}
	availability := styles.StatusSuccess.Render("available")
	if !item.Available {
		availability = styles.StatusError.Render("not available")
	}
	lines = append(lines, availability, "", styles.Muted.Render("id "+item.ID))

	return styles.DetailBorder.Width(width).Render(strings.Join(lines, "\n"))
}
