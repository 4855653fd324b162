package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/alertlog/internal/store"
)

const backupListLimit = 50

type backupsModel struct {
	store  *store.Store
	width  int
	height int

	backups []store.Backup
	cursor  int
	err     error
}

func newBackupsModel(s *store.Store) backupsModel {
	return backupsModel{store: s}
}

func (b *backupsModel) setSize(w, h int) {
	b.width = w
	b.height = h
}

type backupsDataMsg struct {
	backups []store.Backup
	err     error
}

func (b backupsModel) refresh() tea.Cmd {
	st := b.store
	return func() tea.Msg {
		backups, err := st.ListBackups(backupListLimit)
		return backupsDataMsg{backups: backups, err: err}
	}
}

func (b backupsModel) update(msg tea.Msg) (backupsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case backupsDataMsg:
		b.backups = msg.backups
		b.err = msg.err
		if b.cursor >= len(b.backups) {
			b.cursor = max(0, len(b.backups)-1)
		}
		return b, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if b.cursor > 0 {
				b.cursor--
			}
		case key.Matches(msg, keys.Down):
			if b.cursor < len(b.backups)-1 {
				b.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if b.cursor < len(b.backups) {
				path := b.backups[b.cursor].Path
				return b, func() tea.Msg { return restoreRequestMsg{path: path} }
			}
		case key.Matches(msg, keys.Reload):
			return b, b.refresh()
		}
	}
	return b, nil
}

func (b backupsModel) view() string {
	w := b.width - 4
	title := titleStyle.Render("Backups")

	var body string
	switch {
	case b.err != nil:
		body = errorStyle.Render("  " + describeErr("Listing backups", b.err))
	case len(b.backups) == 0:
		body = mutedStyle.Render("  No backups yet. Press b on the timeline to create one.")
	default:
		body = b.renderList(w)
	}

	nav := mutedStyle.Render("  ↑/↓: navigate  enter: restore selected  r: refresh")
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
		title, "", body, "", nav,
	))
}

func (b backupsModel) renderList(w int) string {
	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-19s %7s %5s  %s", "Created", "Logs", "zstd", "File")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 70))))

	// Keep the cursor row in view.
	avail := max(1, b.height-8)
	start := 0
	if len(b.backups) > avail {
		start = min(max(0, b.cursor-avail/2), len(b.backups)-avail)
	}
	end := min(len(b.backups), start+avail)

	for i := start; i < end; i++ {
		bk := b.backups[i]
		cursor := "  "
		style := normalItemStyle
		if i == b.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		zst := ""
		if bk.Compressed {
			zst = "yes"
		}
		line := fmt.Sprintf("%s%-19s %7d %5s  %s",
			cursor, bk.CreatedAt.Local().Format("2006-01-02 15:04:05"), bk.RecordCount, zst,
			truncate(filepath.Base(bk.Path), max(10, w-44)))
		rows = append(rows, style.Render(line))
	}
	return strings.Join(rows, "\n")
}
