package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/alertlog/internal/session"
)

// maxBars caps the chart; the table below still lists every app.
const maxBars = 8

type appCount struct {
	name  string
	count int
}

type appsModel struct {
	sess   *session.Session
	width  int
	height int

	counts []appCount
	cursor int

	chart barchart.Model
}

func newAppsModel(sess *session.Session) appsModel {
	return appsModel{
		sess:  sess,
		chart: barchart.New(60, 12),
	}
}

func (a *appsModel) setSize(w, h int) {
	a.width = w
	a.height = h
	a.buildChart()
}

// rebuild recounts the loaded records by source app.
func (a *appsModel) rebuild() {
	raw := a.sess.Store().AppCounts()
	counts := make([]appCount, 0, len(raw))
	for name, n := range raw {
		counts = append(counts, appCount{name: name, count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})
	a.counts = counts
	if a.cursor >= len(a.counts) {
		a.cursor = max(0, len(a.counts)-1)
	}
	a.buildChart()
}

func (a appsModel) update(msg tea.Msg) (appsModel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}
	switch {
	case key.Matches(km, keys.Up):
		if a.cursor > 0 {
			a.cursor--
			a.buildChart()
		}
	case key.Matches(km, keys.Down):
		if a.cursor < len(a.counts)-1 {
			a.cursor++
			a.buildChart()
		}
	case key.Matches(km, keys.Enter):
		if a.cursor < len(a.counts) {
			app := a.counts[a.cursor].name
			return a, func() tea.Msg { return appFilterMsg{app: app} }
		}
	}
	return a, nil
}

func (a *appsModel) buildChart() {
	chartWidth := max(20, a.width-8)
	chartHeight := 10
	if a.height > 30 {
		chartHeight = 14
	}

	a.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for i, c := range a.counts {
		if i == maxBars {
			break
		}
		style := lipgloss.NewStyle().Foreground(colorSecondary)
		if i == a.cursor {
			style = lipgloss.NewStyle().Foreground(colorPrimary)
		}
		bars = append(bars, barchart.BarData{
			Label:  truncate(c.name, 8),
			Values: []barchart.BarValue{{Name: c.name, Value: float64(c.count), Style: style}},
		})
	}
	if len(bars) == 0 {
		return
	}
	a.chart.PushAll(bars)
	a.chart.Draw()
}

func (a appsModel) view() string {
	w := a.width - 4
	title := titleStyle.Render("Apps")
	sub := mutedStyle.Render(fmt.Sprintf("%d loaded logs", a.sess.Store().Len()))
	header := lipgloss.JoinHorizontal(lipgloss.Bottom, title, "  ", sub)

	if len(a.counts) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			header, "", mutedStyle.Render("  No app notifications loaded"),
		))
	}

	nav := mutedStyle.Render("  ↑/↓: navigate  enter: filter timeline by app")
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
		header, "", a.chart.View(), "", a.renderTable(w), "", nav,
	))
}

func (a appsModel) renderTable(w int) string {
	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-24s %8s", "App", "Logs")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 33))))
	for i, c := range a.counts {
		cursor := "  "
		style := normalItemStyle
		if i == a.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%-24s %8d", cursor, truncate(c.name, 24), c.count)))
	}
	return strings.Join(rows, "\n")
}
