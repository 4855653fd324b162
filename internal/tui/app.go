package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/alertlog/internal/config"
	"github.com/sadopc/alertlog/internal/logging"
	"github.com/sadopc/alertlog/internal/session"
	"github.com/sadopc/alertlog/internal/store"
)

// tickInterval re-projects the timeline so day labels roll over at midnight.
const tickInterval = 30 * time.Second

// App is the root Bubble Tea model.
type App struct {
	sess    *session.Session
	store   *store.Store
	events  *Events
	notices <-chan logging.Notice
	width   int
	height  int

	activeView viewState
	showHelp   bool

	timeline timelineModel
	apps     appsModel
	backups  backupsModel
	settings settingsModel

	help      help.Model
	status    string
	statusErr bool
	connected bool
}

// NewApp builds the root model. events and notices may be nil.
func NewApp(sess *session.Session, st *store.Store, cfg *config.Config, events *Events, notices <-chan logging.Notice) App {
	h := help.New()
	h.ShowAll = false

	a := App{
		sess:       sess,
		store:      st,
		events:     events,
		notices:    notices,
		activeView: viewTimeline,
		timeline:   newTimelineModel(sess, st, cfg.Storage.BackupDir),
		apps:       newAppsModel(sess),
		backups:    newBackupsModel(st),
		settings:   newSettingsModel(st, cfg),
		help:       h,
		connected:  sess.Connected(),
	}
	a.apps.rebuild()
	return a
}

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		a.timeline.Init(),
		a.backups.refresh(),
		a.settings.refresh(),
		tickCmd(),
		a.events.wait(),
		waitNotice(a.notices),
	}
	return tea.Batch(cmds...)
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.timeline.setSize(a.width, contentHeight)
		a.apps.setSize(a.width, contentHeight)
		a.backups.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewTimeline
			return a, nil
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewApps
			a.apps.rebuild()
			return a, nil
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewBackups
			return a, a.backups.refresh()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewSettings
			return a, a.settings.refresh()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	case statusMsg:
		a.status = msg.text
		a.statusErr = msg.isError
		return a, nil

	case noticeMsg:
		a.status = msg.notice.Message
		a.statusErr = true
		return a, waitNotice(a.notices)

	case connStateMsg:
		a.connected = msg.connected
		if msg.connected {
			a.status = "Live channel connected"
			a.statusErr = false
		}
		return a, a.events.wait()

	case liveRecordMsg:
		var cmd tea.Cmd
		a.timeline, cmd = a.timeline.update(msg)
		a.apps.rebuild()
		return a, tea.Batch(cmd, a.events.wait())

	case tickMsg:
		a.connected = a.sess.Connected()
		var cmd tea.Cmd
		a.timeline, cmd = a.timeline.update(msg)
		return a, tea.Batch(cmd, tickCmd())

	case backupDoneMsg:
		var cmd tea.Cmd
		a.timeline, cmd = a.timeline.update(msg)
		return a, tea.Batch(cmd, a.backups.refresh())

	case appFilterMsg, restoreRequestMsg:
		a.activeView = viewTimeline
		var cmd tea.Cmd
		a.timeline, cmd = a.timeline.update(msg)
		return a, cmd

	case spinner.TickMsg, pageLoadedMsg, favoriteDoneMsg, deleteDoneMsg,
		bulkDoneMsg, sentMsg, restoreDoneMsg, exportDoneMsg:
		var cmd tea.Cmd
		a.timeline, cmd = a.timeline.update(msg)
		a.apps.rebuild()
		return a, cmd

	case backupsDataMsg:
		var cmd tea.Cmd
		a.backups, cmd = a.backups.update(msg)
		return a, cmd

	case settingsDataMsg:
		var cmd tea.Cmd
		a.settings, cmd = a.settings.update(msg)
		return a, cmd
	}

	return a.updateActiveView(msg)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewTimeline:
		a.timeline, cmd = a.timeline.update(msg)
	case viewApps:
		a.apps, cmd = a.apps.update(msg)
	case viewBackups:
		a.backups, cmd = a.backups.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewTimeline:
		return a.timeline.inputActive()
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a *App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewApps:
		a.apps.rebuild()
	case viewBackups:
		return a.backups.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewTimeline:
		content = a.timeline.view()
	case viewApps:
		content = a.apps.view()
	case viewBackups:
		content = a.backups.view()
	case viewSettings:
		content = a.settings.view()
	}

	contentHeight := max(1, a.height-lipgloss.Height(header)-lipgloss.Height(footer))
	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		MaxHeight(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("alertlog")
	conn := mutedStyle.Render("○ offline")
	if a.connected {
		conn = successStyle.Render("● live")
	}

	gap := max(1, a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-lipgloss.Width(conn)-6)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow, "  ", conn),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		if a.statusErr {
			status = errorStyle.Render(" " + a.status)
		} else {
			status = mutedStyle.Render(" " + a.status)
		}
	}

	left := footerStyle.Render(helpView)
	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(status)-2)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, status)
}
