package tui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/alertlog/internal/export"
	"github.com/sadopc/alertlog/internal/feed"
	"github.com/sadopc/alertlog/internal/gateway"
	"github.com/sadopc/alertlog/internal/live"
	"github.com/sadopc/alertlog/internal/logging"
	"github.com/sadopc/alertlog/internal/remote"
	"github.com/sadopc/alertlog/internal/session"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTimeline viewState = iota
	viewApps
	viewBackups
	viewSettings
)

var viewNames = []string{"Timeline", "Apps", "Backups", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type pageLoadedMsg struct {
	n      int
	err    error
	reload bool
}

type liveRecordMsg struct {
	record feed.LogRecord
}

type connStateMsg struct {
	connected bool
}

type noticeMsg struct {
	notice logging.Notice
}

type favoriteDoneMsg struct {
	id       string
	favorite bool
	err      error
}

type deleteDoneMsg struct {
	id  string
	err error
}

type bulkDoneMsg struct {
	result gateway.BulkResult
	err    error
}

type backupDoneMsg struct {
	path  string
	count int
	err   error
}

type restoreDoneMsg struct {
	path  string
	count int
	err   error
}

type sentMsg struct {
	err error
}

type exportDoneMsg struct {
	path string
	err  error
}

// appFilterMsg asks the timeline to filter by app and take focus.
type appFilterMsg struct {
	app string
}

// restoreRequestMsg asks the timeline to restore from path.
type restoreRequestMsg struct {
	path string
}

type tickMsg struct{}

// --- Events ---

// Events carries session callbacks into the Bubble Tea loop. Records are
// already in the store when the callback fires, so a dropped message only
// delays a redraw.
type Events struct {
	ch chan tea.Msg
}

func NewEvents() *Events {
	return &Events{ch: make(chan tea.Msg, 64)}
}

func (e *Events) OnRecord(r feed.LogRecord) { e.post(liveRecordMsg{record: r}) }
func (e *Events) OnState(connected bool)    { e.post(connStateMsg{connected: connected}) }

func (e *Events) post(msg tea.Msg) {
	select {
	case e.ch <- msg:
	default:
	}
}

func (e *Events) wait() tea.Cmd {
	if e == nil {
		return nil
	}
	return func() tea.Msg { return <-e.ch }
}

func waitNotice(ch <-chan logging.Notice) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return noticeMsg{notice: <-ch}
	}
}

// --- Helpers ---

// describeErr turns an operation error into a footer line.
func describeErr(op string, err error) string {
	var re *remote.RejectionError
	var te *remote.TransportError
	switch {
	case errors.As(err, &re):
		return fmt.Sprintf("%s rejected by server (%d)", op, re.Status)
	case errors.As(err, &te):
		return fmt.Sprintf("%s failed: server unreachable", op)
	case errors.Is(err, feed.ErrMalformed):
		return fmt.Sprintf("%s failed: malformed data", op)
	case errors.Is(err, live.ErrNotConnected):
		return fmt.Sprintf("%s failed: live channel not connected", op)
	case errors.Is(err, export.ErrNothingToBackup):
		return "Nothing to back up"
	case errors.Is(err, session.ErrEmpty):
		return fmt.Sprintf("%s: content is empty", op)
	case errors.Is(err, gateway.ErrUnknownRecord):
		return fmt.Sprintf("%s: record no longer loaded", op)
	}
	return fmt.Sprintf("%s failed: %v", op, err)
}

// quietFetchErr reports whether a fetch error is a no-op signal.
func quietFetchErr(err error) bool {
	return errors.Is(err, session.ErrNoMore) ||
		errors.Is(err, session.ErrFetchInFlight) ||
		errors.Is(err, session.ErrDiscarded) ||
		errors.Is(err, session.ErrClosed)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func statusCmd(text string, isError bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isError: isError}
	}
}
