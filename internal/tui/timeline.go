package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/alertlog/internal/export"
	"github.com/sadopc/alertlog/internal/feed"
	"github.com/sadopc/alertlog/internal/session"
	"github.com/sadopc/alertlog/internal/store"
)

type formKind int

const (
	formNone formKind = iota
	formConfirmDelete
	formConfirmBulk
	formCompose
	formRestore
)

type timelineModel struct {
	sess      *session.Session
	store     *store.Store
	backupDir string
	width     int
	height    int
	now       func() time.Time

	filter   feed.Filter
	sections []feed.Section
	ids      []string
	cursor   int

	spinner spinner.Model

	searching bool
	search    textinput.Model

	picking      bool
	pickerCursor int
	appNames     []string

	form      *huh.Form
	formKind  formKind
	pendingID string

	// Form values as pointers (survive value copies)
	confirmed       *bool
	composeCategory *string
	composeContent  *string
	restorePath     *string
}

func newTimelineModel(sess *session.Session, st *store.Store, backupDir string) timelineModel {
	f, _ := st.LoadFilter()

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search content, app or category"
	ti.CharLimit = 120

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = highlightStyle

	confirmed := false
	cat, content, path := string(feed.CategoryApp), "", ""
	t := timelineModel{
		sess:            sess,
		store:           st,
		backupDir:       backupDir,
		now:             time.Now,
		filter:          f,
		spinner:         sp,
		search:          ti,
		confirmed:       &confirmed,
		composeCategory: &cat,
		composeContent:  &content,
		restorePath:     &path,
	}
	t.refresh()
	return t
}

func (t timelineModel) Init() tea.Cmd {
	return tea.Batch(t.fetchCmd(false), t.spinner.Tick)
}

func (t *timelineModel) setSize(w, h int) {
	t.width = w
	t.height = h
	t.search.Width = max(10, w-6)
}

// inputActive reports whether the timeline is capturing keys.
func (t timelineModel) inputActive() bool {
	return t.form != nil || t.searching || t.picking
}

func (t timelineModel) currentID() string {
	if t.cursor < 0 || t.cursor >= len(t.ids) {
		return ""
	}
	return t.ids[t.cursor]
}

// refresh re-projects the store, keeping the cursor on the same record
// when it is still visible.
func (t *timelineModel) refresh() {
	prev := t.currentID()
	t.sections = t.sess.Sections(t.filter, t.now())
	t.ids = feed.VisibleIDs(t.sections)
	t.sess.Selection().Prune(t.ids)

	if prev != "" {
		for i, id := range t.ids {
			if id == prev {
				t.cursor = i
				return
			}
		}
	}
	if t.cursor >= len(t.ids) {
		t.cursor = max(0, len(t.ids)-1)
	}
}

func (t *timelineModel) setFilter(f feed.Filter) tea.Cmd {
	t.filter = f
	t.cursor = 0
	t.refresh()
	if err := t.store.SaveFilter(f); err != nil {
		return statusCmd(describeErr("Saving filter", err), true)
	}
	return nil
}

// --- Commands ---

func (t timelineModel) fetchCmd(reload bool) tea.Cmd {
	sess := t.sess
	return func() tea.Msg {
		var n int
		var err error
		if reload {
			n, err = sess.Reload(sess.Context())
		} else {
			n, err = sess.FetchMore(sess.Context())
		}
		return pageLoadedMsg{n: n, err: err, reload: reload}
	}
}

func (t timelineModel) favoriteCmd(id string) tea.Cmd {
	g, ctx := t.sess.Gateway(), t.sess.Context()
	return func() tea.Msg {
		fav, err := g.ToggleFavorite(ctx, id)
		return favoriteDoneMsg{id: id, favorite: fav, err: err}
	}
}

func (t timelineModel) deleteCmd(id string) tea.Cmd {
	g, ctx := t.sess.Gateway(), t.sess.Context()
	return func() tea.Msg {
		return deleteDoneMsg{id: id, err: g.Delete(ctx, id)}
	}
}

func (t timelineModel) bulkDeleteCmd(ids []string) tea.Cmd {
	g, ctx := t.sess.Gateway(), t.sess.Context()
	return func() tea.Msg {
		res, err := g.BulkDelete(ctx, ids)
		return bulkDoneMsg{result: res, err: err}
	}
}

func (t timelineModel) sendCmd(category feed.Category, content string) tea.Cmd {
	sess := t.sess
	return func() tea.Msg {
		return sentMsg{err: sess.Send(category, content)}
	}
}

func (t timelineModel) backupCmd() tea.Cmd {
	records := t.sess.Store().Records()
	st, dir := t.store, t.backupDir
	return func() tea.Msg {
		compress := st.GetBool(store.KeyBackupCompress)
		path, err := export.WriteBackup(records, dir, time.Now(), compress)
		if err != nil {
			return backupDoneMsg{err: err}
		}
		if _, err := st.RecordBackup(path, len(records), compress); err != nil {
			return backupDoneMsg{path: path, count: len(records), err: err}
		}
		return backupDoneMsg{path: path, count: len(records)}
	}
}

func (t timelineModel) restoreCmd(path string) tea.Cmd {
	g, ctx := t.sess.Gateway(), t.sess.Context()
	return func() tea.Msg {
		raw, err := export.ReadRestore(path)
		if err != nil {
			return restoreDoneMsg{path: path, err: err}
		}
		if err := g.Import(ctx, raw); err != nil {
			return restoreDoneMsg{path: path, err: err}
		}
		return restoreDoneMsg{path: path, count: export.CountItems(raw)}
	}
}

func (t timelineModel) exportCmd() tea.Cmd {
	var records []feed.LogRecord
	for _, s := range t.sections {
		records = append(records, s.Records...)
	}
	dir := t.backupDir
	return func() tea.Msg {
		path := filepath.Join(dir, "logs_export_"+time.Now().Format("20060102_150405")+".csv")
		if err := export.WriteCSV(records, path); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path}
	}
}

// --- Update ---

func (t timelineModel) update(msg tea.Msg) (timelineModel, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		return t, cmd

	case pageLoadedMsg:
		if msg.reload {
			t.cursor = 0
		}
		t.refresh()
		if msg.err != nil && !quietFetchErr(msg.err) {
			return t, statusCmd(describeErr("Loading logs", msg.err), true)
		}
		return t, nil

	case liveRecordMsg:
		t.refresh()
		return t, nil

	case tickMsg:
		t.refresh()
		return t, nil

	case favoriteDoneMsg:
		t.refresh()
		if msg.err != nil {
			return t, statusCmd(describeErr("Favorite", msg.err), true)
		}
		if msg.favorite {
			return t, statusCmd("Added to favorites", false)
		}
		return t, statusCmd("Removed from favorites", false)

	case deleteDoneMsg:
		if msg.err != nil {
			return t, statusCmd(describeErr("Delete", msg.err), true)
		}
		t.sess.Selection().Remove(msg.id)
		t.refresh()
		return t, statusCmd("Log deleted", false)

	case bulkDoneMsg:
		if msg.err != nil {
			return t, statusCmd(describeErr("Bulk delete", msg.err), true)
		}
		sel := t.sess.Selection()
		sel.Remove(msg.result.Deleted...)
		t.refresh()
		if msg.result.Partial() {
			return t, statusCmd(fmt.Sprintf("Deleted %d of %d logs; %d not confirmed by server",
				len(msg.result.Deleted), len(msg.result.Requested), len(msg.result.Unconfirmed)), true)
		}
		sel.Exit()
		return t, statusCmd(fmt.Sprintf("Deleted %d logs", len(msg.result.Deleted)), false)

	case sentMsg:
		if msg.err != nil {
			return t, statusCmd(describeErr("Send", msg.err), true)
		}
		return t, statusCmd("Log sent", false)

	case backupDoneMsg:
		if msg.err != nil {
			return t, statusCmd(describeErr("Backup", msg.err), true)
		}
		return t, statusCmd(fmt.Sprintf("Backed up %d logs to %s", msg.count, msg.path), false)

	case restoreDoneMsg:
		if msg.err != nil {
			return t, statusCmd(describeErr("Restore", msg.err), true)
		}
		return t, tea.Batch(
			statusCmd(fmt.Sprintf("Imported %d logs from %s", msg.count, filepath.Base(msg.path)), false),
			t.fetchCmd(true),
		)

	case exportDoneMsg:
		if msg.err != nil {
			return t, statusCmd(describeErr("Export", msg.err), true)
		}
		return t, statusCmd("Exported to "+msg.path, false)

	case appFilterMsg:
		f := t.filter
		f.AppName = msg.app
		return t, t.setFilter(f)

	case restoreRequestMsg:
		return t, t.restoreCmd(msg.path)
	}

	if t.form != nil {
		return t.updateForm(msg)
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case t.searching:
			return t.updateSearch(msg)
		case t.picking:
			return t.updatePicker(msg)
		}
		return t.updateKeys(msg)
	}
	if t.searching {
		var cmd tea.Cmd
		t.search, cmd = t.search.Update(msg)
		return t, cmd
	}
	return t, nil
}

func (t timelineModel) updateKeys(msg tea.KeyMsg) (timelineModel, tea.Cmd) {
	sel := t.sess.Selection()

	switch {
	case key.Matches(msg, keys.Up):
		if t.cursor > 0 {
			t.cursor--
		}
	case key.Matches(msg, keys.Down):
		if t.cursor < len(t.ids)-1 {
			t.cursor++
		}
		if t.cursor >= len(t.ids)-1 {
			return t, t.fetchCmd(false)
		}
	case key.Matches(msg, keys.Top):
		t.cursor = 0
	case key.Matches(msg, keys.Bottom):
		t.cursor = max(0, len(t.ids)-1)
		return t, t.fetchCmd(false)
	case key.Matches(msg, keys.More):
		return t, t.fetchCmd(false)
	case key.Matches(msg, keys.Reload):
		return t, t.fetchCmd(true)

	case key.Matches(msg, keys.Favorite):
		if id := t.currentID(); id != "" {
			return t, t.favoriteCmd(id)
		}
	case key.Matches(msg, keys.Delete):
		id := t.currentID()
		if id == "" {
			return t, nil
		}
		if t.store.GetBool(store.KeyConfirmDelete) {
			t.pendingID = id
			return t.showConfirm(formConfirmDelete, "Delete this log?", "This cannot be undone.")
		}
		return t, t.deleteCmd(id)

	case key.Matches(msg, keys.Select):
		if sel.Active() {
			sel.Exit()
		} else {
			sel.Enter()
		}
	case key.Matches(msg, keys.Toggle):
		if id := t.currentID(); id != "" {
			sel.Toggle(id)
		}
	case key.Matches(msg, keys.SelectAll):
		if !sel.Active() {
			sel.Enter()
		}
		sel.SelectAllVisible(t.ids)
	case key.Matches(msg, keys.BulkDelete):
		if !sel.Active() || sel.Count() == 0 {
			return t, statusCmd("Nothing selected", true)
		}
		if t.store.GetBool(store.KeyConfirmDelete) {
			return t.showConfirm(formConfirmBulk,
				fmt.Sprintf("Delete %d selected logs?", sel.Count()), "This cannot be undone.")
		}
		return t, t.bulkDeleteCmd(sel.IDs())

	case key.Matches(msg, keys.Category):
		f := t.filter
		f.Category = nextCategory(f.Category)
		return t, t.setFilter(f)
	case key.Matches(msg, keys.Favorites):
		f := t.filter
		f.FavoritesOnly = !f.FavoritesOnly
		return t, t.setFilter(f)
	case key.Matches(msg, keys.Search):
		t.searching = true
		t.search.SetValue(t.filter.Keyword)
		t.search.CursorEnd()
		return t, t.search.Focus()
	case key.Matches(msg, keys.AppPicker):
		t.appNames = t.sess.Store().DistinctAppNames()
		t.picking = true
		t.pickerCursor = 0
		for i, name := range t.appNames {
			if name == t.filter.AppName {
				t.pickerCursor = i + 1
			}
		}

	case key.Matches(msg, keys.Compose):
		return t.showCompose()
	case key.Matches(msg, keys.Backup):
		return t, t.backupCmd()
	case key.Matches(msg, keys.Restore):
		return t.showRestore()
	case key.Matches(msg, keys.Export):
		return t, t.exportCmd()

	case key.Matches(msg, keys.Back):
		switch {
		case sel.Active():
			sel.Exit()
		case t.filter.Keyword != "":
			f := t.filter
			f.Keyword = ""
			return t, t.setFilter(f)
		}
	}
	return t, nil
}

func nextCategory(c feed.Category) feed.Category {
	if c == feed.CategoryAll {
		return feed.Categories[0]
	}
	for i, known := range feed.Categories {
		if known == c && i+1 < len(feed.Categories) {
			return feed.Categories[i+1]
		}
	}
	return feed.CategoryAll
}

func (t timelineModel) updateSearch(msg tea.KeyMsg) (timelineModel, tea.Cmd) {
	switch msg.String() {
	case "enter":
		t.searching = false
		t.search.Blur()
		return t, nil
	case "esc":
		t.searching = false
		t.search.Blur()
		t.search.SetValue("")
		f := t.filter
		f.Keyword = ""
		return t, t.setFilter(f)
	}

	var cmd tea.Cmd
	t.search, cmd = t.search.Update(msg)
	// Keyword is not persisted, so no SaveFilter here.
	t.filter.Keyword = t.search.Value()
	t.cursor = 0
	t.refresh()
	return t, cmd
}

func (t timelineModel) updatePicker(msg tea.KeyMsg) (timelineModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if t.pickerCursor > 0 {
			t.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if t.pickerCursor < len(t.appNames) {
			t.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		t.picking = false
		f := t.filter
		f.AppName = ""
		if t.pickerCursor > 0 {
			f.AppName = t.appNames[t.pickerCursor-1]
		}
		return t, t.setFilter(f)
	case key.Matches(msg, keys.Back):
		t.picking = false
	}
	return t, nil
}

// --- Forms ---

func (t timelineModel) showConfirm(kind formKind, title, desc string) (timelineModel, tea.Cmd) {
	*t.confirmed = false
	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(desc).
				Affirmative("Delete").
				Negative("Cancel").
				Value(t.confirmed),
		),
	).WithShowHelp(false)
	t.formKind = kind
	return t, t.form.Init()
}

func (t timelineModel) showCompose() (timelineModel, tea.Cmd) {
	if v, err := t.store.GetSetting(store.KeyComposeCategory); err == nil && v != "" {
		*t.composeCategory = v
	}
	*t.composeContent = ""

	opts := make([]huh.Option[string], 0, len(feed.Categories))
	for _, c := range feed.Categories {
		opts = append(opts, huh.NewOption(c.Label(), string(c)))
	}
	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Category").Options(opts...).Value(t.composeCategory),
			huh.NewInput().Title("Content").Value(t.composeContent).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("content is required")
					}
					return nil
				}),
		).Title("New log"),
	).WithShowHelp(true).WithShowErrors(true)
	t.formKind = formCompose
	return t, t.form.Init()
}

func (t timelineModel) showRestore() (timelineModel, tea.Cmd) {
	*t.restorePath = ""
	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Restore from file").
				Description("A JSON backup (.json or .json.zst)").
				Placeholder(filepath.Join(t.backupDir, "logs_backup_YYYYMMDD_HHMMSS.json")).
				Value(t.restorePath).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("path is required")
					}
					return nil
				}),
		),
	).WithShowHelp(true).WithShowErrors(true)
	t.formKind = formRestore
	return t, t.form.Init()
}

func (t timelineModel) updateForm(msg tea.Msg) (timelineModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			return t.closeForm(), nil
		}
	}

	form, cmd := t.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		t.form = f
	}

	switch t.form.State {
	case huh.StateAborted:
		return t.closeForm(), nil
	case huh.StateCompleted:
		kind, id := t.formKind, t.pendingID
		t = t.closeForm()
		return t, t.submitForm(kind, id)
	}
	return t, cmd
}

func (t timelineModel) closeForm() timelineModel {
	t.form = nil
	t.formKind = formNone
	t.pendingID = ""
	return t
}

func (t timelineModel) submitForm(kind formKind, id string) tea.Cmd {
	switch kind {
	case formConfirmDelete:
		if *t.confirmed {
			return t.deleteCmd(id)
		}
	case formConfirmBulk:
		if *t.confirmed {
			return t.bulkDeleteCmd(t.sess.Selection().IDs())
		}
	case formCompose:
		cat := feed.Category(*t.composeCategory)
		t.store.SetSetting(store.KeyComposeCategory, string(cat))
		return t.sendCmd(cat, strings.TrimSpace(*t.composeContent))
	case formRestore:
		return t.restoreCmd(strings.TrimSpace(*t.restorePath))
	}
	return nil
}

// --- View ---

func (t timelineModel) view() string {
	w := t.width - 2

	if t.form != nil {
		return activePanelStyle.Width(w - 2).Render(t.form.View())
	}

	header := t.renderFilterBar()
	status := t.renderStatusLine()
	avail := t.height - lipgloss.Height(header) - lipgloss.Height(status) - 2
	if t.searching {
		avail--
	}

	var body string
	if t.picking {
		body = t.renderPicker()
	} else {
		body = t.renderRows(w-2, max(1, avail))
	}

	parts := []string{header}
	if t.searching {
		parts = append(parts, t.search.View())
	}
	parts = append(parts, body, status)
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (t timelineModel) renderFilterBar() string {
	chips := []string{"Category: " + highlightStyle.Render(t.filter.Category.Label())}
	if t.filter.FavoritesOnly {
		chips = append(chips, favoriteStyle.Render("★ only"))
	}
	if t.filter.AppName != "" {
		chips = append(chips, "App: "+highlightStyle.Render(t.filter.AppName))
	}
	if t.filter.Keyword != "" && !t.searching {
		chips = append(chips, "Search: "+highlightStyle.Render(t.filter.Keyword))
	}
	if sel := t.sess.Selection(); sel.Active() {
		chips = append(chips, accentStyle.Render(fmt.Sprintf("%d selected", sel.Count())))
	}
	return mutedStyle.Render(strings.Join(chips, "  ·  "))
}

func (t timelineModel) renderStatusLine() string {
	st := t.sess.Store()
	count := fmt.Sprintf("%d shown / %d loaded", len(t.ids), st.Len())
	switch {
	case st.Loading():
		return t.spinner.View() + mutedStyle.Render(" Loading more…  "+count)
	case !st.HasMore():
		return mutedStyle.Render("End of history  " + count)
	}
	return mutedStyle.Render(count + "  (m: load more)")
}

func (t timelineModel) renderRows(w, avail int) string {
	if len(t.ids) == 0 {
		if t.filter.IsZero() {
			return mutedStyle.Render("No logs yet")
		}
		return mutedStyle.Render("No logs match the current filter")
	}

	sel := t.sess.Selection()
	var lines []string
	cursorLine, idx := 0, 0
	for _, sec := range t.sections {
		lines = append(lines, sectionStyle.Render(sec.Label))
		for _, r := range sec.Records {
			line := t.renderRecord(r, w, sel)
			if idx == t.cursor {
				cursorLine = len(lines)
				line = cursorRowStyle.Width(w).Render(line)
			}
			lines = append(lines, line)
			idx++
		}
	}

	start := 0
	if len(lines) > avail {
		start = min(max(0, cursorLine-avail/2), len(lines)-avail)
	}
	end := min(len(lines), start+avail)
	return strings.Join(lines[start:end], "\n")
}

func (t timelineModel) renderRecord(r feed.LogRecord, w int, sel *feed.Selection) string {
	var b strings.Builder
	if sel.Active() {
		if sel.IsSelected(r.ID) {
			b.WriteString(accentStyle.Render("[x] "))
		} else {
			b.WriteString(mutedStyle.Render("[ ] "))
		}
	}
	if r.IsFavorite {
		b.WriteString(favoriteStyle.Render("★ "))
	} else {
		b.WriteString("  ")
	}

	at := r.OccurredAt
	if at.IsZero() {
		at = r.CreatedAt
	}
	b.WriteString(mutedStyle.Render(at.Local().Format("15:04:05")))
	b.WriteString("  ")
	b.WriteString(categoryBadge(r.Category))
	b.WriteString(" ")
	if r.SourceApp != "" {
		b.WriteString(highlightStyle.Render(truncate(r.SourceApp, 14)))
		b.WriteString(" ")
	}

	prefix := b.String()
	b.WriteString(normalItemStyle.Render(truncate(r.Content, w-lipgloss.Width(prefix))))
	return b.String()
}

func (t timelineModel) renderPicker() string {
	title := titleStyle.Render("Filter by app")

	rows := []string{title, ""}
	names := append([]string{"All apps"}, t.appNames...)
	for i, name := range names {
		cursor := "  "
		style := normalItemStyle
		if i == t.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+name))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: select  esc: cancel"))
	return strings.Join(rows, "\n")
}
