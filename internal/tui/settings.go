package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/alertlog/internal/config"
	"github.com/sadopc/alertlog/internal/feed"
	"github.com/sadopc/alertlog/internal/store"
)

type settingsModel struct {
	store  *store.Store
	cfg    *config.Config
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	composeCategory *string
	confirmDelete   *bool
	backupCompress  *bool
}

func newSettingsModel(s *store.Store, cfg *config.Config) settingsModel {
	cat := string(feed.CategoryApp)
	confirm, compress := true, false
	return settingsModel{
		store:           s,
		cfg:             cfg,
		composeCategory: &cat,
		confirmDelete:   &confirm,
		backupCompress:  &compress,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings []store.Setting
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		settings, _ := s.store.GetAllSettings()
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Enter) {
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.composeCategory = s.getVal(store.KeyComposeCategory, string(feed.CategoryApp))
	*s.confirmDelete = s.store.GetBool(store.KeyConfirmDelete)
	*s.backupCompress = s.store.GetBool(store.KeyBackupCompress)

	opts := make([]huh.Option[string], 0, len(feed.Categories))
	for _, c := range feed.Categories {
		opts = append(opts, huh.NewOption(c.Label(), string(c)))
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Default compose category").
				Options(opts...).
				Value(s.composeCategory),
		).Title("Compose"),
		huh.NewGroup(
			huh.NewConfirm().Title("Confirm before deleting").Value(s.confirmDelete),
			huh.NewConfirm().Title("Compress backups with zstd").Value(s.backupCompress),
		).Title("General"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.form = nil
		if err := s.saveSettings(); err != nil {
			return s, statusCmd(describeErr("Saving settings", err), true)
		}
		return s, tea.Batch(s.refresh(), statusCmd("Settings saved", false))
	}

	return s, cmd
}

func (s settingsModel) saveSettings() error {
	if err := s.store.SetSetting(store.KeyComposeCategory, *s.composeCategory); err != nil {
		return err
	}
	if err := s.store.SetBool(store.KeyConfirmDelete, *s.confirmDelete); err != nil {
		return err
	}
	return s.store.SetBool(store.KeyBackupCompress, *s.backupCompress)
}

func (s settingsModel) getVal(k, fallback string) string {
	v, err := s.store.GetSetting(k)
	if err != nil {
		return fallback
	}
	return v
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Edit Settings")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	title := titleStyle.Render("Settings")
	hint := mutedStyle.Render("Press enter to edit settings")

	var rows []string
	rows = append(rows, title, "")

	for _, setting := range s.settings {
		label := lipgloss.NewStyle().Width(24).Render(setting.Key)
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}

	if s.cfg != nil {
		rows = append(rows, "", titleStyle.Render("Connection"), "")
		rows = append(rows, configRow("base_url", s.cfg.Server.BaseURL))
		rows = append(rows, configRow("live_url", s.cfg.Server.LiveURL))
		rows = append(rows, configRow("page_size", fmt.Sprint(s.cfg.Server.PageSize)))
		rows = append(rows, configRow("request_timeout", s.cfg.Timeouts.Request.String()))
		rows = append(rows, configRow("reconnect", fmt.Sprintf("%s → %s (±%.0f%%)",
			s.cfg.Reconnect.Initial, s.cfg.Reconnect.Max, s.cfg.Reconnect.Jitter*100)))
		rows = append(rows, configRow("backup_dir", s.cfg.Storage.BackupDir))
	}

	rows = append(rows, "", hint)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func configRow(k, v string) string {
	label := lipgloss.NewStyle().Width(24).Render(k)
	return fmt.Sprintf("  %s %s", label, mutedStyle.Render(v))
}

func formatSettingValue(k, v string) string {
	switch k {
	case store.KeyConfirmDelete, store.KeyBackupCompress, store.KeyFilterFavorites:
		if v == "1" {
			return "on"
		}
		return "off"
	case store.KeyComposeCategory, store.KeyFilterCategory:
		return feed.Category(v).Label()
	case store.KeyFilterApp:
		if v == "" {
			return "all"
		}
	}
	return v
}
