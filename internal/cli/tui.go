package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sadopc/alertlog/internal/logging"
	"github.com/sadopc/alertlog/internal/session"
	"github.com/sadopc/alertlog/internal/store"
	"github.com/sadopc/alertlog/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive feed",
	Long: `Start the alertlog terminal UI.

Navigation:
  1-4, Tab  - switch views
  ↑/↓       - move through the feed
  ?         - show all key bindings
  q         - quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	notices := make(chan logging.Notice, 16)
	log.AddHook(logging.NewNoticeHook(notices))

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	events := tui.NewEvents()
	sess := session.Open(cmd.Context(), cfg, session.Options{
		OnRecord: events.OnRecord,
		OnState:  events.OnState,
	})
	defer sess.Close()

	p := tea.NewProgram(
		tui.NewApp(sess, st, cfg, events, notices),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		printError("tui", err)
		return err
	}
	return nil
}
