package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/alertlog/internal/feed"
	"github.com/sadopc/alertlog/internal/session"
)

var sendCategory string

var sendCmd = &cobra.Command{
	Use:   "send CONTENT...",
	Short: "Push a new log over the live channel",
	Example: `  alertlog send "Battery low"
  alertlog send --category SMS "Meeting moved to 3pm"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendCategory, "category", "c", string(feed.CategoryApp),
		"log category (call, SMS, app-notification)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	content := strings.Join(args, " ")
	if strings.TrimSpace(content) == "" {
		return session.ErrEmpty
	}

	sess := session.Open(cmd.Context(), cfg, session.Options{})
	defer sess.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeouts.Connect.Duration)
	defer cancel()
	if err := sess.WaitConnected(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Server.LiveURL, err)
	}

	if err := sess.Send(feed.Category(sendCategory), content); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Sent")
	return nil
}
