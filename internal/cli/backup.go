package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/alertlog/internal/export"
	"github.com/sadopc/alertlog/internal/session"
	"github.com/sadopc/alertlog/internal/store"
)

var (
	backupDir      string
	backupCompress bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write every log on the server to a JSON backup",
	Long: `Page through the whole feed and write it to
logs_backup_YYYYMMDD_HHMMSS.json in the backup directory.
With --compress the file is zstd-compressed (.json.zst).`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Import a backup file into the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func init() {
	backupCmd.Flags().StringVar(&backupDir, "dir", "", "output directory (default: storage.backup_dir)")
	backupCmd.Flags().BoolVar(&backupCompress, "compress", false, "zstd-compress the backup")
	rootCmd.AddCommand(backupCmd, restoreCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	dir := backupDir
	if dir == "" {
		dir = cfg.Storage.BackupDir
	}

	sess := session.Open(cmd.Context(), cfg, session.Options{Offline: true})
	defer sess.Close()

	if err := sess.FetchAll(cmd.Context()); err != nil {
		return fmt.Errorf("fetch logs: %w", err)
	}
	records := sess.Store().Records()

	path, err := export.WriteBackup(records, dir, time.Now(), backupCompress)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	if _, err := st.RecordBackup(path, len(records), backupCompress); err != nil {
		return fmt.Errorf("record backup: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d logs to %s\n", len(records), path)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	raw, err := export.ReadRestore(args[0])
	if err != nil {
		return err
	}

	sess := session.Open(cmd.Context(), cfg, session.Options{Offline: true})
	defer sess.Close()

	if err := sess.Gateway().Import(cmd.Context(), raw); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d logs from %s\n", export.CountItems(raw), args[0])
	return nil
}
