package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sadopc/alertlog/internal/mockserver"
)

var (
	mockAddr string
	mockSeed int
)

var mockCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run a local log server for development",
	Long: `Run an in-memory log server that speaks the same HTTP and
WebSocket protocol as the real backend. Data is lost on exit.`,
	Args: cobra.NoArgs,
	RunE: runMock,
}

func init() {
	mockCmd.Flags().StringVar(&mockAddr, "addr", ":8000", "listen address")
	mockCmd.Flags().IntVar(&mockSeed, "seed", 50, "number of sample logs to create")
	rootCmd.AddCommand(mockCmd)
}

func runMock(cmd *cobra.Command, args []string) error {
	// Log to the terminal; this command has no UI of its own.
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.WithField("component", "mock-server")

	srv := mockserver.New()
	if mockSeed > 0 {
		srv.Seed(mockSeed)
	}

	httpSrv := &http.Server{
		Addr:              mockAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	logger.WithFields(log.Fields{"addr": mockAddr, "seed": mockSeed}).Info("listening")
	fmt.Fprintf(cmd.OutOrStdout(), "mock server listening on %s (%d logs)\n", mockAddr, len(srv.Logs()))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.DropClients()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}
