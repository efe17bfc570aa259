package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/lexquery/internal/adapters/driving/httpapi"
	"github.com/veritas-labs/lexquery/internal/connectors/filesystem"
	"github.com/veritas-labs/lexquery/internal/logger"
)

var (
	serveAddr  string
	serveWatch string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the HTTP API: POST /chat answers questions, POST /ingest
accepts uploads, plus document listing, health and Prometheus
metrics endpoints.

With --watch, a corpus directory is kept in sync in the background:
files created or modified under it are ingested, and deleted files
are removed from the index.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings)")
	serveCmd.Flags().StringVar(&serveWatch, "watch", "", "corpus directory to keep in sync")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	if askService == nil || ingestService == nil {
		return errors.New("services not configured")
	}

	// Log lines share the server's stdout, so structured output.
	logger.UseJSON()

	addr := serveAddr
	var maxUpload int64
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			if addr == "" {
				addr = settings.Server.Addr
			}
			maxUpload = settings.Server.MaxUploadBytes
		}
	}
	if addr == "" {
		addr = ":8080"
	}

	var opts []httpapi.Option
	if maxUpload > 0 {
		opts = append(opts, httpapi.WithMaxUploadBytes(maxUpload))
	}
	if metricsCollector != nil {
		opts = append(opts, httpapi.WithCollector(metricsCollector))
	}

	api := httpapi.NewAPI(askService, ingestService, documentService, healthService, opts...)
	server := httpapi.NewServer(addr, api)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveWatch != "" {
		source := filesystem.New(serveWatch)
		defer source.Close()

		syncer := filesystem.NewSyncer(source, ingestService, documentService)
		go func() {
			if err := syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("corpus sync stopped: %v", err)
			}
		}()
		logger.Info("watching corpus directory %s", serveWatch)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
