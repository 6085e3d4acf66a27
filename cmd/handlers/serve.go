package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"phdash/internal/config"
	"phdash/internal/logger"
	"phdash/internal/server"
	"phdash/internal/store"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		dataDir    string
		port       int
		host       string
		corsOrigin string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard JSON API",
		Long: `Start the read-only HTTP service the dashboard queries.

The server reads the snapshot written by 'phdash generate' on every request,
so regenerating the snapshot does not require a restart.

Endpoints:
  GET /                           liveness
  GET /config                     base config plus available metric keys
  GET /data/{metric}              cluster evolution of a metric
  GET /cluster_data/{metric}      label counts per threshold
  GET /distance_matrix/{metric}   stored distance matrix
  GET /pca /tsne /mds /lda        projections with point labels
  GET /manifest                   last generation run

Examples:
  # Start server on default port 8000
  phdash serve

  # Serve another snapshot to a dashboard on a different origin
  phdash serve --data-dir ./snapshots/run2 --cors-origin http://localhost:5173`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), dataDir, port, host, corsOrigin)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Snapshot directory (default from config: data)")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8000)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().StringVar(&corsOrigin, "cors-origin", "", "Allowed CORS origin (default from config: http://localhost:8080)")

	return cmd
}

func runServe(ctx context.Context, dataDir string, port int, host, corsOrigin string) error {
	log := logger.Get()

	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override server config from flags if provided
	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}
	if corsOrigin != "" {
		serverCfg.CORSOrigin = corsOrigin
	}
	if dataDir == "" {
		dataDir = cfg.App.DataDir
	}

	st := store.New(dataDir)
	if _, err := os.Stat(st.Dir()); err != nil {
		log.Warn().Str("data_dir", st.Dir()).Msg("Snapshot directory not found; run 'phdash generate' first")
	}

	// Create HTTP server
	srv := server.New(st, serverCfg, *log)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port)
		log.Info().Msg("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	if ctx == nil {
		ctx = context.Background()
	}

	// Block until we receive our signal or an error from server
	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("Server shutdown initiated")

	case <-ctx.Done():
		log.Info().Msg("Server shutdown initiated by context")
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed, forcing close")
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info().Msg("Server stopped successfully")
	return nil
}
