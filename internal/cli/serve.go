package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marensys/toolgate/internal/config"
	"github.com/marensys/toolgate/internal/logger"
	"github.com/marensys/toolgate/internal/observability"
	"github.com/marensys/toolgate/pkg/builtins"
	"github.com/marensys/toolgate/pkg/toolexec"
)

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tool manager with hot reload and metrics",
	Long: `Load the configuration, activate the builtin tools, watch the
configuration file for changes, and expose Prometheus metrics until
interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9464", "listen address for the /metrics endpoint")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	lg, err := logger.New(logger.Config{
		Level:   level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()

	manifest, err := builtins.NewManifest()
	if err != nil {
		return err
	}
	handlers := toolexec.NewHandlerTable()
	if err := builtins.RegisterHandlers(handlers); err != nil {
		return err
	}

	manager := toolexec.NewManagerFromConfig(cfg.Tools, manifest, handlers, lg.GetZerolog())
	lg.Info().
		Int("tools", manager.Registry().Len()).
		Int("max_iterations", manager.MaxIterations()).
		Msg("Tool manager ready")

	watcher, err := config.NewWatcher(config.WatcherConfig{
		ConfigPath: loader.GetConfigPath(),
		OnReload: func(updated *config.Config) error {
			manager.Reload(updated.Tools.Enabled)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	defer watcher.Stop()

	observability.EnsureRegistered()
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	server := &http.Server{Addr: metricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", metricsAddr).Msg("Metrics endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		lg.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		return fmt.Errorf("metrics server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
