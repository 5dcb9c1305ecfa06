package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"parking-facility/internal/config"
	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
)

var (
	cfgPath string
	port    int
)

var rootCmd = &cobra.Command{
	Use:          "parking-facility",
	Short:        "Multi-floor parking facility: interactive shell and HTTP API",
	Long:         "Without a subcommand the interactive shell reads commands from stdin.",
	SilenceUsage: true,
	RunE:         runShell,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  runServe,
}

var bothCmd = &cobra.Command{
	Use:   "both",
	Short: "Serve the HTTP API and run the shell against the same facility",
	RunE:  runBoth,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
	for _, c := range []*cobra.Command{serveCmd, bothCmd} {
		c.Flags().IntVarP(&port, "port", "p", 0, "HTTP port, overrides server.port")
	}
	rootCmd.AddCommand(serveCmd, bothCmd)
}

// setup loads configuration and builds the app. Shell modes log to stderr so
// replies on stdout stay readable.
func setup(ctx context.Context, cmd *cobra.Command, shell bool) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
		if err := cfg.Server.Validate(); err != nil {
			return nil, err
		}
	}

	if shell {
		logging.InitWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Development)
	} else {
		logging.Init(cfg.Logging.Level, cfg.Logging.Development)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.start(ctx)
	return a, nil
}

func runShell(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	return parking.NewShell(a.service, a.telemetry, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	return serveUntil(ctx, a, nil)
}

func runBoth(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	shellDone := make(chan error, 1)
	go func() {
		shellDone <- parking.NewShell(a.service, a.telemetry, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
	}()

	return serveUntil(ctx, a, shellDone)
}

// serveUntil runs the HTTP server until ctx is done, the server fails or
// done yields, then shuts the server down within the configured timeout.
func serveUntil(ctx context.Context, a *app, done <-chan error) error {
	srv := a.httpServer()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()
	logging.Logger().Info().Str("address", srv.GetAddress()).Msg("HTTP API listening")

	var runErr error
	select {
	case <-ctx.Done():
		logging.Logger().Info().Msg("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case err := <-done:
		logging.Logger().Info().Msg("shell exited")
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("server shutdown: %w", err))
	}
	return runErr
}
