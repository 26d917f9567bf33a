/*
Package main is the entry point for the wschat terminal client.

It is responsible for loading configuration, initializing the global logging system,
starting the connection manager and the interactive console, optionally serving the
local control API, and shutting everything down when the user quits or the process
receives SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wschat/internal/app/chat"
	"wschat/internal/app/console"
	"wschat/internal/app/transcript"
	"wschat/internal/configs"
	"wschat/internal/handler"
	"wschat/internal/pkg/logx"
)

var rootCmd = &cobra.Command{
	Use:           "wschat",
	Short:         "Terminal client for a text-framed WebSocket chat server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runClient,
}

var (
	flagConfigPath  string
	flagServerURL   string
	flagControlPort int
	flagTimestamps  bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigPath, "config", os.Getenv("WSCHAT_CONFIG"), "optional YAML config file (from env WSCHAT_CONFIG if set)")
	flags.StringVar(&flagServerURL, "url", "", "chat server address, overrides SERVER_URL")
	flags.IntVar(&flagControlPort, "control-port", 0, "local control API port, overrides CONTROL_PORT (0 disables)")
	flags.BoolVar(&flagTimestamps, "timestamps", false, "prefix transcript lines with the local time")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := configs.LoadConfigFile(flagConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd.Flags().Changed("url") {
		cfg.ServerURL = flagServerURL
	}
	if cmd.Flags().Changed("control-port") {
		cfg.ControlPort = flagControlPort
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment(), logx.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("server_url", cfg.ServerURL).
		Dur("reconnect_delay", cfg.ReconnectDelay).
		Int("max_reconnect_attempts", cfg.MaxReconnectAttempts).
		Int("control_port", cfg.ControlPort).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr := transcript.New(transcript.NewWriterRenderer(os.Stdout, flagTimestamps))
	manager := chat.NewManager(cfg, tr)
	con := console.New(manager, os.Stdin, os.Stdout)
	manager.Observe(con.ShowControls)

	var server *http.Server
	deps := &handler.AppDeps{
		Session:    manager,
		Transcript: tr,
		Config:     cfg,
	}

	if cfg.ControlPort > 0 {
		deps.WriteLimiter = handler.NewWriteLimiter()

		serverAddr := fmt.Sprintf("127.0.0.1:%d", cfg.ControlPort)
		server = &http.Server{
			Addr:         serverAddr,
			Handler:      handler.Router(deps),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			logx.Info(fmt.Sprintf("Control API listening on http://%s", serverAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logx.Error(err, "Control API failed")
				stop()
			}
		}()
	}

	manager.Start(ctx)

	runErr := con.Run(ctx)
	logx.Info("Console finished. Starting graceful shutdown...")

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logx.Error(err, "Control API forced to shutdown")
		}
		deps.WriteLimiter.Stop()
	}

	manager.Close()
	logx.Info("Client exited properly")

	return runErr
}
