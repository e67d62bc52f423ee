package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/estatebot/internal/delivery"
	"github.com/user/estatebot/internal/telegram"
	"github.com/user/estatebot/internal/web"
)

const shutdownGrace = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web front-end and, when configured, the Telegram bot",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "estatebot.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	deliveries := delivery.NewRegistry()
	gw := newGateway(cfg, newService(cfg), deliveries)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("estatebot started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"analytics_url", cfg.Analytics.BaseURL,
		"timeout", cfg.Timeout(),
		"max_sessions", cfg.Web.MaxSessions,
		"export_format", cfg.Export.Format,
		"pid_file", pidPath,
	)

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		adapter.ExportFormat = cfg.Export.Format
		deliveries.Register(telegram.SessionPrefix, adapter.Deliver)
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Web server
	webSrv := web.NewServer(gw.Sessions, web.Options{
		MaxUploadBytes: int64(cfg.Web.MaxUploadMB) << 20,
		ExportFormat:   cfg.Export.Format,
	})
	httpServer := &http.Server{
		Addr:              cfg.Web.Listen,
		Handler:           webSrv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("web server started", "listen", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownGrace)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("web server shutdown", "error", err)
		}
		drained := make(chan struct{})
		go func() {
			webSrv.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-shutdownCtx.Done():
			slog.Warn("abandoning pending web operations at shutdown")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case err := <-serveErr:
			return fmt.Errorf("web server: %w", err)
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				slog.Info("received SIGHUP, restarting")
				execPath, err := os.Executable()
				if err != nil {
					slog.Error("failed to get executable path", "error", err)
					continue
				}
				// Release the listener and PID file before re-exec
				httpServer.Close()
				os.Remove(pidPath)
				if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
					slog.Error("failed to re-exec", "error", err)
					return fmt.Errorf("re-exec: %w", err)
				}
			}
			// SIGINT or SIGTERM
			slog.Info("shutting down", "signal", sig)
			return nil
		}
	}
}
