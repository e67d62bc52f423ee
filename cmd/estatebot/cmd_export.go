package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/estatebot/internal/export"
	"github.com/user/estatebot/internal/session"
)

var (
	exportOut    string
	exportFormat string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "directory to write to (default: export.dir from config)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "csv or xlsx (default: export.format from config)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [location...]",
	Short: "Download the service's current dataset, optionally filtered by location",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		dir := exportOut
		if dir == "" {
			dir = cfg.ExportDir()
		}
		format := exportFormat
		if format == "" {
			format = cfg.Export.Format
		}
		if format != "csv" && format != "xlsx" {
			return fmt.Errorf("unknown format %q (want csv or xlsx)", format)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		target := export.NewDirSink(dir)
		target.Saved = func(path string) { fmt.Fprintln(os.Stdout, "Saved", path) }
		var sink session.ExportSink = target
		if format == "xlsx" {
			sink = &export.XLSXSink{Next: target}
		}

		ctrl := session.New(newService(cfg), session.WithTimeout(cfg.Timeout()))
		return ctrl.Export(ctx, args, sink)
	},
}
