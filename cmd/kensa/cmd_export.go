package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kensa-dev/kensa/internal/persist"
	"github.com/kensa-dev/kensa/internal/projectconfig"
	"github.com/kensa-dev/kensa/internal/sheets"
	"github.com/kensa-dev/kensa/internal/webapi"
)

func newExportCommand() *cobra.Command {
	var (
		outPath    string
		format     string
		sessionDir string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the persisted session without starting the server",
		Long: `Export the last persisted session back to its original format.

CSV sessions export to CSV, SQLite sessions to a SQLite database with the
captured schema replayed. Deleted records are dropped; every other record is
written with its current edits and judgments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportE(cmd, outPath, format, sessionDir)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default kensa-export.csv or kensa-export.db)")
	cmd.Flags().StringVar(&format, "format", "", "Output format, csv or db (default inferred from --out)")
	cmd.Flags().StringVar(&sessionDir, "session-dir", "", "Directory with session snapshots (default from .kensa.yaml)")

	return cmd
}

func exportE(cmd *cobra.Command, outPath, format, sessionDir string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, err := projectconfig.Load(cwd)
	if err != nil {
		return err
	}

	dir := sessionDir
	if dir == "" {
		dir = cfg.SnapshotDir()
	}
	if dir == "" {
		return fmt.Errorf("session persistence is disabled; nothing to export")
	}

	if format == "" {
		format = inferFormat(outPath)
	}

	session := webapi.NewSession(persist.NewStore(dir), sheets.New(), slog.Default())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch format {
	case "csv":
		if !session.Resume(persist.ModeEval) {
			return fmt.Errorf("no saved eval session in %s", dir)
		}
		if outPath == "" {
			outPath = "kensa-export.csv"
		}
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close() //nolint:errcheck
		if err := session.ExportCSV(f); err != nil {
			return err
		}
	case "db":
		if !session.Resume(persist.ModeCurate) {
			return fmt.Errorf("no saved curate session in %s", dir)
		}
		if outPath == "" {
			outPath = "kensa-export.db"
		}
		data, err := session.ExportSQLite(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
	default:
		return fmt.Errorf("unknown format %q (want csv or db)", format)
	}

	info := session.Info()
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", info.Total-info.DeletedCount, outPath) //nolint:errcheck
	return nil
}

// inferFormat maps the output extension to a format, defaulting to csv.
func inferFormat(outPath string) string {
	switch filepath.Ext(outPath) {
	case ".db", ".sqlite", ".sqlite3":
		return "db"
	default:
		return "csv"
	}
}
