package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kensa-dev/kensa/internal/persist"
	"github.com/kensa-dev/kensa/internal/projectconfig"
	"github.com/kensa-dev/kensa/internal/sheets"
	"github.com/kensa-dev/kensa/internal/traceio"
	"github.com/kensa-dev/kensa/internal/webapi"
	"github.com/kensa-dev/kensa/internal/webserver"
	"github.com/kensa-dev/kensa/internal/wizard"
)

func newServeCommand() *cobra.Command {
	var (
		csvPath    string
		dbPath     string
		sheetURL   string
		port       int
		noBrowser  bool
		sessionDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review dashboard",
		Long: `Start the review dashboard on a loopback HTTP server and open the browser.

The dataset comes from exactly one source:

  --file   CSV export of evaluation records
  --db     SQLite database of curated prompt examples
  --sheet  published Google Sheets share link

With no source flag and an interactive terminal, a wizard prompts for the
source. With no source flag and no terminal, the last persisted session is
resumed. Edits and judgments are snapshotted after every change, so killing
the server never loses work.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveE(cmd, serveOptions{
				csvPath:    csvPath,
				dbPath:     dbPath,
				sheetURL:   sheetURL,
				port:       port,
				noBrowser:  noBrowser,
				sessionDir: sessionDir,
			})
		},
	}

	cmd.Flags().StringVarP(&csvPath, "file", "f", "", "CSV dataset to load")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database to load")
	cmd.Flags().StringVar(&sheetURL, "sheet", "", "Google Sheets share link to load")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from .kensa.yaml)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the browser")
	cmd.Flags().StringVar(&sessionDir, "session-dir", "", "Directory for session snapshots (default from .kensa.yaml)")

	return cmd
}

type serveOptions struct {
	csvPath    string
	dbPath     string
	sheetURL   string
	port       int
	noBrowser  bool
	sessionDir string
}

func serveE(cmd *cobra.Command, opts serveOptions) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, err := projectconfig.Load(cwd)
	if err != nil {
		return err
	}

	snapshotDir := opts.sessionDir
	if snapshotDir == "" {
		snapshotDir = cfg.SnapshotDir()
	}

	logger := slog.Default()
	session := webapi.NewSession(persist.NewStore(snapshotDir), sheets.New(), logger)

	source, err := resolveSource(cmd, opts)
	if err != nil {
		return err
	}
	if err := loadSource(cmd, session, source, cfg); err != nil {
		return err
	}

	port := opts.port
	if port == 0 {
		port = cfg.Server.Port
	}
	noBrowser := opts.noBrowser
	if cfg.Server.NoBrowser != nil && *cfg.Server.NoBrowser {
		noBrowser = true
	}

	srv, err := webserver.New(webserver.Config{
		Port:      port,
		NoBrowser: noBrowser,
		Origins:   cfg.Server.Origins,
		Store:     session,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}

// resolveSource picks the dataset source from flags, falling back to the
// interactive wizard and finally to resuming the persisted session.
func resolveSource(cmd *cobra.Command, opts serveOptions) (*wizard.SourceSpec, error) {
	var sources []*wizard.SourceSpec
	if opts.csvPath != "" {
		sources = append(sources, &wizard.SourceSpec{Kind: wizard.SourceCSV, Location: opts.csvPath})
	}
	if opts.dbPath != "" {
		sources = append(sources, &wizard.SourceSpec{Kind: wizard.SourceSQLite, Location: opts.dbPath})
	}
	if opts.sheetURL != "" {
		sources = append(sources, &wizard.SourceSpec{Kind: wizard.SourceSheet, Location: opts.sheetURL})
	}
	if len(sources) > 1 {
		return nil, fmt.Errorf("--file, --db and --sheet are mutually exclusive")
	}
	if len(sources) == 1 {
		return sources[0], nil
	}

	// Check TTY from the command's input stream, not os.Stdin directly.
	inReader := cmd.InOrStdin()
	if f, ok := inReader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return wizard.RunSourceWizard(inReader, cmd.OutOrStdout())
	}
	return &wizard.SourceSpec{Kind: wizard.SourceResume}, nil
}

func loadSource(cmd *cobra.Command, session *webapi.Session, source *wizard.SourceSpec, cfg *projectconfig.ProjectConfig) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch source.Kind {
	case wizard.SourceCSV:
		data, err := os.ReadFile(source.Location)
		if err != nil {
			return fmt.Errorf("reading %s: %w", source.Location, err)
		}
		resp, err := session.ImportCSV(filepath.Base(source.Location), data)
		if err != nil {
			return err
		}
		reportImport(cmd, resp)
		if err := loadCompanionTraces(cmd, session, source.Location); err != nil {
			return err
		}
	case wizard.SourceSQLite:
		data, err := os.ReadFile(source.Location)
		if err != nil {
			return fmt.Errorf("reading %s: %w", source.Location, err)
		}
		resp, err := session.ImportSQLite(ctx, filepath.Base(source.Location), data)
		if err != nil {
			return err
		}
		reportImport(cmd, resp)
	case wizard.SourceSheet:
		resp, err := session.ImportSheet(ctx, source.Location)
		if err != nil {
			return err
		}
		reportImport(cmd, resp)
	case wizard.SourceResume:
		if cfg.Session.Resume != nil && !*cfg.Session.Resume {
			return fmt.Errorf("no dataset source given and session resume is disabled; pass --file, --db or --sheet")
		}
		if !session.Resume(persist.ModeEval) && !session.Resume(persist.ModeCurate) {
			return fmt.Errorf("no dataset source given and no saved session to resume; pass --file, --db or --sheet")
		}
		info := session.Info()
		fmt.Fprintf(cmd.OutOrStdout(), "Resumed %s session: %s (%d records)\n", info.Mode, info.Filename, info.Total) //nolint:errcheck
	default:
		return fmt.Errorf("unknown source kind %q", source.Kind)
	}
	return nil
}

// loadCompanionTraces attaches dataset.traces.parquet when it sits next to
// the CSV. A dataset without a companion file is the common case and loads
// silently.
func loadCompanionTraces(cmd *cobra.Command, session *webapi.Session, csvPath string) error {
	tracePath := traceio.CompanionPath(csvPath)
	if tracePath == csvPath {
		return nil
	}
	data, err := os.ReadFile(tracePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", tracePath, err)
	}
	resp, err := session.ImportTraces(filepath.Base(tracePath), data)
	if err != nil {
		return fmt.Errorf("loading traces from %s: %w", tracePath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d traces from %s\n", resp.Count, resp.Filename) //nolint:errcheck
	return nil
}

func reportImport(cmd *cobra.Command, resp *webapi.ImportResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %d %s records from %s\n", resp.Count, resp.Mode, resp.Filename) //nolint:errcheck
	for id, problems := range resp.Findings {
		for _, p := range problems {
			fmt.Fprintf(out, "  warning: %s: %s\n", id, p) //nolint:errcheck
		}
	}
}
