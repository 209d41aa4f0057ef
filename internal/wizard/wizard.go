// Package wizard collects a dataset source interactively when the dashboard
// is started without source flags.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// SourceKind identifies where a dataset comes from.
type SourceKind string

const (
	SourceCSV    SourceKind = "csv"
	SourceSQLite SourceKind = "sqlite"
	SourceSheet  SourceKind = "sheet"
	SourceResume SourceKind = "resume"
)

// SourceSpec is the outcome of the wizard: a source kind plus its path or URL.
type SourceSpec struct {
	Kind     SourceKind
	Location string
}

// Validate checks that the source can actually be loaded.
func (s *SourceSpec) Validate() error {
	switch s.Kind {
	case SourceResume:
		return nil
	case SourceCSV, SourceSQLite:
		if s.Location == "" {
			return fmt.Errorf("a file path is required for source %q", s.Kind)
		}
		return nil
	case SourceSheet:
		if s.Location == "" {
			return fmt.Errorf("a share link is required for source %q", s.Kind)
		}
		if !strings.Contains(s.Location, "docs.google.com") {
			return fmt.Errorf("%q does not look like a Google Sheets link", s.Location)
		}
		return nil
	default:
		return fmt.Errorf("unknown source kind %q", s.Kind)
	}
}

// RunSourceWizard runs an interactive huh form asking for the dataset source.
func RunSourceWizard(in io.Reader, out io.Writer) (*SourceSpec, error) {
	var (
		kind     = string(SourceCSV)
		location string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Dataset source").
				Description("What should the dashboard load?").
				Options(
					huh.NewOption("CSV file", string(SourceCSV)),
					huh.NewOption("SQLite database", string(SourceSQLite)),
					huh.NewOption("Google Sheets link", string(SourceSheet)),
					huh.NewOption("Resume the last session", string(SourceResume)),
				).
				Value(&kind),
			huh.NewInput().
				Title("Path or link").
				Description("File path for CSV/SQLite, share link for Sheets; leave empty when resuming").
				Placeholder("evals.csv").
				Value(&location),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	spec := &SourceSpec{Kind: SourceKind(kind), Location: strings.TrimSpace(location)}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}
