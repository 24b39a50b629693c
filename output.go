package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/talentos/talentos/internal/proto"
	"github.com/talentos/talentos/internal/stream"
	"golang.org/x/sync/errgroup"
)

// streamPlain runs the analysis and writes the report to w as it arrives.
// It is used when stdout is not a terminal.
func streamPlain(
	ctx context.Context,
	w io.Writer,
	client stream.Analyzer,
	payload proto.Payload,
	logger *log.Logger,
) (stream.State, error) {
	snapshots := make(chan stream.State, 64) //nolint:mnd
	session := stream.NewSession(
		client,
		stream.WithObserver(func(s stream.State) { snapshots <- s }),
		stream.WithLogger(logger),
	)

	var final stream.State
	var g errgroup.Group
	g.Go(func() error {
		defer close(snapshots)
		final = session.Start(ctx, payload)
		return nil
	})
	g.Go(func() error {
		var written int
		var werr error
		for s := range snapshots {
			if werr != nil || len(s.Content) <= written {
				continue
			}
			_, werr = io.WriteString(w, s.Content[written:])
			written = len(s.Content)
		}
		if werr != nil {
			return fmt.Errorf("could not write report: %w", werr)
		}
		if written > 0 && !strings.HasSuffix(final.Content, "\n") {
			_, werr = io.WriteString(w, "\n")
		}
		return werr //nolint:wrapcheck
	})
	err := g.Wait()
	return final, err //nolint:wrapcheck
}

// reportPath resolves where --output writes the report.
func reportPath(output string) string {
	if strings.HasSuffix(output, string(os.PathSeparator)) || strings.HasSuffix(output, "/") {
		return filepath.Join(output, defaultReportName)
	}
	if fi, err := os.Stat(output); err == nil && fi.IsDir() {
		return filepath.Join(output, defaultReportName)
	}
	return output
}

func saveReport(output, content string) (string, error) {
	path := reportPath(output)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return path, talentosError{err, "Could not create the report directory."}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil { //nolint:mnd,gosec
		return path, talentosError{err, "Could not save the report."}
	}
	return path, nil
}

// copyReport copies the report to the system clipboard, falling back to
// OSC 52 when no clipboard utility is available.
func copyReport(content string) error {
	if err := clipboard.WriteAll(content); err != nil {
		if clipboard.Unsupported {
			termenv.DefaultOutput().Copy(content)
			return nil
		}
		return talentosError{err, "Could not copy the report."}
	}
	return nil
}

// finishReport saves and copies the final report as requested.
func finishReport(cfg *Config, content string) error {
	if strings.TrimSpace(content) == "" {
		if cfg.Output != "" || cfg.Copy {
			return talentosError{errors.New("the backend returned no report"), "Nothing to save."}
		}
		return nil
	}
	if cfg.Output != "" {
		path, err := saveReport(cfg.Output, content)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, stderrStyles().Comment.Render("Report saved to ")+stderrStyles().Link.Render(path))
	}
	if cfg.Copy {
		if err := copyReport(content); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, stderrStyles().Comment.Render("Report copied to the clipboard."))
	}
	return nil
}
