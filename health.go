package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/talentos/talentos/internal/stream"
)

func newHealthCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:          "health",
		Short:        "Check that the analysis backend is up.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			httpClient, err := newHTTPClient(cfg)
			if err != nil {
				return err
			}
			client := stream.New(stream.Config{
				BaseURL:    cfg.BaseURL,
				HTTPClient: httpClient,
				Logger:     newLogger(cfg),
			})
			ctx, cancel := analysisContext(cmd.Context(), cfg)
			defer cancel()

			h, err := client.Health(ctx)
			if err != nil {
				return talentosError{err, "Could not check the backend health."}
			}
			fmt.Print(formatHealth(stdoutStyles(), h, cfg.BaseURL))
			if !h.Healthy() {
				return talentosError{
					newUserErrorf("Backend status is %q.", h.Status),
					"The analysis backend is not healthy.",
				}
			}
			return nil
		},
	}
}

// formatHealth renders a health report with engines sorted by name.
func formatHealth(s styles, h stream.Health, baseURL string) string {
	var sb strings.Builder
	status := s.Unhealthy.Render(h.Status)
	if h.Healthy() {
		status = s.Healthy.Render(h.Status)
	}
	fmt.Fprintf(&sb, "%-9s %s\n", "Backend", s.Link.Render(baseURL))
	fmt.Fprintf(&sb, "%-9s %s\n", "Status", status)
	if h.Version != "" {
		fmt.Fprintf(&sb, "%-9s %s\n", "Version", h.Version)
	}
	if len(h.EngineStatus) == 0 {
		return sb.String()
	}
	names := make([]string, 0, len(h.EngineStatus))
	width := 0
	for name := range h.EngineStatus {
		names = append(names, name)
		width = max(width, len(name))
	}
	slices.Sort(names)
	sb.WriteString("Engines\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "  %-*s  %s\n", width, name, s.Comment.Render(fmt.Sprint(h.EngineStatus[name])))
	}
	return sb.String()
}

