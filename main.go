package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
	"github.com/talentos/talentos/internal/proto"
	"github.com/talentos/talentos/internal/stream"
)

// Build vars.
var (
	//nolint: gochecknoglobals
	Version   = ""
	CommitSHA = ""
)

func buildVersion() {
	if len(CommitSHA) >= 7 { //nolint:mnd
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
			Version = info.Main.Version
		} else {
			Version = "unknown (built from source)"
		}
	}
	rootCmd.Version = Version
}

var (
	config  Config
	rootCmd = &cobra.Command{
		Use:           "talentos",
		Short:         "Resume analysis in your terminal, streamed as it is written.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case config.Settings:
				return editSettings(config.SettingsPath)
			case config.ResetSettings:
				return resetSettings(config.SettingsPath)
			case len(args) == 0:
				return usageFunc(cmd)
			}
			config.Resume = args[0]
			return analyze(cmd, &config)
		},
	}
)

func initFlags() {
	flags := rootCmd.Flags()
	flags.StringVarP(&config.JD, "jd", "j", config.JD, stdoutStyles().FlagDesc.Render(help["jd"]))
	flags.StringVar(&config.JDFile, "jd-file", config.JDFile, stdoutStyles().FlagDesc.Render(help["jd-file"]))
	flags.BoolVarP(&config.EditJD, "edit-jd", "e", config.EditJD, stdoutStyles().FlagDesc.Render(help["edit-jd"]))
	flags.StringVarP(&config.Persona, "persona", "p", config.Persona, stdoutStyles().FlagDesc.Render(help["persona"]))
	flags.StringVarP(&config.Output, "output", "o", config.Output, stdoutStyles().FlagDesc.Render(help["output"]))
	flags.BoolVarP(&config.Copy, "copy", "c", config.Copy, stdoutStyles().FlagDesc.Render(help["copy"]))
	flags.BoolVarP(&config.Raw, "raw", "r", config.Raw, stdoutStyles().FlagDesc.Render(help["raw"]))
	flags.BoolVarP(&config.Quiet, "quiet", "q", config.Quiet, stdoutStyles().FlagDesc.Render(help["quiet"]))
	flags.Var(newDurationFlag(config.Timeout, &config.Timeout), "timeout", stdoutStyles().FlagDesc.Render(help["timeout"]))
	flags.StringVar(&config.BaseURL, "base-url", config.BaseURL, stdoutStyles().FlagDesc.Render(help["base-url"]))
	flags.StringVar(&config.HTTPProxy, "http-proxy", config.HTTPProxy, stdoutStyles().FlagDesc.Render(help["http-proxy"]))
	flags.IntVar(&config.WordWrap, "word-wrap", config.WordWrap, stdoutStyles().FlagDesc.Render(help["word-wrap"]))
	flags.StringVar(&config.Theme, "theme", config.Theme, stdoutStyles().FlagDesc.Render(help["theme"]))
	flags.StringVar(&config.StatusText, "status-text", config.StatusText, stdoutStyles().FlagDesc.Render(help["status-text"]))
	flags.BoolVarP(&config.Verbose, "verbose", "v", config.Verbose, stdoutStyles().FlagDesc.Render(help["verbose"]))
	flags.BoolVar(&config.Settings, "settings", false, stdoutStyles().FlagDesc.Render(help["settings"]))
	flags.BoolVar(&config.ResetSettings, "reset-settings", false, stdoutStyles().FlagDesc.Render(help["reset-settings"]))
	flags.BoolVarP(&config.ShowHelp, "help", "h", false, stdoutStyles().FlagDesc.Render(help["help"]))
	flags.BoolVar(&config.Version, "version", false, stdoutStyles().FlagDesc.Render(help["version"]))
	flags.Lookup("word-wrap").Hidden = true
	flags.Lookup("status-text").Hidden = true
	flags.SortFlags = false

	rootCmd.MarkFlagsMutuallyExclusive("settings", "reset-settings")

	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			defaultHelp(cmd, args)
			return
		}
		_ = usageFunc(cmd)
	})
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.AddCommand(newHealthCmd(&config), newManCmd())
}

func newManCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "man",
		Short:                 "Generates manpages",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Hidden:                true,
		Args:                  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			manPage, err := mcobra.NewManPage(1, rootCmd)
			if err != nil {
				//nolint:wrapcheck
				return err
			}
			_, err = fmt.Fprint(os.Stdout, manPage.Build(roff.NewDocument()))
			//nolint:wrapcheck
			return err
		},
	}
}

func newLogger(cfg *Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.WarnLevel,
		Prefix:          "talentos",
		ReportTimestamp: cfg.Verbose,
		TimeFormat:      time.TimeOnly,
	})
	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func newHTTPClient(cfg *Config) (*http.Client, error) {
	if cfg.HTTPProxy == "" {
		return &http.Client{}, nil
	}
	proxyURL, err := url.Parse(cfg.HTTPProxy)
	if err != nil {
		return nil, talentosError{err, "There was an error parsing your proxy URL."}
	}
	return &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}, nil
}

// analysisContext is cancelled on interrupt and, when configured, after the
// timeout.
func analysisContext(parent context.Context, cfg *Config) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	if cfg.Timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func buildPayload(ctx context.Context, cfg *Config, httpClient *http.Client) (proto.Payload, error) {
	var payload proto.Payload

	resume, err := loadFile(cfg.Resume)
	if err != nil {
		return payload, talentosError{err, "Could not read the resume."}
	}
	payload.Resume = resume

	if cfg.JDFile != "" {
		jd, err := loadFile(cfg.JDFile)
		if err != nil {
			return payload, talentosError{err, "Could not read the job description file."}
		}
		payload.JDFile = &jd
	}
	if cfg.JD != "" {
		jd, err := loadMsg(ctx, httpClient, cfg.JD)
		if err != nil {
			return payload, talentosError{err, "Could not load the job description."}
		}
		payload.JDText = jd
	}
	if cfg.EditJD {
		jd, err := editJD(payload.JDText)
		if err != nil {
			return payload, err
		}
		payload.JDText = jd
	}

	persona, err := validatePersona(cfg.Persona)
	if err != nil {
		return payload, err
	}
	payload.Persona = persona

	if err := payload.Validate(); err != nil {
		return payload, talentosError{err, "Invalid input."}
	}
	return payload, nil
}

func analyze(cmd *cobra.Command, cfg *Config) error {
	logger := newLogger(cfg)

	if !cmd.Flags().Changed("persona") && isInputTTY() && isOutputTTY() {
		persona, err := pickPersona(proto.Persona(cfg.Persona))
		if err != nil {
			return err
		}
		cfg.Persona = string(persona)
	}

	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := analysisContext(cmd.Context(), cfg)
	defer cancel()

	payload, err := buildPayload(ctx, cfg, httpClient)
	if err != nil {
		return err
	}

	client := stream.New(stream.Config{
		BaseURL:    cfg.BaseURL,
		Endpoint:   cfg.Endpoint,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	logger.Debug("analyzing", "resume", payload.Resume.Name, "persona", payload.Persona, "backend", cfg.BaseURL)

	var content, failure string
	var timedOut bool
	if isOutputTTY() {
		m, err := runInteractive(newTalentos(ctx, cfg, client, payload, logger))
		if err != nil {
			return err
		}
		if m.Err != nil {
			return m.Err
		}
		content, failure, timedOut = m.Output, m.Failure, m.TimedOut
		if content != "" {
			fmt.Print(renderReport(cfg, content))
		}
	} else {
		state, err := streamPlain(ctx, os.Stdout, client, payload, logger)
		if err != nil {
			return err
		}
		content, failure = state.Content, state.Failure
		timedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	}

	switch {
	case failure != "":
		return talentosError{errors.New(failure), "Analysis failed."}
	case timedOut:
		if err := finishReport(cfg, content); err != nil {
			return err
		}
		return talentosError{
			newUserErrorf("No complete report after %s.", cfg.Timeout),
			"Analysis timed out.",
		}
	}
	return finishReport(cfg, content)
}

func editSettings(path string) error {
	c, err := editor.Cmd("talentos", path)
	if err != nil {
		return talentosError{err, "Could not edit your settings file."}
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return talentosError{err, "Missing $EDITOR"}
	}
	fmt.Fprintln(os.Stderr, "Wrote config file to:", path)
	return nil
}

func resetSettings(path string) error {
	backup, err := resetConfig(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "\n  Settings restored to defaults!")
	fmt.Fprintf(os.Stderr,
		"\n  %s %s\n\n",
		stderrStyles().Comment.Render("Your old settings have been saved to:"),
		stderrStyles().Link.Render(backup),
	)
	return nil
}

func main() {
	buildVersion()

	if needsConfig(os.Args) {
		cfg, err := ensureConfig()
		if err != nil {
			handleError(err)
			os.Exit(1)
		}
		config = cfg
	}
	initFlags()

	if err := rootCmd.Execute(); err != nil {
		handleError(err)
		os.Exit(1)
	}
}

func handleError(err error) {
	format := "\n%s\n\n"

	var args []any
	var ferr flagParseError
	var terr talentosError
	if errors.As(err, &ferr) {
		format += "%s\n\n"
		args = []any{
			fmt.Sprintf(
				"Check out %s %s",
				stderrStyles().InlineCode.Render("talentos -h"),
				stderrStyles().Comment.Render("for help."),
			),
			fmt.Sprintf(
				ferr.ReasonFormat(),
				stderrStyles().InlineCode.Render(ferr.Flag()),
			),
		}
	} else if errors.As(err, &terr) {
		args = []any{
			stderrStyles().ErrPadding.Render(stderrStyles().ErrorHeader.String(), terr.reason),
		}
		if terr.err != nil {
			format += "%s\n\n"
			args = append(args, stderrStyles().ErrPadding.Render(stderrStyles().ErrorDetails.Render(terr.err.Error())))
		}
	} else {
		args = []any{
			stderrStyles().ErrPadding.Render(stderrStyles().ErrorDetails.Render(err.Error())),
		}
	}

	fmt.Fprintf(os.Stderr, format, args...)
}

// needsConfig reports whether the invocation reads settings. man and
// completion must work without creating a settings file.
func needsConfig(args []string) bool {
	return !isManCmd(args) && !isCompletionCmd(args)
}

func isManCmd(args []string) bool {
	if len(args) == 2 { //nolint:mnd
		return args[1] == "man"
	}
	if len(args) == 3 && args[1] == "man" { //nolint:mnd
		return args[2] == "-h" || args[2] == "--help"
	}
	return false
}

func isCompletionCmd(args []string) bool {
	if len(args) <= 1 {
		return false
	}
	if args[1] == "__complete" {
		return true
	}
	if args[1] != "completion" {
		return false
	}
	if len(args) == 3 { //nolint:mnd
		_, ok := map[string]any{
			"bash":       nil,
			"fish":       nil,
			"zsh":        nil,
			"powershell": nil,
			"-h":         nil,
			"--help":     nil,
			"help":       nil,
		}[args[2]]
		return ok
	}
	if len(args) == 4 { //nolint:mnd
		_, ok := map[string]any{
			"-h":     nil,
			"--help": nil,
		}[args[3]]
		return ok
	}
	return false
}
