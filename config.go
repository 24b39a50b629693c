package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v9"
	"github.com/charmbracelet/x/exp/ordered"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/talentos/talentos/internal/proto"
	"github.com/talentos/talentos/internal/stream"
	"gopkg.in/yaml.v3"
)

const (
	defaultStatusText = "Analyzing"
	defaultWordWrap   = 100
	defaultReportName = "talentos-report.md"
)

var help = map[string]string{
	"base-url":       "Base URL of the analysis backend.",
	"endpoint":       "Path of the streaming analysis endpoint.",
	"http-proxy":     "HTTP proxy to use for backend requests.",
	"jd":             "Job description: text, file://path or an http(s) URL.",
	"jd-file":        "Job description document, uploaded as is.",
	"edit-jd":        "Compose the job description in your $EDITOR.",
	"persona":        "Analysis persona (hrbp, candidate).",
	"output":         "Save the final report as Markdown to this file or directory.",
	"copy":           "Copy the final report to the clipboard.",
	"raw":            "Render output as raw text when connected to a TTY.",
	"quiet":          "Quiet mode (hide the animation while analyzing).",
	"word-wrap":      "Wrap rendered Markdown at this width.",
	"theme":          "Markdown theme (auto, dark, light, notty).",
	"timeout":        "Cancel the analysis after this long (e.g. 90s, 2m, 1h).",
	"status-text":    "Text to show while analyzing.",
	"verbose":        "Log requests and stream progress to stderr.",
	"help":           "Show help and exit.",
	"version":        "Show version and exit.",
	"settings":       "Open settings in your $EDITOR.",
	"reset-settings": "Backup your old settings file and reset everything to the defaults.",
}

// Config holds the main configuration and is mapped to the YAML settings file.
type Config struct {
	BaseURL    string        `yaml:"base-url" env:"BASE_URL"`
	Endpoint   string        `yaml:"endpoint" env:"ENDPOINT"`
	Persona    string        `yaml:"persona" env:"PERSONA"`
	Raw        bool          `yaml:"raw" env:"RAW"`
	Quiet      bool          `yaml:"quiet" env:"QUIET"`
	WordWrap   int           `yaml:"word-wrap" env:"WORD_WRAP"`
	Theme      string        `yaml:"theme" env:"THEME"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	HTTPProxy  string        `yaml:"http-proxy" env:"HTTP_PROXY"`
	StatusText string        `yaml:"status-text" env:"STATUS_TEXT"`
	Verbose    bool          `yaml:"verbose" env:"VERBOSE"`

	Resume        string
	JD            string
	JDFile        string
	EditJD        bool
	Output        string
	Copy          bool
	ShowHelp      bool
	Version       bool
	Settings      bool
	ResetSettings bool
	SettingsPath  string
}

func (c *Config) applyDefaults() {
	c.BaseURL = ordered.First(c.BaseURL, stream.DefaultBaseURL)
	c.Endpoint = ordered.First(c.Endpoint, stream.DefaultEndpoint)
	c.Persona = ordered.First(c.Persona, string(proto.DefaultPersona))
	c.StatusText = ordered.First(c.StatusText, defaultStatusText)
	c.Theme = ordered.First(c.Theme, "auto")
	c.WordWrap = ordered.First(c.WordWrap, defaultWordWrap)
}

func ensureConfig() (Config, error) {
	sp, err := xdg.ConfigFile(filepath.Join("talentos", "talentos.yml"))
	if err != nil {
		return Config{}, talentosError{err, "Could not find settings path."}
	}
	return loadConfig(sp)
}

// loadConfig reads the settings file at path, creating it from the template
// first if needed, and applies environment overrides.
func loadConfig(path string) (Config, error) {
	var c Config
	c.SettingsPath = path

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil { //nolint:mnd
		return c, talentosError{err, "Could not create settings directory."}
	}
	if err := writeConfigFile(path); err != nil {
		return c, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return c, talentosError{err, "Could not read settings file."}
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, talentosError{err, "Could not parse settings file."}
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: "TALENTOS_"}); err != nil {
		return c, talentosError{err, "Could not parse environment into settings file."}
	}
	c.applyDefaults()
	return c, nil
}

func writeConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return talentosError{err, "Could not stat path."}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return talentosError{err, "Could not create configuration file."}
	}
	defer func() { _ = f.Close() }()

	m := struct {
		BaseURL  string
		Endpoint string
		WordWrap int
		Help     map[string]string
	}{
		BaseURL:  stream.DefaultBaseURL,
		Endpoint: stream.DefaultEndpoint,
		WordWrap: defaultWordWrap,
		Help:     help,
	}
	if err := tmpl.Execute(f, m); err != nil {
		return talentosError{err, "Could not render template."}
	}
	return nil
}

// resetConfig moves the current settings aside and writes a fresh file.
func resetConfig(path string) (string, error) {
	backup := path + ".bak"
	if err := os.Rename(path, backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", talentosError{err, "Could not backup settings file."}
	}
	if err := createConfigFile(path); err != nil {
		return "", err
	}
	return backup, nil
}

func useLine() string {
	appName := filepath.Base(os.Args[0])

	if stdoutRenderer().ColorProfile() == termenv.TrueColor {
		appName = makeGradientText(stdoutStyles().AppName, appName)
	}

	return fmt.Sprintf(
		"%s %s",
		appName,
		stdoutStyles().CliArgs.Render("[OPTIONS] RESUME_FILE"),
	)
}

func usageFunc(cmd *cobra.Command) error {
	fmt.Printf("Resume analysis in your terminal, streamed as it is written.\n\n")
	fmt.Printf(
		"Usage:\n  %s\n\n",
		useLine(),
	)
	fmt.Println("Options:")
	cmd.Flags().VisitAll(func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand == "" {
			fmt.Printf(
				"  %-44s %s\n",
				stdoutStyles().Flag.Render("--"+f.Name),
				stdoutStyles().FlagDesc.Render(f.Usage),
			)
		} else {
			fmt.Printf(
				"  %s%s %-40s %s\n",
				stdoutStyles().Flag.Render("-"+f.Shorthand),
				stdoutStyles().FlagComma,
				stdoutStyles().Flag.Render("--"+f.Name),
				stdoutStyles().FlagDesc.Render(f.Usage),
			)
		}
	})
	if cmd.HasAvailableSubCommands() {
		fmt.Println("\nCommands:")
		for _, sub := range cmd.Commands() {
			if !sub.IsAvailableCommand() {
				continue
			}
			fmt.Printf(
				"  %-44s %s\n",
				stdoutStyles().Flag.Render(sub.Name()),
				stdoutStyles().FlagDesc.Render(sub.Short),
			)
		}
	}
	desc, example := randomExample()
	fmt.Printf(
		"\nExample:\n  %s\n  %s\n",
		stdoutStyles().Comment.Render("# "+desc),
		cheapHighlighting(stdoutStyles(), example),
	)

	return nil
}
