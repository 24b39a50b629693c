package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/charmbracelet/x/exp/ordered"
	"github.com/talentos/talentos/internal/proto"
	"github.com/talentos/talentos/internal/stream"
)

const (
	minWordWrap    = 20
	renderInterval = 100 * time.Millisecond
)

type state int

const (
	startState state = iota
	analyzingState
	doneState
	cancelledState
	errorState
)

// contentMsg carries the latest session snapshot while a report streams in.
type contentMsg struct{ state stream.State }

// settledMsg is sent once an exchange started by the model returns.
type settledMsg struct {
	run   int
	state stream.State
}

// renderMsg asks for a deferred Markdown render of the streamed report.
type renderMsg struct{}

// jdEditedMsg is sent when the editor used for a retry exits.
type jdEditedMsg struct {
	path string
	err  error
}

// Talentos is the Bubble Tea model that renders an analysis while it streams.
type Talentos struct {
	Output   string
	Failure  string
	TimedOut bool
	Err      error

	Config  *Config
	payload proto.Payload
	session *stream.Session
	updates <-chan stream.State
	ctx     context.Context
	logger  *log.Logger

	state      state
	quitting   bool
	run        int
	anim       tea.Model
	renderer   *glamour.TermRenderer
	styles     styles
	rendered   string
	renderGap  time.Duration
	renderedAt time.Time
	dirty      bool
	pending    bool
	width      int
	height     int
}

func newTalentos(
	ctx context.Context,
	cfg *Config,
	client stream.Analyzer,
	payload proto.Payload,
	logger *log.Logger,
) *Talentos {
	updates := make(chan stream.State, 1)
	session := stream.NewSession(
		client,
		stream.WithObserver(latest(updates)),
		stream.WithLogger(logger),
	)
	return &Talentos{
		Config:    cfg,
		payload:   payload,
		session:   session,
		updates:   updates,
		ctx:       ctx,
		logger:    logger,
		state:     startState,
		styles:    stderrStyles(),
		renderGap: renderInterval,
	}
}

// latest returns an observer that keeps only the newest snapshot in ch.
func latest(ch chan stream.State) func(stream.State) {
	return func(s stream.State) {
		for {
			select {
			case ch <- s:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Init implements tea.Model.
func (m *Talentos) Init() tea.Cmd {
	return m.start()
}

func (m *Talentos) start() tea.Cmd {
	m.run++
	m.state = analyzingState
	m.Output = ""
	m.Failure = ""
	m.rendered = ""
	m.dirty = false
	m.anim = newAnim(m.Config.StatusText, m.styles.CyclingChars)
	run := m.run
	m.logger.Debug("starting analysis", "run", run, "persona", m.payload.Persona)
	return tea.Batch(
		func() tea.Msg {
			return settledMsg{run: run, state: m.session.Start(m.ctx, m.payload)}
		},
		m.waitForUpdate(),
		m.anim.Init(),
	)
}

func (m *Talentos) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return contentMsg{<-m.updates}
	}
}

// Update implements tea.Model.
func (m *Talentos) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case contentMsg:
		if m.state != analyzingState {
			return m, m.waitForUpdate()
		}
		m.Output = msg.state.Content
		return m, tea.Batch(m.waitForUpdate(), m.throttleRender())
	case renderMsg:
		m.pending = false
		if m.dirty && m.state == analyzingState {
			m.render()
		}
		return m, nil
	case settledMsg:
		if msg.run != m.run || m.state != analyzingState {
			return m, nil
		}
		m.setOutput(msg.state.Content)
		switch {
		case msg.state.Failed():
			m.state = errorState
			m.Failure = msg.state.Failure
			return m, nil
		case errors.Is(m.ctx.Err(), context.DeadlineExceeded):
			m.TimedOut = true
			m.state = cancelledState
		case m.ctx.Err() != nil:
			m.state = cancelledState
		default:
			m.state = doneState
		}
		return m, tea.Quit
	case jdEditedMsg:
		return m, m.retry(msg)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.renderer = nil
		m.setOutput(m.Output)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.state == analyzingState {
				m.session.Cancel()
				m.setOutput(m.session.State().Content)
				m.state = cancelledState
			}
			m.quitting = true
			return m, tea.Quit
		case "r":
			if m.state == errorState {
				return m, m.editJD()
			}
		}
	}
	if m.state == analyzingState && m.Output == "" {
		var cmd tea.Cmd
		m.anim, cmd = m.anim.Update(msg)
		return m, cmd
	}
	return m, nil
}

// editJD resets the failed session and opens the job description in the
// editor before retrying.
func (m *Talentos) editJD() tea.Cmd {
	m.session.Reset()
	path, err := newJDFile(m.payload.JDText)
	if err != nil {
		m.Err = err
		return tea.Quit
	}
	c, err := editor.Cmd("talentos", path)
	if err != nil {
		m.Err = talentosError{err, "Could not edit the job description."}
		return tea.Quit
	}
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return jdEditedMsg{path: path, err: err}
	})
}

func (m *Talentos) retry(msg jdEditedMsg) tea.Cmd {
	if msg.err != nil {
		m.Err = talentosError{msg.err, "Missing $EDITOR"}
		return tea.Quit
	}
	jd, err := readJDFile(msg.path)
	if err != nil {
		m.Err = err
		return tea.Quit
	}
	if jd != "" {
		m.payload.JDText = jd
		m.payload.JDFile = nil
	}
	if err := m.payload.Validate(); err != nil {
		m.Err = talentosError{err, "Invalid input."}
		return tea.Quit
	}
	return m.start()
}

// throttleRender renders right away unless the last render was recent, in
// which case a single deferred render is scheduled. Rendering re-parses the
// whole report.
func (m *Talentos) throttleRender() tea.Cmd {
	since := time.Since(m.renderedAt)
	if m.Config.Raw || since >= m.renderGap {
		m.render()
		return nil
	}
	m.dirty = true
	if m.pending {
		return nil
	}
	m.pending = true
	return tea.Tick(m.renderGap-since, func(time.Time) tea.Msg {
		return renderMsg{}
	})
}

func (m *Talentos) setOutput(content string) {
	m.Output = content
	m.render()
}

func (m *Talentos) render() {
	content := m.Output
	m.dirty = false
	m.renderedAt = time.Now()
	if m.Config.Raw || content == "" {
		m.rendered = content
		return
	}
	if m.renderer == nil {
		r, err := newMarkdownRenderer(m.Config, m.width)
		if err != nil {
			m.logger.Warn("markdown rendering disabled", "err", err)
			m.Config.Raw = true
			m.rendered = content
			return
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		m.rendered = content
		return
	}
	m.rendered = out
}

// View implements tea.Model.
func (m *Talentos) View() string {
	if m.quitting {
		return ""
	}
	switch m.state {
	case errorState:
		return m.errorView()
	case analyzingState:
		if m.Output == "" {
			if m.Config.Quiet {
				return ""
			}
			return m.anim.View()
		}
		return tail(m.rendered, m.height-1)
	}
	return ""
}

func (m *Talentos) errorView() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(m.styles.ErrPadding.Render(m.styles.ErrorHeader.String(), "Analysis failed."))
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.ErrPadding.Render(m.styles.ErrorDetails.Render(m.Failure)))
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.ErrPadding.Render(
		m.styles.Comment.Render("Press"),
		m.styles.InlineCode.Render("r"),
		m.styles.Comment.Render("to edit the job description and retry,"),
		m.styles.InlineCode.Render("q"),
		m.styles.Comment.Render("to quit."),
	))
	sb.WriteString("\n")
	return sb.String()
}

// tail keeps the last n lines of s so the newest text stays visible.
func tail(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func markdownStyle(theme string) string {
	if theme != "auto" {
		return theme
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// newMarkdownRenderer builds a renderer wrapping at the configured width,
// narrowed to the terminal width when it is known.
func newMarkdownRenderer(cfg *Config, width int) (*glamour.TermRenderer, error) {
	wrap := cfg.WordWrap
	if width > 0 {
		wrap = ordered.Clamp(width, minWordWrap, cfg.WordWrap)
	}
	//nolint:wrapcheck
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle(markdownStyle(cfg.Theme)),
		glamour.WithWordWrap(wrap),
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithEmoji(),
	)
}

// renderReport renders the final report for stdout.
func renderReport(cfg *Config, content string) string {
	if cfg.Raw || !isOutputTTY() {
		return content
	}
	r, err := newMarkdownRenderer(cfg, 0)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

func runInteractive(m *Talentos) (*Talentos, error) {
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return m, talentosError{err, "Couldn't start Bubble Tea program."}
	}
	return final.(*Talentos), nil //nolint:forcetypeassert
}
