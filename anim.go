package main

import (
	"math/rand"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	charCyclingFPS     = time.Second / 22
	initialCharsLength = 10
)

var charRunes = []rune("0123456789abcdefABCDEF~!@#$£€%^&*()+=_")

var ellipsisSpinner = spinner.Spinner{
	Frames: []string{"", ".", "..", "..."},
	FPS:    time.Second / 3, //nolint:mnd
}

type charState int

const (
	charInitialState charState = iota
	charCyclingState
	charEndOfLifeState
)

// cyclingChar is a single animated character.
type cyclingChar struct {
	finalValue   rune // if < 0 cycle forever
	currentValue rune
	initialDelay time.Duration
	lifetime     time.Duration
}

func (c cyclingChar) randomRune() rune {
	return charRunes[rand.Intn(len(charRunes))] //nolint:gosec
}

func (c cyclingChar) state(start time.Time) charState {
	now := time.Now()
	if now.Before(start.Add(c.initialDelay)) {
		return charInitialState
	}
	if c.finalValue > 0 && now.After(start.Add(c.initialDelay).Add(c.lifetime)) {
		return charEndOfLifeState
	}
	return charCyclingState
}

type stepCharsMsg struct{}

func stepChars() tea.Cmd {
	return tea.Tick(charCyclingFPS, func(_ time.Time) tea.Msg {
		return stepCharsMsg{}
	})
}

// anim is the model that manages the animation that displays while the
// backend is still thinking and nothing was streamed yet.
type anim struct {
	start           time.Time
	chars           []cyclingChar
	style           lipgloss.Style
	ellipsis        spinner.Model
	ellipsisStarted bool
	labelLength     int
}

func newAnim(label string, style lipgloss.Style) anim {
	c := anim{
		start:    time.Now(),
		style:    style,
		ellipsis: spinner.New(spinner.WithSpinner(ellipsisSpinner)),
	}

	makeDelay := func(a int32, b time.Duration) time.Duration {
		return time.Duration(rand.Int31n(a)) * (time.Millisecond * b) //nolint:gosec
	}

	makeInitialDelay := func() time.Duration {
		return makeDelay(8, 60) //nolint:mnd
	}

	runes := []rune(" " + label)
	c.labelLength = len(runes)
	c.chars = make([]cyclingChar, initialCharsLength+len(runes))

	// Initial characters that cycle forever.
	for i := range initialCharsLength {
		c.chars[i] = cyclingChar{
			finalValue:   -1,
			initialDelay: makeInitialDelay(),
		}
	}

	// Label text that only cycles for a little while.
	for i, r := range runes {
		c.chars[i+initialCharsLength] = cyclingChar{
			finalValue:   r,
			initialDelay: makeInitialDelay(),
			lifetime:     makeDelay(5, 180), //nolint:mnd
		}
	}

	return c
}

// Init initializes the animation.
func (c anim) Init() tea.Cmd {
	return stepChars()
}

// Update handles messages.
func (c anim) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case stepCharsMsg:
		var cmd tea.Cmd
		for i, char := range c.chars {
			switch char.state(c.start) {
			case charInitialState:
				c.chars[i].currentValue = '.'
			case charCyclingState:
				c.chars[i].currentValue = char.randomRune()
			case charEndOfLifeState:
				c.chars[i].currentValue = char.finalValue
			}
		}

		if !c.ellipsisStarted {
			var eol int
			for _, char := range c.chars {
				if char.state(c.start) == charEndOfLifeState {
					eol++
				}
			}
			if eol == c.labelLength {
				// If our entire label has reached end of life, start the
				// ellipsis "spinner" after a short pause.
				c.ellipsisStarted = true
				cmd = tea.Tick(time.Millisecond*220, func(_ time.Time) tea.Msg { //nolint:mnd
					return c.ellipsis.Tick()
				})
			}
		}

		return c, tea.Batch(stepChars(), cmd)
	case spinner.TickMsg:
		var cmd tea.Cmd
		c.ellipsis, cmd = c.ellipsis.Update(msg)
		return c, cmd
	default:
		return c, nil
	}
}

// View renders the animation.
func (c anim) View() string {
	var b strings.Builder
	for _, char := range c.chars {
		switch char.state(c.start) {
		case charInitialState:
			b.WriteString(c.style.Render(string(char.currentValue)))
		case charCyclingState:
			if char.finalValue < 0 {
				b.WriteString(c.style.Render(string(char.currentValue)))
				continue
			}
			b.WriteRune(char.currentValue)
		case charEndOfLifeState:
			b.WriteRune(char.currentValue)
		}
	}
	return b.String() + c.ellipsis.View()
}
