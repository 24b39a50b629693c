package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// State is a snapshot of a session.
type State struct {
	// Content is the report accumulated so far by the current or most
	// recent exchange.
	Content string
	// Active is true while an exchange is in flight.
	Active bool
	// Failure is the last exchange's error message, empty if none.
	Failure string
}

// Failed reports whether the last exchange failed.
func (s State) Failed() bool { return s.Failure != "" }

// Analyzer runs a single exchange against the backend.
type Analyzer interface {
	Analyze(ctx context.Context, form Form, onChunk func(string)) error
}

var _ Analyzer = &Client{}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithObserver registers a function called with a fresh snapshot after
// every change. It is never called while the session lock is held.
func WithObserver(fn func(State)) SessionOption {
	return func(s *Session) {
		s.observer = fn
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session holds the live state of one analysis panel. At most one exchange is
// in flight at a time: starting a new one cancels the previous, and anything
// the old exchange still delivers is dropped.
type Session struct {
	analyzer Analyzer
	observer func(State)
	logger   *log.Logger

	mu      sync.Mutex
	content strings.Builder
	active  bool
	failure string
	cancel  context.CancelFunc
	gen     uint64
}

// NewSession creates a session backed by the given analyzer.
func NewSession(analyzer Analyzer, opts ...SessionOption) *Session {
	s := &Session{analyzer: analyzer}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	return s
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() State {
	return State{
		Content: s.content.String(),
		Active:  s.active,
		Failure: s.failure,
	}
}

// Start runs a new exchange and blocks until it settles, returning the final
// state. A still active exchange is cancelled first. Cancellation, either
// through Cancel, Reset, a newer Start or ctx, is not a failure.
func (s *Session) Start(ctx context.Context, form Form) State {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.logger.Debug("cancelling previous exchange", "generation", s.gen)
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.content.Reset()
	s.failure = ""
	s.active = true
	s.mu.Unlock()
	s.notify()

	err := s.run(ctx, form, gen)

	s.mu.Lock()
	current := gen == s.gen
	if current {
		switch {
		case err == nil:
		case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.logger.Debug("exchange cancelled", "generation", gen)
		default:
			s.failure = FailureMessage(err)
			s.logger.Debug("exchange failed", "generation", gen, "err", err)
		}
		s.active = false
		s.cancel = nil
	}
	state := s.snapshot()
	s.mu.Unlock()
	if current {
		s.notify()
	}
	return state
}

func (s *Session) run(ctx context.Context, form Form, gen uint64) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = recoveredError(v)
		}
	}()
	return s.analyzer.Analyze(ctx, form, func(chunk string) {
		s.append(ctx, gen, chunk)
	})
}

func (s *Session) append(ctx context.Context, gen uint64, chunk string) {
	s.mu.Lock()
	if gen != s.gen || ctx.Err() != nil {
		s.mu.Unlock()
		s.logger.Debug("dropping stale chunk", "generation", gen)
		return
	}
	s.content.WriteString(chunk)
	s.mu.Unlock()
	s.notify()
}

// Cancel aborts the in-flight exchange, if any. Content and failure are kept.
func (s *Session) Cancel() {
	s.mu.Lock()
	changed := s.cancelLocked()
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Reset aborts the in-flight exchange and discards its result.
func (s *Session) Reset() {
	s.mu.Lock()
	s.cancelLocked()
	s.content.Reset()
	s.failure = ""
	s.active = false
	s.mu.Unlock()
	s.notify()
}

func (s *Session) cancelLocked() bool {
	if s.cancel == nil {
		s.active = false
		return false
	}
	s.cancel()
	s.cancel = nil
	s.active = false
	// appends and the final settle of the aborted exchange become no-ops.
	s.gen++
	return true
}

func (s *Session) notify() {
	if s.observer == nil {
		return
	}
	s.observer(s.State())
}
