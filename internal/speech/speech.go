// Package speech turns a streaming speech recognizer into a transcript and
// submits it for multimodal prediction.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// State is the lifecycle of one transcript session.
type State int

const (
	StateIdle State = iota
	StateListening
	StateFinalizing // user stopped, waiting for the recognizer to end
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateFinalizing:
		return "finalizing"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Terminal reports whether no further events are applied.
func (s State) Terminal() bool { return s == StateEnded || s == StateFailed }

type EventKind int

const (
	EventInterim EventKind = iota
	EventFinal
	EventError
	EventEnd
)

// Event is one recognizer emission.
type Event struct {
	Kind EventKind
	Text string // interim or final segment
	Code string // error code
}

// Options configure a recognition session.
type Options struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// Recognizer starts streaming recognition sessions.
type Recognizer interface {
	Start(ctx context.Context, opts Options) (Stream, error)
}

// Stream is a running recognition session. Events is closed after the last
// event; a closed channel counts as end of speech.
type Stream interface {
	Events() <-chan Event
	Stop() error
}

// Capability says whether speech recognition can be used at all.
type Capability struct {
	recognizer Recognizer
	reason     string
}

func Available(r Recognizer) Capability { return Capability{recognizer: r} }

func Unavailable(reason string) Capability { return Capability{reason: reason} }

func (c Capability) Available() bool { return c.recognizer != nil }

func (c Capability) Reason() string { return c.reason }

// UnsupportedError means no recognizer is available.
type UnsupportedError struct {
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return "Speech recognition is not supported on this system."
	}
	return fmt.Sprintf("Speech recognition is not supported on this system (%s).", e.Reason)
}

// RecognizerError carries the recognizer's error code verbatim.
type RecognizerError struct {
	Code string
}

func (e *RecognizerError) Error() string { return "Speech error: " + e.Code }

var (
	ErrEmptyTranscript = errors.New("No clear speech detected. Please check your microphone and try again.")
	ErrSessionActive   = errors.New("A voice capture is already in progress.")
)

// Session is the transcript state machine for one listening run.
type Session struct {
	mu        sync.Mutex
	state     State
	committed string
	interim   string
	err       error
}

// NewSession returns a session in StateListening.
func NewSession() *Session {
	return &Session{state: StateListening}
}

// Apply folds ev into the session and reports whether it changed anything.
// Events after a terminal state are ignored.
func (s *Session) Apply(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() || s.state == StateIdle {
		return false
	}
	switch ev.Kind {
	case EventInterim:
		s.interim = strings.TrimSpace(ev.Text)
	case EventFinal:
		s.committed = join(s.committed, strings.TrimSpace(ev.Text))
		s.interim = ""
	case EventError:
		s.state = StateFailed
		s.err = &RecognizerError{Code: ev.Code}
	case EventEnd:
		s.state = StateEnded
		s.interim = ""
	default:
		return false
	}
	return true
}

// Finalize moves a listening session to StateFinalizing.
func (s *Session) Finalize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateListening {
		return false
	}
	s.state = StateFinalizing
	return true
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Committed is the concatenation of every finalized segment.
func (s *Session) Committed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Live is the committed transcript followed by the current interim segment.
func (s *Session) Live() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return join(s.committed, s.interim)
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
