package app

import (
	"github.com/Jeevanlr/mental-prediction/internal/capture"
	"github.com/Jeevanlr/mental-prediction/internal/gateway"
	"github.com/Jeevanlr/mental-prediction/internal/history"
	"github.com/Jeevanlr/mental-prediction/internal/speech"
)

// Every result message carries the navigation token that was current when
// its command was issued. Results for a screen the user has left are dropped.

// LoginResultMsg carries the outcome of a login attempt.
type LoginResultMsg struct {
	Token   int
	Outcome gateway.SessionOutcome
	Err     error
}

// RegisterResultMsg carries the outcome of a registration.
type RegisterResultMsg struct {
	Token   int
	Outcome gateway.RegistrationOutcome
	Err     error
}

// RedirectLoginMsg fires after a successful registration.
type RedirectLoginMsg struct {
	Token int
}

// LogoutDoneMsg is sent when the best-effort logout returns.
type LogoutDoneMsg struct {
	Err error
}

// SymptomResultMsg carries a symptom-checklist prediction.
type SymptomResultMsg struct {
	Token  int
	Result gateway.SymptomResult
	Err    error
}

// TextResultMsg carries a free-text prediction.
type TextResultMsg struct {
	Token  int
	Result gateway.TextResult
	Err    error
}

// CaptureStartedMsg is sent when the camera source has been resolved.
type CaptureStartedMsg struct {
	Token   int
	Session *capture.Session
	Err     error
}

// CameraTickMsg refreshes the camera readiness indicator.
type CameraTickMsg struct {
	Token int
}

// EmotionResultMsg carries a frame-based emotion prediction.
type EmotionResultMsg struct {
	Token  int
	Result gateway.EmotionResult
	Err    error
}

// ListenStartedMsg is sent when the speech pipeline starts or fails to.
type ListenStartedMsg struct {
	Token   int
	Updates <-chan speech.Update
	Err     error
}

// SpeechUpdateMsg wraps one update from the speech pipeline.
type SpeechUpdateMsg struct {
	Token   int
	Updates <-chan speech.Update
	Update  speech.Update
	Closed  bool
}

// ChatReplyMsg carries the assistant's reply.
type ChatReplyMsg struct {
	Token int
	Reply gateway.ChatReply
	Err   error
}

// HistoryLoadedMsg carries recent results from the local journal.
type HistoryLoadedMsg struct {
	Token int
	Items []history.Assessment
	Err   error
}

type historyRecordedMsg struct{ err error }
