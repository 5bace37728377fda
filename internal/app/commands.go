package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Jeevanlr/mental-prediction/internal/capture"
	"github.com/Jeevanlr/mental-prediction/internal/gateway"
	"github.com/Jeevanlr/mental-prediction/internal/history"
	"github.com/Jeevanlr/mental-prediction/internal/speech"
)

// RedirectDelay is how long the registration success message stays up.
const RedirectDelay = 2 * time.Second

const cameraPollInterval = 500 * time.Millisecond

// historyLimit caps the history screen.
const historyLimit = 20

func loginCmd(gw Gateway, token int, email, password string) tea.Cmd {
	return func() tea.Msg {
		out, err := gw.Login(context.Background(), email, password)
		return LoginResultMsg{Token: token, Outcome: out, Err: err}
	}
}

func registerCmd(r Registrar, token int, p gateway.Profile) tea.Cmd {
	return func() tea.Msg {
		out, err := r.Register(context.Background(), p)
		return RegisterResultMsg{Token: token, Outcome: out, Err: err}
	}
}

// redirectCmd schedules the move to login after registration.
func redirectCmd(token int) tea.Cmd {
	return tea.Tick(RedirectDelay, func(time.Time) tea.Msg {
		return RedirectLoginMsg{Token: token}
	})
}

func logoutCmd(gw Gateway) tea.Cmd {
	return func() tea.Msg {
		return LogoutDoneMsg{Err: gw.Logout(context.Background())}
	}
}

func symptomsCmd(gw Gateway, token int, flags map[string]int) tea.Cmd {
	return func() tea.Msg {
		res, err := gw.PredictSymptoms(context.Background(), flags)
		return SymptomResultMsg{Token: token, Result: res, Err: err}
	}
}

func textCmd(gw Gateway, token int, statement string) tea.Cmd {
	return func() tea.Msg {
		res, err := gw.PredictText(context.Background(), statement)
		return TextResultMsg{Token: token, Result: res, Err: err}
	}
}

func chatCmd(gw Gateway, token int, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := gw.SendChatMessage(context.Background(), text)
		return ChatReplyMsg{Token: token, Reply: reply, Err: err}
	}
}

// startCaptureCmd resolves the camera source.
func startCaptureCmd(r *capture.Resolver, token int) tea.Cmd {
	return func() tea.Msg {
		s, err := r.Start(context.Background())
		return CaptureStartedMsg{Token: token, Session: s, Err: err}
	}
}

func cameraTickCmd(token int) tea.Cmd {
	return tea.Tick(cameraPollInterval, func(time.Time) tea.Msg {
		return CameraTickMsg{Token: token}
	})
}

// analyzeCmd captures one frame and submits it.
func analyzeCmd(a *capture.Analyzer, token int) tea.Cmd {
	return func() tea.Msg {
		res, err := a.CaptureAndAnalyze(context.Background())
		return EmotionResultMsg{Token: token, Result: res, Err: err}
	}
}

func startListeningCmd(p *speech.Pipeline, token int) tea.Cmd {
	return func() tea.Msg {
		updates, err := p.Start(context.Background())
		return ListenStartedMsg{Token: token, Updates: updates, Err: err}
	}
}

// waitSpeechCmd reads the next update from the speech pipeline.
func waitSpeechCmd(updates <-chan speech.Update, token int) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		return SpeechUpdateMsg{Token: token, Updates: updates, Update: u, Closed: !ok}
	}
}

func stopListeningCmd(p *speech.Pipeline) tea.Cmd {
	return func() tea.Msg {
		_ = p.Stop()
		return nil
	}
}

func loadHistoryCmd(store *history.Store, token int) tea.Cmd {
	return func() tea.Msg {
		if store == nil {
			return HistoryLoadedMsg{Token: token}
		}
		items, err := store.Recent(historyLimit)
		return HistoryLoadedMsg{Token: token, Items: items, Err: err}
	}
}

// recordCmd journals a result. A nil store records nothing.
func recordCmd(store *history.Store, a history.Assessment) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		_, err := store.Record(a)
		return historyRecordedMsg{err: err}
	}
}
