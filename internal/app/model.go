package app

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/Jeevanlr/mental-prediction/internal/capture"
	"github.com/Jeevanlr/mental-prediction/internal/gateway"
	"github.com/Jeevanlr/mental-prediction/internal/history"
	"github.com/Jeevanlr/mental-prediction/internal/speech"
	"github.com/Jeevanlr/mental-prediction/internal/symptoms"

	tea "github.com/charmbracelet/bubbletea"
)

// Screen identifies the active view.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenRegister
	ScreenMenu
	ScreenSymptoms
	ScreenText
	ScreenEmotion
	ScreenVoice
	ScreenChat
	ScreenHistory
)

func (s Screen) title() string {
	switch s {
	case ScreenLogin:
		return "Sign in"
	case ScreenRegister:
		return "Create account"
	case ScreenMenu:
		return "Assessments"
	case ScreenSymptoms:
		return "Symptom check"
	case ScreenText:
		return "Describe how you feel"
	case ScreenEmotion:
		return "Emotion detection"
	case ScreenVoice:
		return "Voice and emotion"
	case ScreenChat:
		return "Chat assistant"
	case ScreenHistory:
		return "Recent results"
	}
	return ""
}

// ChatGreeting opens every chat.
const ChatGreeting = "Hi there! I'm your AI mental health assistant. How are you feeling today?"

// ChatFallback replaces a reply that could not be fetched.
const ChatFallback = "Sorry, I'm having trouble responding right now."

const speakPrompt = "Say something now..."

// Gateway is the subset of the prediction service the screens call directly.
type Gateway interface {
	Login(ctx context.Context, email, password string) (gateway.SessionOutcome, error)
	Logout(ctx context.Context) error
	PredictSymptoms(ctx context.Context, flags map[string]int) (gateway.SymptomResult, error)
	PredictText(ctx context.Context, statement string) (gateway.TextResult, error)
	SendChatMessage(ctx context.Context, text string) (gateway.ChatReply, error)
}

// Registrar submits registrations after the client-side checks.
type Registrar interface {
	Register(ctx context.Context, p gateway.Profile) (gateway.RegistrationOutcome, error)
}

// Deps are the services the TUI drives.
type Deps struct {
	BaseURL  string
	Gateway  Gateway
	Accounts Registrar
	Resolver *capture.Resolver
	Analyzer *capture.Analyzer
	Speech   *speech.Pipeline
	History  *history.Store // optional
	Logger   *zap.Logger
}

type menuItem struct {
	label  string
	screen Screen
}

var menuItems = []menuItem{
	{"Symptom check", ScreenSymptoms},
	{"Describe how you feel", ScreenText},
	{"Emotion detection (camera)", ScreenEmotion},
	{"Voice and emotion", ScreenVoice},
	{"Chat assistant", ScreenChat},
	{"Recent results", ScreenHistory},
	{"Log out", ScreenLogin},
}

// ChatLine is one message in the chat transcript.
type ChatLine struct {
	FromUser bool
	Text     string
}

// Model is the root bubbletea model for the MindCheck TUI.
type Model struct {
	deps   Deps
	logger *zap.Logger

	// Navigation
	screen Screen
	token  int

	// UI state
	width  int
	height int
	busy   bool

	// Messages
	errorMessage string
	notice       string

	// Auth
	login    form
	register form

	menuIndex int

	// Symptoms
	symptomIndex  int
	selected      map[string]bool
	symptomResult *gateway.SymptomResult

	// Free text
	statement  form
	textResult *gateway.TextResult

	// Camera
	cameraKind     capture.SourceKind
	cameraURL      string
	cameraActive   bool
	cameraStarting bool
	cameraReady    bool
	emotionResult  *gateway.EmotionResult

	// Voice
	listening        bool
	finalizing       bool
	liveTranscript   string
	multimodalResult *gateway.MultimodalResult

	// Chat
	chatLines []ChatLine
	chatInput form

	// History
	historyItems []history.Assessment
}

// New creates a Model on the login screen.
func New(deps Deps) Model {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return Model{
		deps:      deps,
		logger:    logger.Named("app"),
		screen:    ScreenLogin,
		login:     loginForm(),
		register:  registerForm(),
		statement: singleLineForm("statement", "Statement"),
		chatInput: singleLineForm("message", "You"),
		selected:  map[string]bool{},
	}
}

// Init sets the terminal title.
func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("MindCheck")
}

// Screen returns the active screen.
func (m Model) Screen() Screen { return m.screen }

// navigate leaves the current screen and enters another. Capture resources
// held by the screen being left are released.
func (m *Model) navigate(to Screen) tea.Cmd {
	var cmds []tea.Cmd
	switch m.screen {
	case ScreenEmotion:
		m.stopCamera()
	case ScreenVoice:
		if m.listening && m.deps.Speech != nil {
			cmds = append(cmds, stopListeningCmd(m.deps.Speech))
		}
		m.listening = false
		m.finalizing = false
	}

	m.token++
	m.screen = to
	m.busy = false
	m.errorMessage = ""
	m.notice = ""

	switch to {
	case ScreenEmotion:
		m.emotionResult = nil
		if m.deps.Resolver != nil {
			m.notice = "Starting camera..."
			m.cameraStarting = true
			cmds = append(cmds, startCaptureCmd(m.deps.Resolver, m.token))
		}
	case ScreenText:
		m.statement.reset()
		m.textResult = nil
	case ScreenSymptoms:
		m.symptomResult = nil
	case ScreenVoice:
		m.liveTranscript = ""
	case ScreenChat:
		if len(m.chatLines) == 0 {
			m.chatLines = append(m.chatLines, ChatLine{Text: ChatGreeting})
		}
	case ScreenHistory:
		cmds = append(cmds, loadHistoryCmd(m.deps.History, m.token))
	case ScreenLogin:
		m.login.reset()
	case ScreenRegister:
		m.register.reset()
	}
	return tea.Batch(cmds...)
}

func (m *Model) stopCamera() {
	if m.deps.Resolver != nil {
		m.deps.Resolver.Stop()
	}
	m.cameraActive = false
	m.cameraStarting = false
	m.cameraReady = false
	m.cameraKind = capture.SourceNone
	m.cameraURL = ""
}

// teardown releases every held capture resource before quitting.
func (m *Model) teardown() {
	m.stopCamera()
	if m.deps.Speech != nil {
		_ = m.deps.Speech.Stop()
	}
}

// fail shows err and reports it when it is a server fault.
func (m *Model) fail(op string, err error) {
	m.errorMessage = gateway.Message(err)
	m.logger.Warn(op+" failed", zap.Error(err))
	if gateway.IsUnexpected(err) {
		sentry.CaptureException(err)
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case LoginResultMsg:
		if msg.Token != m.token {
			return m, nil
		}
		m.busy = false
		if msg.Err != nil {
			m.fail("login", msg.Err)
			return m, nil
		}
		m.logger.Info("logged in")
		cmd := m.navigate(ScreenMenu)
		return m, cmd

	case RegisterResultMsg:
		if msg.Token != m.token {
			return m, nil
		}
		m.busy = false
		if msg.Err != nil {
			m.fail("register", msg.Err)
			return m, nil
		}
		if !msg.Outcome.Created {
			m.errorMessage = msg.Outcome.Message
			return m, nil
		}
		m.notice = msg.Outcome.Message + " Redirecting to login..."
		return m, redirectCmd(m.token)

	case RedirectLoginMsg:
		if msg.Token != m.token || m.screen != ScreenRegister {
			return m, nil
		}
		cmd := m.navigate(ScreenLogin)
		return m, cmd

	case LogoutDoneMsg:
		if msg.Err != nil {
			m.logger.Debug("logout", zap.Error(msg.Err))
		}
		return m, nil

	case SymptomResultMsg:
		if msg.Token != m.token {
			return m, nil
		}
		m.busy = false
		if msg.Err != nil {
			m.fail("predict symptoms", msg.Err)
			return m, nil
		}
		res := msg.Result
		m.symptomResult = &res
		return m, recordCmd(m.deps.History, history.Assessment{
			Kind: history.KindSymptoms, Label: res.Condition, Summary: res.Narrative,
		})

	case TextResultMsg:
		if msg.Token != m.token {
			return m, nil
		}
		m.busy = false
		if msg.Err != nil {
			m.fail("predict text", msg.Err)
			return m, nil
		}
		res := msg.Result
		m.textResult = &res
		return m, recordCmd(m.deps.History, history.Assessment{
			Kind: history.KindText, Label: res.Label, Summary: res.Narrative,
		})

	case CaptureStartedMsg:
		if msg.Token != m.token {
			// The screen that asked for this camera is gone.
			if msg.Session != nil && m.deps.Resolver != nil {
				m.deps.Resolver.Release(msg.Session)
			}
			return m, nil
		}
		m.cameraStarting = false
		m.notice = ""
		if errors.Is(msg.Err, capture.ErrStartAborted) {
			return m, nil
		}
		if msg.Err != nil {
			m.fail("start camera", msg.Err)
			return m, nil
		}
		m.cameraActive = msg.Session.Active()
		m.cameraKind = msg.Session.Kind
		m.cameraURL = msg.Session.URL
		m.cameraReady = ready(msg.Session)
		return m, cameraTickCmd(m.token)

	case CameraTickMsg:
		if msg.Token != m.token || m.screen != ScreenEmotion || !m.cameraActive {
			return m, nil
		}
		m.cameraReady = ready(m.deps.Resolver.Active())
		return m, cameraTickCmd(m.token)

	case EmotionResultMsg:
		if msg.Token != m.token {
			return m, nil
		}
		m.busy = false
		if msg.Err != nil {
			// The session stays active so the user can retry.
			m.fail("predict emotion", msg.Err)
			return m, nil
		}
		res := msg.Result
		m.emotionResult = &res
		m.cameraActive = false
		m.cameraReady = false
		return m, recordCmd(m.deps.History, history.Assessment{
			Kind: history.KindEmotion, Label: res.Emotion, Summary: res.Narrative,
		})

	case ListenStartedMsg:
		if msg.Err != nil {
			if msg.Token == m.token {
				m.listening = false
				m.fail("start listening", msg.Err)
			}
			return m, nil
		}
		if msg.Token != m.token {
			// Drain an orphaned session so its pipeline can finish.
			return m, tea.Batch(stopListeningCmd(m.deps.Speech), waitSpeechCmd(msg.Updates, msg.Token))
		}
		m.notice = speakPrompt
		return m, waitSpeechCmd(msg.Updates, m.token)

	case SpeechUpdateMsg:
		if msg.Closed {
			return m, nil
		}
		if msg.Token != m.token {
			return m, waitSpeechCmd(msg.Updates, msg.Token)
		}
		return m.applySpeech(msg)

	case ChatReplyMsg:
		if msg.Token != m.token {
			return m, nil
		}
		m.busy = false
		if msg.Err != nil {
			m.logger.Warn("chat failed", zap.Error(msg.Err))
			if gateway.IsUnexpected(msg.Err) {
				sentry.CaptureException(msg.Err)
			}
			m.chatLines = append(m.chatLines, ChatLine{Text: ChatFallback})
			return m, nil
		}
		m.chatLines = append(m.chatLines, ChatLine{Text: msg.Reply.Text})
		return m, nil

	case HistoryLoadedMsg:
		if msg.Token != m.token {
			return m, nil
		}
		if msg.Err != nil {
			m.fail("load history", msg.Err)
			return m, nil
		}
		m.historyItems = msg.Items
		return m, nil

	case historyRecordedMsg:
		if msg.err != nil {
			m.logger.Warn("record history", zap.Error(msg.err))
		}
		return m, nil
	}

	return m, nil
}

func ready(s *capture.Session) bool {
	if !s.Active() || s.Source() == nil {
		return false
	}
	return s.Source().Ready()
}

// applySpeech folds a pipeline update into the voice screen. Prior results
// stay on screen when the new submission fails.
func (m Model) applySpeech(msg SpeechUpdateMsg) (tea.Model, tea.Cmd) {
	u := msg.Update
	m.liveTranscript = u.Live
	m.finalizing = u.State == speech.StateFinalizing
	if !u.Done {
		return m, waitSpeechCmd(msg.Updates, msg.Token)
	}

	m.listening = false
	m.finalizing = false
	m.busy = false
	m.notice = ""
	var cmd tea.Cmd
	switch {
	case errors.Is(u.Err, speech.ErrEmptyTranscript):
		m.errorMessage = u.Err.Error()
	case u.Err != nil:
		m.fail("voice analysis", u.Err)
	case u.Result != nil:
		res := *u.Result
		m.multimodalResult = &res
		cmd = recordCmd(m.deps.History, history.Assessment{
			Kind: history.KindMultimodal, Label: res.CombinedLabel, Summary: res.Narrative,
		})
	}
	return m, tea.Batch(cmd, waitSpeechCmd(msg.Updates, msg.Token))
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		m.teardown()
		return m, tea.Quit
	}

	switch m.screen {
	case ScreenLogin:
		return m.loginKey(msg)
	case ScreenRegister:
		return m.registerKey(msg)
	case ScreenMenu:
		return m.menuKey(msg)
	case ScreenSymptoms:
		return m.symptomsKey(msg)
	case ScreenText:
		return m.textKey(msg)
	case ScreenEmotion:
		return m.emotionKey(msg)
	case ScreenVoice:
		return m.voiceKey(msg)
	case ScreenChat:
		return m.chatKey(msg)
	case ScreenHistory:
		return m.historyKey(msg)
	}
	return m, nil
}

func (m Model) loginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEnter:
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.errorMessage = ""
		return m, loginCmd(m.deps.Gateway, m.token, m.login.value("email"), m.login.value("password"))
	case KeyRegister:
		cmd := m.navigate(ScreenRegister)
		return m, cmd
	}
	m.login.handleKey(msg)
	return m, nil
}

func (m Model) registerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc:
		cmd := m.navigate(ScreenLogin)
		return m, cmd
	case KeyEnter, KeySubmit:
		if msg.String() == KeyEnter && !m.register.onLast() {
			m.register.next()
			return m, nil
		}
		if m.busy || m.notice != "" {
			return m, nil
		}
		m.busy = true
		m.errorMessage = ""
		return m, registerCmd(m.deps.Accounts, m.token, m.profile())
	}
	m.register.handleKey(msg)
	return m, nil
}

func (m Model) profile() gateway.Profile {
	f := m.register
	return gateway.Profile{
		Name:           f.value("name"),
		DOB:            f.value("dob"),
		Email:          f.value("email"),
		Password:       f.value("password"),
		Phone:          f.value("phone"),
		DoctorName:     f.value("doctor_name"),
		DoctorEmail:    f.value("doctor_email"),
		DoctorPhone:    f.value("doctor_phone"),
		Relative1Name:  f.value("relative1_name"),
		Relative1Email: f.value("relative1_email"),
		Relative1Phone: f.value("relative1_phone"),
		Relative2Name:  f.value("relative2_name"),
		Relative2Email: f.value("relative2_email"),
		Relative2Phone: f.value("relative2_phone"),
	}
}

func (m Model) menuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit:
		m.teardown()
		return m, tea.Quit
	case KeyUp, KeyK:
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case KeyDown, KeyJ:
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case KeyEnter:
		item := menuItems[m.menuIndex]
		if item.screen == ScreenLogin {
			m.menuIndex = 0
			m.chatLines = nil
			cmd := m.navigate(ScreenLogin)
			return m, tea.Batch(logoutCmd(m.deps.Gateway), cmd)
		}
		cmd := m.navigate(item.screen)
		return m, cmd
	}
	return m, nil
}

func (m Model) symptomsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc, KeyQuit:
		cmd := m.navigate(ScreenMenu)
		return m, cmd
	case KeyUp, KeyK:
		if m.symptomIndex > 0 {
			m.symptomIndex--
		}
	case KeyDown, KeyJ:
		if m.symptomIndex < len(symptoms.Catalog)-1 {
			m.symptomIndex++
		}
	case KeySpace:
		name := symptoms.Catalog[m.symptomIndex].Name
		if m.selected[name] {
			delete(m.selected, name)
		} else {
			m.selected[name] = true
		}
	case KeyEnter:
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.errorMessage = ""
		return m, symptomsCmd(m.deps.Gateway, m.token, symptoms.Flags(m.selected))
	}
	return m, nil
}

func (m Model) textKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc:
		cmd := m.navigate(ScreenMenu)
		return m, cmd
	case KeyEnter:
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.errorMessage = ""
		return m, textCmd(m.deps.Gateway, m.token, m.statement.value("statement"))
	}
	m.statement.handleKey(msg)
	return m, nil
}

func (m Model) emotionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc, KeyQuit:
		cmd := m.navigate(ScreenMenu)
		return m, cmd
	case KeyEnter, KeyCapture:
		if m.busy || m.deps.Analyzer == nil {
			return m, nil
		}
		m.busy = true
		m.errorMessage = ""
		return m, analyzeCmd(m.deps.Analyzer, m.token)
	case KeyRetry:
		if m.busy || m.cameraActive || m.cameraStarting || m.deps.Resolver == nil {
			return m, nil
		}
		m.emotionResult = nil
		m.errorMessage = ""
		m.notice = "Starting camera..."
		m.cameraStarting = true
		return m, startCaptureCmd(m.deps.Resolver, m.token)
	}
	return m, nil
}

func (m Model) voiceKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc, KeyQuit:
		cmd := m.navigate(ScreenMenu)
		return m, cmd
	case KeySpace:
		if m.deps.Speech == nil {
			return m, nil
		}
		if m.listening {
			if m.finalizing {
				return m, nil
			}
			m.finalizing = true
			m.notice = "Finishing up..."
			return m, stopListeningCmd(m.deps.Speech)
		}
		// A previous session may still be submitting its transcript.
		if m.busy || m.deps.Speech.Busy() {
			return m, nil
		}
		m.listening = true
		m.errorMessage = ""
		m.liveTranscript = ""
		return m, startListeningCmd(m.deps.Speech, m.token)
	}
	return m, nil
}

func (m Model) chatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc:
		cmd := m.navigate(ScreenMenu)
		return m, cmd
	case KeyEnter:
		text := strings.TrimSpace(m.chatInput.value("message"))
		if text == "" || m.busy {
			return m, nil
		}
		m.chatLines = append(m.chatLines, ChatLine{FromUser: true, Text: text})
		m.chatInput.reset()
		m.busy = true
		return m, chatCmd(m.deps.Gateway, m.token, text)
	}
	m.chatInput.handleKey(msg)
	return m, nil
}

func (m Model) historyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc, KeyQuit:
		cmd := m.navigate(ScreenMenu)
		return m, cmd
	case KeyRetry:
		return m, loadHistoryCmd(m.deps.History, m.token)
	}
	return m, nil
}

// Helpers

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
