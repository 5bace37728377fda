package app

import (
	"fmt"
	"strings"

	"github.com/Jeevanlr/mental-prediction/internal/capture"
	"github.com/Jeevanlr/mental-prediction/internal/symptoms"
	"github.com/Jeevanlr/mental-prediction/internal/ui"
)

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderBody()...)
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	} else if m.notice != "" {
		sections = append(sections, ui.NoticeStyle.Render(m.notice))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	return ui.TitleStyle.Render("MindCheck") + ui.SubtitleStyle.Render("  "+m.screen.title())
}

func (m Model) renderStatusBar() string {
	var state string
	switch {
	case m.screen == ScreenEmotion && m.cameraActive:
		dot := ui.LiveDotStyle.Render("●")
		if m.cameraReady {
			dot = ui.ReadyDotStyle.Render("●")
		}
		state = dot + ui.StatusStyle.Render(" CAMERA "+strings.ToUpper(m.cameraKind.String()))
	case m.screen == ScreenVoice && m.listening:
		label := " LISTENING"
		if m.finalizing {
			label = " FINALIZING"
		}
		state = ui.LiveDotStyle.Render("●") + ui.StatusStyle.Render(label)
	case m.busy:
		state = ui.SpinnerStyle.Render("◌") + ui.StatusStyle.Render(" Working...")
	default:
		state = ui.IdleDotStyle.Render("○") + ui.StatusStyle.Render(" Idle")
	}
	return ui.StatusStyle.Render(truncateToWidth(m.deps.BaseURL, max(0, m.width-20))) + "  " + state
}

func (m Model) renderBody() []string {
	width := max(20, m.width-2)
	switch m.screen {
	case ScreenLogin:
		return m.login.render(width)
	case ScreenRegister:
		return m.register.render(width)
	case ScreenMenu:
		return m.renderMenu()
	case ScreenSymptoms:
		return m.renderSymptoms(width)
	case ScreenText:
		lines := m.statement.render(width)
		if r := m.textResult; r != nil {
			lines = append(lines, "")
			lines = append(lines, resultLines("Prediction", r.Label, r.Narrative, width)...)
		}
		return lines
	case ScreenEmotion:
		return m.renderEmotion(width)
	case ScreenVoice:
		return m.renderVoice(width)
	case ScreenChat:
		return m.renderChat(width)
	case ScreenHistory:
		return m.renderHistory(width)
	}
	return nil
}

func (m Model) renderMenu() []string {
	lines := make([]string, 0, len(menuItems))
	for i, item := range menuItems {
		if i == m.menuIndex {
			lines = append(lines, ui.SelectedStyle.Render("› "+item.label))
		} else {
			lines = append(lines, "  "+item.label)
		}
	}
	return lines
}

func (m Model) renderSymptoms(width int) []string {
	lines := []string{ui.SectionTitleStyle.Render("Select what you have been experiencing:")}
	for i, s := range symptoms.Catalog {
		box := "[ ]"
		if m.selected[s.Name] {
			box = "[x]"
		}
		line := fmt.Sprintf("  %s %-26s %s", box, s.Label(), s.Category)
		if i == m.symptomIndex {
			line = ui.SelectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if r := m.symptomResult; r != nil {
		lines = append(lines, "")
		lines = append(lines, resultLines("Condition", r.Condition, r.Narrative, width)...)
	}
	return lines
}

func (m Model) renderEmotion(width int) []string {
	var lines []string
	switch {
	case m.cameraActive && m.cameraKind == capture.SourceRemoteStream:
		lines = append(lines, ui.DimStyle.Render("Using the service video feed: ")+truncateToWidth(m.cameraURL, width-30))
	case m.cameraActive:
		lines = append(lines, ui.DimStyle.Render("Using the local camera."))
	case m.emotionResult == nil:
		lines = append(lines, ui.DimStyle.Render("Camera is not active."))
	}
	if m.cameraActive {
		if m.cameraReady {
			lines = append(lines, ui.NoticeStyle.Render("Camera ready. Look at the camera and press Enter."))
		} else {
			lines = append(lines, ui.DimStyle.Render("Waiting for the first frame..."))
		}
	}
	if r := m.emotionResult; r != nil {
		lines = append(lines, "")
		lines = append(lines, resultLines("Emotion", r.Emotion, r.Narrative, width)...)
	}
	return lines
}

func (m Model) renderVoice(width int) []string {
	var lines []string
	if m.deps.Speech == nil || !m.deps.Speech.Available() {
		lines = append(lines, ui.DimStyle.Render("Speech recognition is not available. Set DEEPGRAM_API_KEY to enable it."))
	}
	if m.liveTranscript != "" || m.listening {
		lines = append(lines, ui.SectionTitleStyle.Render("Transcript"))
		for _, l := range wrapText(m.liveTranscript+"▌", width) {
			lines = append(lines, ui.InterimTextStyle.Render(l))
		}
	}
	if r := m.multimodalResult; r != nil {
		lines = append(lines, "")
		lines = append(lines, ui.DimStyle.Render("Text: ")+r.TextLabel)
		lines = append(lines, ui.DimStyle.Render("Emotion: ")+r.Emotion)
		lines = append(lines, resultLines("Combined", r.CombinedLabel, r.Narrative, width)...)
	}
	return lines
}

func (m Model) renderChat(width int) []string {
	var lines []string
	for _, cl := range m.chatLines {
		prefix, style := "Assistant: ", ui.AssistantLineStyle
		if cl.FromUser {
			prefix, style = "You: ", ui.UserLineStyle
		}
		for _, l := range wrapText(prefix+cl.Text, width) {
			lines = append(lines, style.Render(l))
		}
	}
	if m.busy {
		lines = append(lines, ui.DimStyle.Render("Assistant is typing..."))
	}
	if m.height > 0 {
		// keep the newest messages and the input line on screen
		room := max(3, m.height-8)
		if len(lines) > room {
			lines = lines[len(lines)-room:]
		}
	}
	lines = append(lines, "")
	return append(lines, m.chatInput.render(width)...)
}

func (m Model) renderHistory(width int) []string {
	if m.deps.History == nil {
		return []string{ui.DimStyle.Render("History is unavailable.")}
	}
	if len(m.historyItems) == 0 {
		return []string{ui.DimStyle.Render("No results yet.")}
	}
	lines := make([]string, 0, len(m.historyItems))
	for _, a := range m.historyItems {
		line := fmt.Sprintf("%s  %-10s  %s",
			a.CreatedAt.Format("2006-01-02 15:04"), a.Kind, a.Label)
		lines = append(lines, truncateToWidth(line, width))
	}
	return lines
}

func resultLines(title, label, narrative string, width int) []string {
	lines := []string{ui.DimStyle.Render(title+": ") + ui.ResultLabelStyle.Render(label)}
	if narrative != "" {
		lines = append(lines, wrapText(narrative, width)...)
	}
	return lines
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string
	key := func(k, desc string) {
		parts = append(parts, ui.FooterKeyStyle.Render(k)+ui.FooterDescStyle.Render(" "+desc))
	}

	switch m.screen {
	case ScreenLogin:
		key("Enter", "Sign in")
		key("Tab", "Next field")
		key("Ctrl+R", "Register")
	case ScreenRegister:
		key("Enter", "Next")
		key("Ctrl+S", "Submit")
		key("Esc", "Back")
	case ScreenMenu:
		key("↑↓", "Choose")
		key("Enter", "Open")
		key("q", "Quit")
	case ScreenSymptoms:
		key("↑↓", "Move")
		key("Space", "Toggle")
		key("Enter", "Predict")
		key("Esc", "Back")
	case ScreenText:
		key("Enter", "Analyze")
		key("Esc", "Back")
	case ScreenEmotion:
		key("Enter", "Detect")
		if !m.cameraActive {
			key("r", "Detect again")
		}
		key("Esc", "Back")
	case ScreenVoice:
		if m.listening {
			key("Space", "Stop")
		} else {
			key("Space", "Listen")
		}
		key("Esc", "Back")
	case ScreenChat:
		key("Enter", "Send")
		key("Esc", "Back")
	case ScreenHistory:
		key("r", "Reload")
		key("Esc", "Back")
	}
	if m.screen != ScreenMenu {
		key("Ctrl+C", "Quit")
	}

	return strings.Join(parts, "  ")
}
