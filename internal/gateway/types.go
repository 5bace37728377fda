package gateway

// SessionOutcome is a successful login. The session itself lives in the
// client's cookie jar.
type SessionOutcome struct {
	Message string
}

// Profile is the registration form, sent verbatim.
type Profile struct {
	Name           string
	DOB            string // YYYY-MM-DD
	Email          string
	Password       string
	Phone          string
	DoctorName     string
	DoctorEmail    string
	DoctorPhone    string
	Relative1Name  string
	Relative1Email string
	Relative1Phone string
	Relative2Name  string
	Relative2Email string
	Relative2Phone string
}

// Fields returns the form fields in wire order.
func (p Profile) Fields() [][2]string {
	return [][2]string{
		{"name", p.Name},
		{"dob", p.DOB},
		{"email", p.Email},
		{"password", p.Password},
		{"phone", p.Phone},
		{"doctor_name", p.DoctorName},
		{"doctor_email", p.DoctorEmail},
		{"doctor_phone", p.DoctorPhone},
		{"relative1_name", p.Relative1Name},
		{"relative1_email", p.Relative1Email},
		{"relative1_phone", p.Relative1Phone},
		{"relative2_name", p.Relative2Name},
		{"relative2_email", p.Relative2Email},
		{"relative2_phone", p.Relative2Phone},
	}
}

// RegistrationSucceeded is the service's message for a created account.
const RegistrationSucceeded = "Registration successful!"

// RegistrationOutcome is the service's answer to a registration.
type RegistrationOutcome struct {
	Message string
	Created bool
}

type SymptomResult struct {
	Condition string
	Narrative string
}

type TextResult struct {
	Label     string
	Narrative string
}

type EmotionResult struct {
	Emotion   string
	Narrative string
}

type MultimodalResult struct {
	TextLabel     string
	Emotion       string
	CombinedLabel string
	Narrative     string
}

type ChatReply struct {
	Text string
}

// envelope is the union of every JSON body the service returns.
type envelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`

	Prediction    string `json:"prediction"`
	AIDescription string `json:"ai_description"`

	Emotion      string `json:"emotion"`
	GeminiOutput string `json:"gemini_output"`

	TextPrediction  string `json:"text_prediction"`
	EmotionDetected string `json:"emotion_detected"`
	CombinedResult  string `json:"combined_result"`

	Reply string `json:"reply"`
}
