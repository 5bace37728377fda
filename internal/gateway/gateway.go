// Package gateway is the typed client for the MindCheck prediction service.
//
// Every call is a single request/response. Session-scoped calls go through a
// client with a cookie jar so the service's login cookie is sent back;
// registration, emotion prediction and the video feed use a jar-less client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds configuration for the gateway client.
type Config struct {
	BaseURL   string        // e.g. "http://localhost:5000"
	Timeout   time.Duration // per request, 0 for 30s
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Client talks to the prediction service.
type Client struct {
	baseURL  string
	session  *http.Client // credentials included
	anon     *http.Client
	stream   *http.Client // no timeout, for long-lived feeds
	validate *validator.Validate
	logger   *zap.Logger
}

// New creates a gateway client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("gateway: parse base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: cookie jar: %w", err)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		session:  &http.Client{Timeout: timeout, Transport: transport, Jar: jar},
		anon:     &http.Client{Timeout: timeout, Transport: transport},
		stream:   &http.Client{Transport: transport},
		validate: validator.New(),
		logger:   logger.Named("gateway"),
	}, nil
}

// BaseURL returns the service base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// VideoFeedURL returns the MJPEG feed URL with a cache-busting token.
func (c *Client) VideoFeedURL(token string) string {
	return c.baseURL + "/video_feed?t=" + url.QueryEscape(token)
}

// StreamClient returns the jar-less HTTP client for long-lived streams.
func (c *Client) StreamClient() *http.Client { return c.stream }

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Login opens a session. The service's cookie is kept for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (SessionOutcome, error) {
	in := credentials{Email: strings.TrimSpace(email), Password: password}
	if err := c.check(in); err != nil {
		return SessionOutcome{}, err
	}

	body, contentType, err := formBody([][2]string{{"email", in.Email}, {"password", in.Password}}, nil)
	if err != nil {
		return SessionOutcome{}, err
	}
	status, env, err := c.do(ctx, c.session, "login", http.MethodPost, "/login", body, contentType)
	if err != nil {
		return SessionOutcome{}, err
	}
	if !ok(status) {
		msg := env.Message
		if msg == "" {
			msg = "Invalid credentials"
		}
		return SessionOutcome{}, &AuthError{Message: msg}
	}
	return SessionOutcome{Message: env.Message}, nil
}

// Register creates an account. Profile fields are passed through verbatim.
func (c *Client) Register(ctx context.Context, p Profile) (RegistrationOutcome, error) {
	body, contentType, err := formBody(p.Fields(), nil)
	if err != nil {
		return RegistrationOutcome{}, err
	}
	status, env, err := c.do(ctx, c.anon, "register", http.MethodPost, "/register", body, contentType)
	if err != nil {
		return RegistrationOutcome{}, err
	}
	if !ok(status) {
		msg := env.Message
		if msg == "" {
			msg = "Registration failed."
		}
		return RegistrationOutcome{}, &ValidationError{Message: msg}
	}
	return RegistrationOutcome{Message: env.Message, Created: env.Message == RegistrationSucceeded}, nil
}

// Logout ends the session. Callers may ignore the error.
func (c *Client) Logout(ctx context.Context) error {
	_, _, err := c.do(ctx, c.session, "logout", http.MethodGet, "/logout", nil, "")
	return err
}

// PredictSymptoms classifies a symptom checklist given as name -> 0|1.
func (c *Client) PredictSymptoms(ctx context.Context, flags map[string]int) (SymptomResult, error) {
	data, err := json.Marshal(flags)
	if err != nil {
		return SymptomResult{}, fmt.Errorf("marshal symptoms: %w", err)
	}
	env, err := c.predict(ctx, c.session, "predict_symptoms", "/predict_symptoms", bytes.NewReader(data), "application/json")
	if err != nil {
		return SymptomResult{}, err
	}
	return SymptomResult{
		Condition: orDefault(env.Prediction, "No prediction available"),
		Narrative: orDefault(env.AIDescription, "No AI summary provided."),
	}, nil
}

type statementInput struct {
	Statement string `validate:"required"`
}

// PredictText classifies a free-text statement.
func (c *Client) PredictText(ctx context.Context, statement string) (TextResult, error) {
	statement = strings.TrimSpace(statement)
	if err := c.check(statementInput{Statement: statement}); err != nil {
		return TextResult{}, err
	}
	body, contentType, err := formBody([][2]string{{"statement", statement}}, nil)
	if err != nil {
		return TextResult{}, err
	}
	env, err := c.predict(ctx, c.session, "predict_text", "/predict_text", body, contentType)
	if err != nil {
		return TextResult{}, err
	}
	if env.Prediction == "" {
		return TextResult{}, &PredictionError{Op: "predict_text", Detail: "Failed to analyze text. Please try again."}
	}
	return TextResult{
		Label:     env.Prediction,
		Narrative: orDefault(env.AIDescription, "No explanation available."),
	}, nil
}

// PredictEmotion classifies a single JPEG frame.
func (c *Client) PredictEmotion(ctx context.Context, jpeg []byte) (EmotionResult, error) {
	if len(jpeg) == 0 {
		return EmotionResult{}, &ValidationError{Field: "image", Message: "No image captured."}
	}
	body, contentType, err := formBody(nil, &filePart{
		field:       "image",
		filename:    "emotion_capture.jpg",
		contentType: "image/jpeg",
		data:        jpeg,
	})
	if err != nil {
		return EmotionResult{}, err
	}
	status, env, err := c.do(ctx, c.anon, "predict_emotion", http.MethodPost, "/predict_emotion", body, contentType)
	if err != nil {
		return EmotionResult{}, err
	}
	if err := classify("predict_emotion", status, env); err != nil {
		return EmotionResult{}, err
	}
	if env.Emotion == "" {
		return EmotionResult{}, &ServerError{Op: "predict_emotion", Status: status}
	}
	return EmotionResult{
		Emotion:   env.Emotion,
		Narrative: orDefault(env.GeminiOutput, "AI recommendations unavailable."),
	}, nil
}

// PredictMultimodal classifies a spoken statement together with the
// service's own camera reading.
func (c *Client) PredictMultimodal(ctx context.Context, statement string) (MultimodalResult, error) {
	statement = strings.TrimSpace(statement)
	if err := c.check(statementInput{Statement: statement}); err != nil {
		return MultimodalResult{}, err
	}
	body, contentType, err := formBody([][2]string{{"statement", statement}}, nil)
	if err != nil {
		return MultimodalResult{}, err
	}
	env, err := c.predict(ctx, c.session, "predict_multimodal", "/predict_multimodal", body, contentType)
	if err != nil {
		return MultimodalResult{}, err
	}
	return MultimodalResult{
		TextLabel:     orDefault(env.TextPrediction, "Not available"),
		Emotion:       orDefault(env.EmotionDetected, "Not detected"),
		CombinedLabel: orDefault(env.CombinedResult, "No combined result"),
		Narrative:     env.GeminiOutput,
	}, nil
}

type chatInput struct {
	Message string `json:"message" validate:"required"`
}

// SendChatMessage asks the assistant for a reply.
func (c *Client) SendChatMessage(ctx context.Context, text string) (ChatReply, error) {
	in := chatInput{Message: strings.TrimSpace(text)}
	if err := c.check(in); err != nil {
		return ChatReply{}, err
	}
	data, err := json.Marshal(in)
	if err != nil {
		return ChatReply{}, fmt.Errorf("marshal chat message: %w", err)
	}
	env, err := c.predict(ctx, c.session, "chat", "/chat", bytes.NewReader(data), "application/json")
	if err != nil {
		return ChatReply{}, err
	}
	if env.Reply == "" {
		return ChatReply{}, &ServerError{Op: "chat", Status: http.StatusOK}
	}
	return ChatReply{Text: env.Reply}, nil
}

// predict posts to a prediction endpoint and classifies the response.
func (c *Client) predict(ctx context.Context, hc *http.Client, op, path string, body io.Reader, contentType string) (envelope, error) {
	status, env, err := c.do(ctx, hc, op, http.MethodPost, path, body, contentType)
	if err != nil {
		return envelope{}, err
	}
	if err := classify(op, status, env); err != nil {
		return envelope{}, err
	}
	return env, nil
}

// do sends one request and decodes whatever JSON body comes back. Only
// transport failures are returned as errors; status handling is the caller's.
func (c *Client) do(ctx context.Context, hc *http.Client, op, method, path string, body io.Reader, contentType string) (int, envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, envelope{}, fmt.Errorf("%s: create request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("op", op),
			zap.String("request_id", reqID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return 0, envelope{}, &ConnectivityError{Op: op, BaseURL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, envelope{}, &ConnectivityError{Op: op, BaseURL: c.baseURL, Err: err}
	}

	c.logger.Debug("request complete",
		zap.String("op", op),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		// Non-JSON bodies (HTML error pages) decode to an empty envelope.
		_ = json.Unmarshal(raw, &env)
	}
	return resp.StatusCode, env, nil
}

// classify turns a status and body into the error taxonomy.
func classify(op string, status int, env envelope) error {
	if env.Error != "" {
		return &PredictionError{Op: op, Status: status, Detail: env.Error}
	}
	if !ok(status) {
		return &ServerError{Op: op, Status: status}
	}
	return nil
}

// check validates a request struct, turning the first failure into a
// ValidationError.
func (c *Client) check(v any) error {
	err := c.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: fmt.Sprintf("Please enter your %s.", field)}
	case "email":
		return &ValidationError{Field: field, Message: "Please enter a valid email address."}
	}
	return &ValidationError{Field: field, Message: fmt.Sprintf("Invalid %s.", field)}
}

type filePart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

// formBody builds a multipart/form-data body.
func formBody(fields [][2]string, file *filePart) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename))
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func ok(status int) bool { return status >= 200 && status < 300 }

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
