package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const deepgramWSURL = "wss://api.deepgram.com/v1/listen"

// DeepgramConfig holds configuration for the Deepgram recognizer.
type DeepgramConfig struct {
	APIKey         string
	URL            string // defaults to the public streaming endpoint
	Model          string // e.g. "nova-2"
	SampleRate     int    // must match the audio source
	Encoding       string // e.g. "linear16"
	Channels       int
	Endpointing    int // ms of silence that finalizes a segment
	UtteranceEndMs int // ms after the last word that ends the utterance
}

func (c DeepgramConfig) withDefaults() DeepgramConfig {
	if c.URL == "" {
		c.URL = deepgramWSURL
	}
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Encoding == "" {
		c.Encoding = "linear16"
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.Endpointing == 0 {
		c.Endpointing = 300
	}
	if c.UtteranceEndMs == 0 {
		c.UtteranceEndMs = 3000
	}
	return c
}

// AudioSource produces raw PCM audio matching the recognizer config.
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// DeepgramRecognizer streams microphone audio to Deepgram over a websocket.
type DeepgramRecognizer struct {
	cfg    DeepgramConfig
	audio  AudioSource
	dialer *websocket.Dialer
	logger *zap.Logger
}

func NewDeepgramRecognizer(cfg DeepgramConfig, audio AudioSource, logger *zap.Logger) *DeepgramRecognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeepgramRecognizer{
		cfg:    cfg.withDefaults(),
		audio:  audio,
		dialer: websocket.DefaultDialer,
		logger: logger.Named("deepgram"),
	}
}

// DetectRecognizer returns an available capability when an API key is set
// and the audio command can be found.
func DetectRecognizer(apiKey string, audioCommand []string, logger *zap.Logger) Capability {
	if apiKey == "" {
		return Unavailable("DEEPGRAM_API_KEY is not set")
	}
	if len(audioCommand) == 0 {
		return Unavailable("no audio command configured")
	}
	if _, err := exec.LookPath(audioCommand[0]); err != nil {
		return Unavailable(fmt.Sprintf("%s not found on PATH", audioCommand[0]))
	}
	return Available(NewDeepgramRecognizer(DeepgramConfig{APIKey: apiKey}, &CommandAudioSource{Command: audioCommand}, logger))
}

func (d *DeepgramRecognizer) listenURL(opts Options) string {
	q := url.Values{}
	q.Set("model", d.cfg.Model)
	q.Set("language", opts.Language)
	q.Set("encoding", d.cfg.Encoding)
	q.Set("sample_rate", strconv.Itoa(d.cfg.SampleRate))
	q.Set("channels", strconv.Itoa(d.cfg.Channels))
	q.Set("punctuate", "true")
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	q.Set("endpointing", strconv.Itoa(d.cfg.Endpointing))
	if opts.InterimResults {
		q.Set("utterance_end_ms", strconv.Itoa(d.cfg.UtteranceEndMs))
	}
	return d.cfg.URL + "?" + q.Encode()
}

// Start dials Deepgram, opens the audio source and begins streaming.
func (d *DeepgramRecognizer) Start(ctx context.Context, opts Options) (Stream, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.cfg.APIKey)

	conn, resp, err := d.dialer.DialContext(ctx, d.listenURL(opts), headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &RecognizerError{Code: "not-allowed"}
		}
		d.logger.Warn("dial deepgram", zap.Error(err))
		return nil, &RecognizerError{Code: "network"}
	}

	audio, err := d.audio.Open(ctx)
	if err != nil {
		conn.Close()
		d.logger.Warn("open audio source", zap.Error(err))
		return nil, &RecognizerError{Code: "audio-capture"}
	}

	s := &deepgramStream{
		conn:       conn,
		audio:      audio,
		continuous: opts.Continuous,
		events:     make(chan Event, 64),
		logger:     d.logger,
	}
	s.wg.Add(1)
	go s.pump()
	go s.readLoop()
	return s, nil
}

// deepgramResponse represents a Deepgram websocket message.
type deepgramResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Description string `json:"description"`
}

const closeGrace = 3 * time.Second

type deepgramStream struct {
	conn       *websocket.Conn
	audio      io.ReadCloser
	continuous bool
	events     chan Event
	logger     *zap.Logger

	mu       sync.Mutex // serializes websocket writes
	wg       sync.WaitGroup
	stopping atomic.Bool
	stopOnce sync.Once
}

func (s *deepgramStream) Events() <-chan Event { return s.events }

// Stop ends the audio and asks Deepgram to flush its final results.
func (s *deepgramStream) Stop() error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		s.audio.Close()
		s.closeStream()
		_ = s.conn.SetReadDeadline(time.Now().Add(closeGrace))
	})
	return nil
}

func (s *deepgramStream) closeStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "CloseStream"}`))
}

// pump copies audio chunks to the websocket until the source ends.
func (s *deepgramStream) pump() {
	defer s.wg.Done()
	buf := make([]byte, 3200) // 100ms of 16 kHz mono linear16
	for {
		n, err := s.audio.Read(buf)
		if n > 0 {
			s.mu.Lock()
			werr := s.conn.WriteMessage(websocket.BinaryMessage, buf[:n])
			s.mu.Unlock()
			if werr != nil {
				return
			}
		}
		if err != nil {
			if !s.stopping.Load() {
				s.logger.Debug("audio source ended", zap.Error(err))
				s.closeStream()
			}
			return
		}
	}
}

func (s *deepgramStream) readLoop() {
	defer func() {
		s.stopping.Store(true)
		s.audio.Close()
		s.conn.Close()
		s.wg.Wait()
		close(s.events)
	}()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if s.stopping.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			s.logger.Warn("deepgram read", zap.Error(err))
			s.events <- Event{Kind: EventError, Code: "network"}
			return
		}

		var resp deepgramResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			s.logger.Debug("unparseable deepgram message", zap.Error(err))
			continue
		}

		switch resp.Type {
		case "Results":
			var transcript string
			if len(resp.Channel.Alternatives) > 0 {
				transcript = resp.Channel.Alternatives[0].Transcript
			}
			if transcript != "" {
				kind := EventInterim
				if resp.IsFinal {
					kind = EventFinal
				}
				s.events <- Event{Kind: kind, Text: transcript}
			}
			if resp.SpeechFinal && !s.continuous {
				s.events <- Event{Kind: EventEnd}
				return
			}
		case "UtteranceEnd":
			s.events <- Event{Kind: EventEnd}
			return
		case "Error":
			s.events <- Event{Kind: EventError, Code: orCode(resp.Description)}
			return
		}
	}
}

func orCode(desc string) string {
	if desc == "" {
		return "network"
	}
	return desc
}

// CommandAudioSource records audio by running an external command that
// writes raw PCM to stdout, such as arecord or ffmpeg.
type CommandAudioSource struct {
	Command []string
}

func (c *CommandAudioSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(c.Command) == 0 {
		return nil, errors.New("no audio command configured")
	}
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, c.Command[0], c.Command[1:]...)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		cancel()
		pw.Close()
		return nil, fmt.Errorf("start %s: %w", c.Command[0], err)
	}

	r := &commandReader{pr: pr, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		// Wait returns once the process exits and its output is copied;
		// readers then see EOF or the exit error.
		pw.CloseWithError(cmd.Wait())
	}()
	return r, nil
}

type commandReader struct {
	pr     *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (r *commandReader) Read(p []byte) (int, error) { return r.pr.Read(p) }

// Close stops reading, kills the recording process and waits for it.
func (r *commandReader) Close() error {
	r.once.Do(func() {
		r.pr.Close()
		r.cancel()
		<-r.done
	})
	return nil
}
