package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Jeevanlr/mental-prediction/internal/gateway"
	"go.uber.org/zap"
)

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = "en-US"

const predictionFailed = "Unable to generate prediction. Please try again."

// MultimodalPredictor submits a committed transcript.
type MultimodalPredictor interface {
	PredictMultimodal(ctx context.Context, statement string) (gateway.MultimodalResult, error)
}

// Update is published after every applied event, plus once more with the
// outcome when the session is done.
type Update struct {
	State     State
	Live      string
	Committed string
	Done      bool
	Result    *gateway.MultimodalResult
	Err       error
}

// Pipeline runs at most one transcript session at a time.
type Pipeline struct {
	capability Capability
	predictor  MultimodalPredictor
	language   string
	logger     *zap.Logger

	mu      sync.Mutex
	busy    bool
	session *Session
	stream  Stream
}

func NewPipeline(c Capability, p MultimodalPredictor, language string, logger *zap.Logger) *Pipeline {
	if language == "" {
		language = DefaultLanguage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{capability: c, predictor: p, language: language, logger: logger.Named("speech")}
}

// Available reports whether Start can succeed.
func (p *Pipeline) Available() bool { return p.capability.Available() }

// Busy reports whether a session is listening, finalizing or submitting.
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Start begins listening. The returned channel delivers updates in
// recognizer-emission order and is closed after the Done update.
func (p *Pipeline) Start(ctx context.Context) (<-chan Update, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return nil, ErrSessionActive
	}
	if !p.capability.Available() {
		return nil, &UnsupportedError{Reason: p.capability.Reason()}
	}

	stream, err := p.capability.recognizer.Start(ctx, Options{
		Continuous:     true,
		InterimResults: true,
		Language:       p.language,
	})
	if err != nil {
		return nil, fmt.Errorf("start speech recognition: %w", err)
	}

	s := NewSession()
	p.busy = true
	p.session = s
	p.stream = stream

	updates := make(chan Update, 64)
	go p.run(ctx, s, stream, updates)
	p.logger.Info("listening started", zap.String("language", p.language))
	return updates, nil
}

// Stop asks the recognizer to finish. The session ends when the recognizer
// delivers its end event.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	s, stream := p.session, p.stream
	p.mu.Unlock()
	if s == nil || !s.Finalize() {
		return nil
	}
	p.logger.Info("listening stopped by user")
	return stream.Stop()
}

func (p *Pipeline) run(ctx context.Context, s *Session, stream Stream, updates chan<- Update) {
	defer func() {
		p.mu.Lock()
		p.busy = false
		p.session = nil
		p.stream = nil
		p.mu.Unlock()
		close(updates)
	}()

	events := stream.Events()
	for !s.State().Terminal() {
		var ev Event
		select {
		case e, ok := <-events:
			if !ok {
				e = Event{Kind: EventEnd}
			}
			ev = e
		case <-ctx.Done():
			ev = Event{Kind: EventError, Code: "aborted"}
		}
		if !s.Apply(ev) {
			continue
		}
		u := Update{State: s.State(), Live: s.Live(), Committed: s.Committed()}
		if u.State == StateFailed {
			u.Done = true
			u.Err = s.Err()
			p.logger.Warn("recognizer failed", zap.String("code", ev.Code))
		}
		updates <- u
	}
	if err := stream.Stop(); err != nil {
		p.logger.Debug("stop recognizer stream", zap.Error(err))
	}
	if s.State() == StateFailed {
		return
	}

	committed := s.Committed()
	final := Update{State: StateEnded, Live: committed, Committed: committed, Done: true}
	if committed == "" {
		final.Err = ErrEmptyTranscript
		updates <- final
		return
	}
	res, err := p.predictor.PredictMultimodal(ctx, committed)
	if err != nil {
		p.logger.Warn("multimodal prediction failed", zap.Error(err))
		final.Err = asPredictionError(err)
	} else {
		final.Result = &res
	}
	updates <- final
}

func asPredictionError(err error) error {
	var predErr *gateway.PredictionError
	if errors.As(err, &predErr) {
		return err
	}
	return &gateway.PredictionError{Op: "predict_multimodal", Detail: predictionFailed, Err: err}
}
