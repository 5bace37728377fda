package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Jeevanlr/mental-prediction/internal/gateway"
	"go.uber.org/zap"
)

// DefaultReadyTimeout bounds the wait for a device's first frame.
const DefaultReadyTimeout = 3000 * time.Millisecond

// Reasons reported by NotReadyError.
const (
	ReasonInactive      = "Camera is not active."
	ReasonStreamPending = "Video stream not ready. Please try again."
	ReasonNoFrame       = "Waiting for camera frame. Please try again in a moment."
)

// NotReadyError means a capture was attempted before the source had a frame.
type NotReadyError struct {
	Reason string
}

func (e *NotReadyError) Error() string { return e.Reason }

// ErrCaptureInFlight is returned when a capture is requested while the
// previous one is still being analyzed.
var ErrCaptureInFlight = errors.New("An emotion analysis is already in progress.")

// EmotionPredictor submits a JPEG for emotion prediction.
type EmotionPredictor interface {
	PredictEmotion(ctx context.Context, jpeg []byte) (gateway.EmotionResult, error)
}

// Analyzer captures one frame from the active session and submits it.
type Analyzer struct {
	resolver  *Resolver
	predictor EmotionPredictor
	logger    *zap.Logger
	now       func() time.Time

	ReadyTimeout time.Duration

	busy atomic.Bool
}

func NewAnalyzer(r *Resolver, p EmotionPredictor, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		resolver:     r,
		predictor:    p,
		logger:       logger.Named("analyzer"),
		now:          time.Now,
		ReadyTimeout: DefaultReadyTimeout,
	}
}

// CaptureAndAnalyze checks readiness, snapshots the current frame and submits
// it. A successful prediction releases the session; a failed one keeps it so
// the user can retry.
func (a *Analyzer) CaptureAndAnalyze(ctx context.Context) (gateway.EmotionResult, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return gateway.EmotionResult{}, ErrCaptureInFlight
	}
	defer a.busy.Store(false)

	s := a.resolver.Active()
	if !s.Active() {
		return gateway.EmotionResult{}, &NotReadyError{Reason: ReasonInactive}
	}
	src := s.Source()
	if err := a.awaitReady(ctx, s.Kind, src); err != nil {
		return gateway.EmotionResult{}, err
	}

	img, ok := src.Current()
	if !ok {
		return gateway.EmotionResult{}, &NotReadyError{Reason: ReasonNoFrame}
	}
	frame, err := Snapshot(img, a.now())
	if err != nil {
		return gateway.EmotionResult{}, err
	}
	a.logger.Debug("frame captured",
		zap.Stringer("kind", s.Kind),
		zap.Int("width", frame.Width),
		zap.Int("height", frame.Height),
		zap.Int("bytes", len(frame.JPEG)))

	res, err := a.predictor.PredictEmotion(ctx, frame.JPEG)
	if err != nil {
		a.logger.Warn("emotion prediction failed", zap.Error(err))
		return gateway.EmotionResult{}, err
	}
	a.resolver.Release(s)
	return res, nil
}

func (a *Analyzer) awaitReady(ctx context.Context, kind SourceKind, src Source) error {
	if src == nil {
		if kind == SourceDevice {
			return &NotReadyError{Reason: ReasonStreamPending}
		}
		return &NotReadyError{Reason: ReasonNoFrame}
	}
	if src.Ready() {
		return nil
	}
	if kind != SourceDevice {
		return &NotReadyError{Reason: ReasonNoFrame}
	}

	timer := time.NewTimer(a.ReadyTimeout)
	defer timer.Stop()
	select {
	case <-src.Loaded():
		if src.Ready() {
			return nil
		}
		return &NotReadyError{Reason: ReasonStreamPending}
	case <-timer.C:
		return &NotReadyError{Reason: ReasonStreamPending}
	case <-ctx.Done():
		return ctx.Err()
	}
}
