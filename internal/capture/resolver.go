package capture

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Session is one acquired visual input.
type Session struct {
	Kind      SourceKind
	URL       string // remote stream only
	StartedAt time.Time

	source Source
	active atomic.Bool
}

// Active reports whether the session still holds its source.
func (s *Session) Active() bool {
	return s != nil && s.active.Load()
}

// Source returns the live input, or nil when the session holds none.
func (s *Session) Source() Source {
	if s == nil {
		return nil
	}
	return s.source
}

// ResolverConfig wires a Resolver.
type ResolverConfig struct {
	Device  DeviceCapability
	Streams StreamOpener
	// FeedURL builds the remote stream URL from a cache-busting token.
	FeedURL func(token string) string
	Logger  *zap.Logger
	Now     func() time.Time
}

// Resolver picks the capture source: the local device first, the remote
// video feed otherwise. It holds at most one session at a time.
type Resolver struct {
	device  DeviceCapability
	streams StreamOpener
	feedURL func(string) string
	now     func() time.Time
	logger  *zap.Logger

	startMu sync.Mutex // one Start at a time

	mu      sync.Mutex
	current *Session
	stops   uint64 // bumped by every Stop
}

// ErrStartAborted is returned when Stop is called while Start is still
// acquiring a source. The acquired source has already been released.
var ErrStartAborted = errors.New("capture start cancelled")

func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{
		device:  cfg.Device,
		streams: cfg.Streams,
		feedURL: cfg.FeedURL,
		now:     cfg.Now,
		logger:  cfg.Logger,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.Named("capture")
	return r
}

// Start releases any held session, probes the device once and falls back to
// the remote stream. The returned session is always active unless ctx is done
// or Stop was called before the source was acquired.
func (r *Resolver) Start(ctx context.Context) (*Session, error) {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.Stop()
	r.mu.Lock()
	gen := r.stops
	r.mu.Unlock()

	s := &Session{StartedAt: r.now()}
	if opener, ok := r.device.Opener(); ok {
		src, err := opener.Open(ctx, Constraints{Video: true})
		if err == nil {
			s.Kind = SourceDevice
			s.source = src
		} else {
			r.logger.Warn("camera probe failed, using video feed", zap.Error(err))
		}
	} else {
		r.logger.Info("camera unavailable, using video feed", zap.String("reason", r.device.Reason()))
	}

	if s.Kind == SourceNone {
		s.Kind = SourceRemoteStream
		token := strconv.FormatInt(s.StartedAt.UnixMilli(), 10)
		if r.feedURL != nil {
			s.URL = r.feedURL(token)
		}
		if r.streams != nil && s.URL != "" {
			src, err := r.streams.OpenStream(ctx, s.URL)
			if err != nil {
				// The session stays active and reports not ready.
				r.logger.Warn("open video feed", zap.String("url", s.URL), zap.Error(err))
			} else {
				s.source = src
			}
		}
	}
	s.active.Store(true)

	r.mu.Lock()
	if r.stops != gen {
		r.mu.Unlock()
		r.logger.Info("capture stopped while starting", zap.Stringer("kind", s.Kind))
		r.release(s)
		return nil, ErrStartAborted
	}
	r.current = s
	r.mu.Unlock()

	r.logger.Info("capture session started", zap.Stringer("kind", s.Kind), zap.String("url", s.URL))
	return s, nil
}

// Stop releases the active session. Safe to call at any time.
func (r *Resolver) Stop() {
	r.mu.Lock()
	s := r.current
	r.current = nil
	r.stops++
	r.mu.Unlock()
	r.release(s)
}

// Active returns the current session, or nil.
func (r *Resolver) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Release stops s only if it is still the current session. Sessions that
// were already replaced or stopped are left alone.
func (r *Resolver) Release(s *Session) {
	r.mu.Lock()
	if r.current != s {
		r.mu.Unlock()
		return
	}
	r.current = nil
	r.mu.Unlock()
	r.release(s)
}

func (r *Resolver) release(s *Session) {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			r.logger.Warn("close capture source", zap.Error(err))
		}
	}
	r.logger.Info("capture session stopped", zap.Stringer("kind", s.Kind))
}
