package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Jeevanlr/mental-prediction/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	img      image.Image
	loaded   chan struct{}
	once     sync.Once
	closed   atomic.Int32
	currents atomic.Int32
}

func newFakeSource(img image.Image) *fakeSource {
	s := &fakeSource{loaded: make(chan struct{})}
	if img != nil {
		s.deliver(img)
	}
	return s
}

func (s *fakeSource) deliver(img image.Image) {
	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
	s.once.Do(func() { close(s.loaded) })
}

func (s *fakeSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img != nil && s.img.Bounds().Dx() > 0
}

func (s *fakeSource) Loaded() <-chan struct{} { return s.loaded }

func (s *fakeSource) Current() (image.Image, bool) {
	s.currents.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img, s.img != nil
}

func (s *fakeSource) Close() error {
	s.closed.Add(1)
	return nil
}

type fakeOpener struct {
	src   Source
	err   error
	calls int
}

func (o *fakeOpener) Open(ctx context.Context, c Constraints) (Source, error) {
	o.calls++
	if !c.Video {
		return nil, errors.New("video constraint missing")
	}
	return o.src, o.err
}

type fakeStreams struct {
	src  Source
	urls []string
}

func (f *fakeStreams) OpenStream(ctx context.Context, u string) (Source, error) {
	f.urls = append(f.urls, u)
	if f.src == nil {
		return newFakeSource(nil), nil
	}
	return f.src, nil
}

type fakePredictor struct {
	calls  atomic.Int32
	got    []byte
	result gateway.EmotionResult
	err    error
	block  chan struct{}
}

func (p *fakePredictor) PredictEmotion(ctx context.Context, jpeg []byte) (gateway.EmotionResult, error) {
	p.calls.Add(1)
	p.got = jpeg
	if p.block != nil {
		<-p.block
	}
	return p.result, p.err
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	return img
}

var fixedTime = time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC)

func newTestResolver(t *testing.T, device DeviceCapability, streams StreamOpener) *Resolver {
	t.Helper()
	gw, err := gateway.New(gateway.Config{BaseURL: "http://predict.local:5000"})
	require.NoError(t, err)
	return NewResolver(ResolverConfig{
		Device:  device,
		Streams: streams,
		FeedURL: gw.VideoFeedURL,
		Now:     func() time.Time { return fixedTime },
	})
}

func TestCaptureWithoutSessionIsNotReady(t *testing.T) {
	r := newTestResolver(t, UnavailableDevice("none"), &fakeStreams{})
	p := &fakePredictor{}
	a := NewAnalyzer(r, p, nil)

	_, err := a.CaptureAndAnalyze(context.Background())

	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, ReasonInactive, nr.Reason)
	assert.Zero(t, p.calls.Load())
}

func TestCaptureAfterStopIsNotReady(t *testing.T) {
	src := newFakeSource(testImage(320, 240))
	r := newTestResolver(t, AvailableDevice(&fakeOpener{src: src}), &fakeStreams{})
	p := &fakePredictor{}
	a := NewAnalyzer(r, p, nil)

	_, err := r.Start(context.Background())
	require.NoError(t, err)
	r.Stop()

	_, err = a.CaptureAndAnalyze(context.Background())
	var nr *NotReadyError
	assert.ErrorAs(t, err, &nr)
	assert.Zero(t, p.calls.Load())
}

func TestSuccessfulPredictionReleasesSession(t *testing.T) {
	src := newFakeSource(testImage(320, 240))
	r := newTestResolver(t, AvailableDevice(&fakeOpener{src: src}), &fakeStreams{})
	p := &fakePredictor{result: gateway.EmotionResult{Emotion: "Happy", Narrative: "Keep it up."}}
	a := NewAnalyzer(r, p, nil)

	s, err := r.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceDevice, s.Kind)

	res, err := a.CaptureAndAnalyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Happy", res.Emotion)

	assert.False(t, s.Active())
	assert.Nil(t, r.Active())
	assert.EqualValues(t, 1, src.closed.Load())

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(p.got))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)
}

func TestPredictionFailureKeepsSessionActive(t *testing.T) {
	src := newFakeSource(testImage(64, 48))
	r := newTestResolver(t, AvailableDevice(&fakeOpener{src: src}), &fakeStreams{})
	p := &fakePredictor{err: &gateway.PredictionError{Detail: "No face detected."}}
	a := NewAnalyzer(r, p, nil)

	s, err := r.Start(context.Background())
	require.NoError(t, err)

	_, err = a.CaptureAndAnalyze(context.Background())

	var predErr *gateway.PredictionError
	require.ErrorAs(t, err, &predErr)
	assert.True(t, s.Active())
	assert.Same(t, s, r.Active())
	assert.Zero(t, src.closed.Load())

	// retry without re-acquiring the source
	p.err = nil
	_, err = a.CaptureAndAnalyze(context.Background())
	assert.NoError(t, err)
	assert.EqualValues(t, 2, p.calls.Load())
}

func TestProbeFailureFallsBackToRemoteStream(t *testing.T) {
	opener := &fakeOpener{err: errors.New("permission denied")}
	streams := &fakeStreams{}
	r := newTestResolver(t, AvailableDevice(opener), streams)

	s, err := r.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, opener.calls)
	assert.Equal(t, SourceRemoteStream, s.Kind)
	assert.True(t, s.Active())
	assert.Contains(t, s.URL, "http://predict.local:5000/video_feed")

	u, err := url.Parse(s.URL)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(fixedTime.UnixMilli(), 10), u.Query().Get("t"))
	assert.Equal(t, []string{s.URL}, streams.urls)
}

func TestUnavailableDeviceSkipsProbe(t *testing.T) {
	streams := &fakeStreams{}
	r := newTestResolver(t, UnavailableDevice("ffmpeg not found on PATH"), streams)

	s, err := r.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, SourceRemoteStream, s.Kind)
	assert.True(t, s.Active())
	assert.Len(t, streams.urls, 1)
}

func TestStartReleasesPreviousSession(t *testing.T) {
	first := newFakeSource(testImage(8, 8))
	opener := &fakeOpener{src: first}
	r := newTestResolver(t, AvailableDevice(opener), &fakeStreams{})

	s1, err := r.Start(context.Background())
	require.NoError(t, err)

	second := newFakeSource(testImage(8, 8))
	opener.src = second
	s2, err := r.Start(context.Background())
	require.NoError(t, err)

	assert.False(t, s1.Active())
	assert.EqualValues(t, 1, first.closed.Load())
	assert.True(t, s2.Active())
	assert.Same(t, s2, r.Active())
}

func TestStopIsIdempotent(t *testing.T) {
	src := newFakeSource(testImage(8, 8))
	r := newTestResolver(t, AvailableDevice(&fakeOpener{src: src}), &fakeStreams{})

	r.Stop()
	s, err := r.Start(context.Background())
	require.NoError(t, err)
	r.Stop()
	r.Stop()

	assert.False(t, s.Active())
	assert.Nil(t, r.Active())
	assert.EqualValues(t, 1, src.closed.Load())
}

func TestReadyTimeoutWithoutData(t *testing.T) {
	src := newFakeSource(nil)
	r := newTestResolver(t, AvailableDevice(&fakeOpener{src: src}), &fakeStreams{})
	p := &fakePredictor{}
	a := NewAnalyzer(r, p, nil)
	assert.Equal(t, 3000*time.Millisecond, a.ReadyTimeout)
	a.ReadyTimeout = 20 * time.Millisecond

	_, err := r.Start(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = a.CaptureAndAnalyze(context.Background())

	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, ReasonStreamPending, nr.Reason)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Zero(t, src.currents.Load(), "no frame should be read")
	assert.Zero(t, p.calls.Load())
}

func TestDeviceWaitsForDataLoaded(t *testing.T) {
	src := newFakeSource(nil)
	r := newTestResolver(t, AvailableDevice(&fakeOpener{src: src}), &fakeStreams{})
	p := &fakePredictor{result: gateway.EmotionResult{Emotion: "Neutral"}}
	a := NewAnalyzer(r, p, nil)

	_, err := r.Start(context.Background())
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		src.deliver(testImage(16, 16))
	}()

	res, err := a.CaptureAndAnalyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Neutral", res.Emotion)
}

func TestRemoteStreamNotLoadedFailsFast(t *testing.T) {
	r := newTestResolver(t, UnavailableDevice("none"), &fakeStreams{})
	p := &fakePredictor{}
	a := NewAnalyzer(r, p, nil)
	a.ReadyTimeout = time.Hour

	_, err := r.Start(context.Background())
	require.NoError(t, err)

	_, err = a.CaptureAndAnalyze(context.Background())
	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, ReasonNoFrame, nr.Reason)
	assert.Zero(t, p.calls.Load())
}

func TestSecondCaptureWhileInFlight(t *testing.T) {
	src := newFakeSource(testImage(8, 8))
	r := newTestResolver(t, AvailableDevice(&fakeOpener{src: src}), &fakeStreams{})
	p := &fakePredictor{block: make(chan struct{})}
	a := NewAnalyzer(r, p, nil)

	_, err := r.Start(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := a.CaptureAndAnalyze(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)

	_, err = a.CaptureAndAnalyze(context.Background())
	assert.ErrorIs(t, err, ErrCaptureInFlight)

	close(p.block)
	assert.NoError(t, <-done)
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestSnapshotDimensions(t *testing.T) {
	f, err := Snapshot(testImage(123, 45), fixedTime)
	require.NoError(t, err)
	assert.Equal(t, 123, f.Width)
	assert.Equal(t, 45, f.Height)
	assert.Equal(t, fixedTime, f.CapturedAt)

	f, err = Snapshot(image.NewRGBA(image.Rect(0, 0, 0, 0)), fixedTime)
	require.NoError(t, err)
	assert.Equal(t, FallbackWidth, f.Width)
	assert.Equal(t, FallbackHeight, f.Height)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(f.JPEG))
	require.NoError(t, err)
	assert.Equal(t, FallbackWidth, cfg.Width)
}

func TestSourceKindString(t *testing.T) {
	assert.Equal(t, "device", SourceDevice.String())
	assert.Equal(t, "remote_stream", SourceRemoteStream.String())
	assert.Equal(t, "none", SourceNone.String())
}

// gatedOpener blocks every Open until release is closed.
type gatedOpener struct {
	started chan struct{}
	release chan struct{}

	mu   sync.Mutex
	srcs []*fakeSource
}

func newGatedOpener() *gatedOpener {
	return &gatedOpener{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (o *gatedOpener) Open(ctx context.Context, c Constraints) (Source, error) {
	select {
	case o.started <- struct{}{}:
	default:
	}
	<-o.release
	src := newFakeSource(testImage(8, 8))
	o.mu.Lock()
	o.srcs = append(o.srcs, src)
	o.mu.Unlock()
	return src, nil
}

func (o *gatedOpener) opened() []*fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeSource(nil), o.srcs...)
}

func TestStopDuringStartReleasesDevice(t *testing.T) {
	opener := newGatedOpener()
	r := newTestResolver(t, AvailableDevice(opener), &fakeStreams{})

	errc := make(chan error, 1)
	go func() {
		_, err := r.Start(context.Background())
		errc <- err
	}()
	<-opener.started
	r.Stop()
	close(opener.release)

	assert.ErrorIs(t, <-errc, ErrStartAborted)
	assert.Nil(t, r.Active())
	srcs := opener.opened()
	require.Len(t, srcs, 1)
	assert.EqualValues(t, 1, srcs[0].closed.Load(), "device must be closed")
}

func TestConcurrentStartsHoldOneSession(t *testing.T) {
	opener := newGatedOpener()
	r := newTestResolver(t, AvailableDevice(opener), &fakeStreams{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Start(context.Background())
			assert.NoError(t, err)
		}()
	}
	<-opener.started
	time.Sleep(10 * time.Millisecond)
	close(opener.release)
	wg.Wait()

	srcs := opener.opened()
	require.Len(t, srcs, 2)
	active := r.Active()
	require.NotNil(t, active)
	assert.True(t, active.Active())

	r.Stop()
	for i, src := range srcs {
		assert.EqualValues(t, 1, src.closed.Load(), "source %d", i)
	}
}

func TestReleaseIgnoresReplacedSession(t *testing.T) {
	opener := &fakeOpener{src: newFakeSource(testImage(8, 8))}
	r := newTestResolver(t, AvailableDevice(opener), &fakeStreams{})

	old, err := r.Start(context.Background())
	require.NoError(t, err)
	current, err := r.Start(context.Background())
	require.NoError(t, err)

	r.Release(old)
	assert.Same(t, current, r.Active())

	r.Release(current)
	assert.Nil(t, r.Active())
	assert.False(t, current.Active())
}
