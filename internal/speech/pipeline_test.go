package speech

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/Jeevanlr/mental-prediction/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	events  chan Event
	stopped atomic.Int32
}

func (s *fakeStream) Events() <-chan Event { return s.events }

func (s *fakeStream) Stop() error {
	s.stopped.Add(1)
	return nil
}

type fakeRecognizer struct {
	stream *fakeStream
	opts   Options
	err    error
}

func (r *fakeRecognizer) Start(ctx context.Context, opts Options) (Stream, error) {
	r.opts = opts
	if r.err != nil {
		return nil, r.err
	}
	return r.stream, nil
}

type fakePredictor struct {
	calls      atomic.Int32
	statements []string
	result     gateway.MultimodalResult
	err        error
}

func (p *fakePredictor) PredictMultimodal(ctx context.Context, statement string) (gateway.MultimodalResult, error) {
	p.calls.Add(1)
	p.statements = append(p.statements, statement)
	return p.result, p.err
}

func newFake() (*fakeRecognizer, *fakeStream) {
	st := &fakeStream{events: make(chan Event, 16)}
	return &fakeRecognizer{stream: st}, st
}

func collect(ch <-chan Update) []Update {
	var out []Update
	for u := range ch {
		out = append(out, u)
	}
	return out
}

func TestPipelineSubmitsCommittedTranscript(t *testing.T) {
	rec, st := newFake()
	pred := &fakePredictor{result: gateway.MultimodalResult{TextLabel: "Stress", Emotion: "Sad"}}
	p := NewPipeline(Available(rec), pred, "", nil)

	updates, err := p.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Options{Continuous: true, InterimResults: true, Language: "en-US"}, rec.opts)

	st.events <- Event{Kind: EventInterim, Text: "work has"}
	st.events <- Event{Kind: EventFinal, Text: "work has been hard"}
	st.events <- Event{Kind: EventInterim, Text: "lately"}
	st.events <- Event{Kind: EventEnd}

	got := collect(updates)
	require.Len(t, got, 5)
	assert.Equal(t, "work has", got[0].Live)
	assert.Equal(t, "work has been hard", got[1].Committed)
	assert.Equal(t, "work has been hard lately", got[2].Live)
	assert.Equal(t, StateEnded, got[3].State)

	last := got[4]
	assert.True(t, last.Done)
	require.NoError(t, last.Err)
	require.NotNil(t, last.Result)
	assert.Equal(t, "Stress", last.Result.TextLabel)
	assert.Equal(t, []string{"work has been hard"}, pred.statements)
	assert.False(t, p.Busy())
}

func TestPipelineEmptyTranscriptSkipsGateway(t *testing.T) {
	rec, st := newFake()
	pred := &fakePredictor{}
	p := NewPipeline(Available(rec), pred, "en-US", nil)

	updates, err := p.Start(context.Background())
	require.NoError(t, err)
	st.events <- Event{Kind: EventInterim, Text: "uh"}
	close(st.events) // closed channel counts as end

	got := collect(updates)
	last := got[len(got)-1]
	assert.True(t, last.Done)
	assert.ErrorIs(t, last.Err, ErrEmptyTranscript)
	assert.Zero(t, pred.calls.Load())
}

func TestPipelineRecognizerErrorSurfacesCode(t *testing.T) {
	rec, st := newFake()
	pred := &fakePredictor{}
	p := NewPipeline(Available(rec), pred, "en-US", nil)

	updates, err := p.Start(context.Background())
	require.NoError(t, err)
	st.events <- Event{Kind: EventFinal, Text: "hello"}
	st.events <- Event{Kind: EventError, Code: "audio-capture"}

	got := collect(updates)
	last := got[len(got)-1]
	assert.Equal(t, StateFailed, last.State)
	assert.True(t, last.Done)
	var recErr *RecognizerError
	require.ErrorAs(t, last.Err, &recErr)
	assert.Equal(t, "audio-capture", recErr.Code)
	assert.Zero(t, pred.calls.Load(), "no automatic submission after failure")
	assert.EqualValues(t, 1, st.stopped.Load())
}

func TestPipelineGatewayErrorBecomesPredictionError(t *testing.T) {
	rec, st := newFake()
	cause := &gateway.ServerError{Op: "predict_multimodal", Status: 500}
	p := NewPipeline(Available(rec), &fakePredictor{err: cause}, "en-US", nil)

	updates, err := p.Start(context.Background())
	require.NoError(t, err)
	st.events <- Event{Kind: EventFinal, Text: "I am fine"}
	st.events <- Event{Kind: EventEnd}

	got := collect(updates)
	last := got[len(got)-1]
	assert.Nil(t, last.Result)

	var predErr *gateway.PredictionError
	require.ErrorAs(t, last.Err, &predErr)
	assert.Equal(t, "Unable to generate prediction. Please try again.", predErr.Detail)
	assert.True(t, errors.Is(last.Err, cause))
	assert.True(t, gateway.IsUnexpected(last.Err))
}

func TestPipelineKeepsServicePredictionError(t *testing.T) {
	rec, st := newFake()
	svcErr := &gateway.PredictionError{Detail: "Models not loaded."}
	p := NewPipeline(Available(rec), &fakePredictor{err: svcErr}, "en-US", nil)

	updates, err := p.Start(context.Background())
	require.NoError(t, err)
	st.events <- Event{Kind: EventFinal, Text: "hi"}
	st.events <- Event{Kind: EventEnd}

	got := collect(updates)
	assert.Equal(t, "Models not loaded.", got[len(got)-1].Err.Error())
}

func TestPipelineSingleSession(t *testing.T) {
	rec, st := newFake()
	p := NewPipeline(Available(rec), &fakePredictor{}, "en-US", nil)

	updates, err := p.Start(context.Background())
	require.NoError(t, err)

	_, err = p.Start(context.Background())
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.True(t, p.Busy())

	require.NoError(t, p.Stop())
	assert.EqualValues(t, 1, st.stopped.Load())
	st.events <- Event{Kind: EventFinal, Text: "flushed"}
	close(st.events)

	got := collect(updates)
	assert.Equal(t, StateFinalizing, got[0].State)
	assert.Equal(t, "flushed", got[len(got)-1].Committed)
	assert.False(t, p.Busy())

	// a new session may start once the previous one is done
	rec.stream = &fakeStream{events: make(chan Event)}
	_, err = p.Start(context.Background())
	assert.NoError(t, err)
}

func TestPipelineUnsupported(t *testing.T) {
	p := NewPipeline(Unavailable("DEEPGRAM_API_KEY is not set"), &fakePredictor{}, "", nil)

	_, err := p.Start(context.Background())

	var unsup *UnsupportedError
	require.ErrorAs(t, err, &unsup)
	assert.Contains(t, unsup.Error(), "DEEPGRAM_API_KEY")
	assert.False(t, p.Available())
	assert.NoError(t, p.Stop())
}

func TestPipelineStartFailure(t *testing.T) {
	rec := &fakeRecognizer{err: &RecognizerError{Code: "network"}}
	p := NewPipeline(Available(rec), &fakePredictor{}, "", nil)

	_, err := p.Start(context.Background())

	var recErr *RecognizerError
	require.ErrorAs(t, err, &recErr)
	assert.False(t, p.Busy())
}

func TestPipelineContextCancelAborts(t *testing.T) {
	rec, _ := newFake()
	pred := &fakePredictor{}
	p := NewPipeline(Available(rec), pred, "", nil)
	ctx, cancel := context.WithCancel(context.Background())

	updates, err := p.Start(ctx)
	require.NoError(t, err)
	cancel()

	got := collect(updates)
	var recErr *RecognizerError
	require.ErrorAs(t, got[len(got)-1].Err, &recErr)
	assert.Equal(t, "aborted", recErr.Code)
	assert.Zero(t, pred.calls.Load())
}
