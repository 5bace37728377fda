package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeAudio struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newPipeAudio() *pipeAudio {
	r, w := io.Pipe()
	return &pipeAudio{r: r, w: w}
}

func (p *pipeAudio) Open(ctx context.Context) (io.ReadCloser, error) { return p.r, nil }

func results(text string, final bool) string {
	return `{"type":"Results","is_final":` + map[bool]string{true: "true", false: "false"}[final] +
		`,"channel":{"alternatives":[{"transcript":"` + text + `","confidence":0.9}]}}`
}

func drain(t *testing.T, s Stream) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("events channel never closed")
			return out
		}
	}
}

func deepgramServer(t *testing.T, handle func(r *http.Request, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		handle(r, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDeepgramStreamsInterimFinalAndUtteranceEnd(t *testing.T) {
	type handshake struct {
		query, auth string
		audio       []byte
	}
	seen := make(chan handshake, 1)
	srv := deepgramServer(t, func(r *http.Request, conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if !assert.NoError(t, err) {
			return
		}
		seen <- handshake{query: r.URL.RawQuery, auth: r.Header.Get("Authorization"), audio: data}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(results("I feel", false)))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(results("I feel calm", true)))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"UtteranceEnd"}`))
		_, _, _ = conn.ReadMessage()
	})

	audio := newPipeAudio()
	rec := NewDeepgramRecognizer(DeepgramConfig{
		APIKey: "secret",
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
	}, audio, nil)

	stream, err := rec.Start(context.Background(), Options{Continuous: true, InterimResults: true, Language: "en-US"})
	require.NoError(t, err)
	go func() { _, _ = audio.w.Write([]byte{1, 2, 3, 4}) }()

	events := drain(t, stream)

	assert.Equal(t, []Event{
		{Kind: EventInterim, Text: "I feel"},
		{Kind: EventFinal, Text: "I feel calm"},
		{Kind: EventEnd},
	}, events)
	hs := <-seen
	assert.Equal(t, "Token secret", hs.auth)
	assert.Contains(t, hs.query, "interim_results=true")
	assert.Contains(t, hs.query, "language=en-US")
	assert.Contains(t, hs.query, "encoding=linear16")
	assert.Equal(t, []byte{1, 2, 3, 4}, hs.audio)
	assert.NoError(t, stream.Stop())
}

func TestDeepgramStopFlushesThenEnds(t *testing.T) {
	srv := deepgramServer(t, func(r *http.Request, conn *websocket.Conn) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage && strings.Contains(string(data), "CloseStream") {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(results("goodbye", true)))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	})

	audio := newPipeAudio()
	rec := NewDeepgramRecognizer(DeepgramConfig{APIKey: "k", URL: "ws" + strings.TrimPrefix(srv.URL, "http")}, audio, nil)
	stream, err := rec.Start(context.Background(), Options{Continuous: true, InterimResults: true, Language: "en-US"})
	require.NoError(t, err)

	require.NoError(t, stream.Stop())
	events := drain(t, stream)

	assert.Equal(t, []Event{{Kind: EventFinal, Text: "goodbye"}}, events)
}

func TestDeepgramUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	rec := NewDeepgramRecognizer(DeepgramConfig{APIKey: "bad", URL: "ws" + strings.TrimPrefix(srv.URL, "http")}, newPipeAudio(), nil)
	_, err := rec.Start(context.Background(), Options{InterimResults: true, Language: "en-US"})

	var recErr *RecognizerError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "not-allowed", recErr.Code)
}

func TestDetectRecognizer(t *testing.T) {
	assert.False(t, DetectRecognizer("", []string{"arecord"}, nil).Available())
	assert.False(t, DetectRecognizer("key", nil, nil).Available())
	assert.False(t, DetectRecognizer("key", []string{"definitely-not-a-real-binary-xyz"}, nil).Available())
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandAudioSourceReadsUntilExit(t *testing.T) {
	requireShell(t)
	src := &CommandAudioSource{Command: []string{"sh", "-c", "printf pcm-bytes"}}

	rc, err := src.Open(context.Background())
	require.NoError(t, err)
	data, err := io.ReadAll(rc)

	require.NoError(t, err)
	assert.Equal(t, "pcm-bytes", string(data))
	assert.NoError(t, rc.Close())
}

func TestCommandAudioSourceCloseWhileReading(t *testing.T) {
	requireShell(t)
	src := &CommandAudioSource{Command: []string{"sh", "-c", "printf x; exec sleep 30"}}

	rc, err := src.Open(context.Background())
	require.NoError(t, err)

	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 16)
		for {
			if _, err := rc.Read(buf); err != nil {
				readErr <- err
				return
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	require.NoError(t, rc.Close())
	assert.Less(t, time.Since(start), 5*time.Second)

	select {
	case err := <-readErr:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reader still blocked after Close")
	}
	assert.NoError(t, rc.Close())
}

func TestCommandAudioSourceMissingBinary(t *testing.T) {
	src := &CommandAudioSource{Command: []string{"definitely-not-a-recorder-binary"}}
	_, err := src.Open(context.Background())
	assert.Error(t, err)
}
