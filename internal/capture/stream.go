package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// StreamOpener attaches to a remote image stream.
type StreamOpener interface {
	OpenStream(ctx context.Context, url string) (Source, error)
}

// MJPEGStream reads the prediction service's multipart/x-mixed-replace feed.
// Like an image element, the returned Source exists immediately and becomes
// ready once the first part decodes; request failures only leave it not ready.
type MJPEGStream struct {
	Client *http.Client
	Logger *zap.Logger
}

func (m *MJPEGStream) OpenStream(ctx context.Context, url string) (Source, error) {
	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("video feed request: %w", err)
	}
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	src := &streamSource{latestFrame: newLatestFrame(), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(src.done)
		if err := src.run(client, req, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("video feed ended", zap.String("url", url), zap.Error(err))
		}
	}()
	return src, nil
}

type streamSource struct {
	*latestFrame
	cancel  context.CancelFunc
	done    chan struct{}
	closing sync.Once
}

func (s *streamSource) run(client *http.Client, req *http.Request, logger *zap.Logger) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("video feed status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("video feed content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		// A single still image.
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return s.decodeInto(data)
	}

	mr := multipart.NewReader(resp.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return err
		}
		if err := s.decodeInto(data); err != nil {
			logger.Debug("dropping undecodable feed frame", zap.Error(err))
		}
	}
}

// Close cancels the feed request.
func (s *streamSource) Close() error {
	s.closing.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}
