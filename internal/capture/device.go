package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Constraints selects what a device must provide.
type Constraints struct {
	Video bool
}

// DeviceOpener acquires exclusive access to a local camera.
type DeviceOpener interface {
	Open(ctx context.Context, c Constraints) (Source, error)
}

// DeviceCapability says whether a local camera can be probed at all.
type DeviceCapability struct {
	opener DeviceOpener
	reason string
}

// AvailableDevice wraps an opener that may be probed.
func AvailableDevice(o DeviceOpener) DeviceCapability {
	return DeviceCapability{opener: o}
}

// UnavailableDevice records why no device can be probed.
func UnavailableDevice(reason string) DeviceCapability {
	return DeviceCapability{reason: reason}
}

func (c DeviceCapability) Available() bool { return c.opener != nil }

func (c DeviceCapability) Opener() (DeviceOpener, bool) { return c.opener, c.opener != nil }

func (c DeviceCapability) Reason() string { return c.reason }

// DetectDevice returns an available capability when both the camera device
// and the ffmpeg binary exist.
func DetectDevice(ffmpegPath, device string, logger *zap.Logger) DeviceCapability {
	if device == "" {
		return UnavailableDevice("no camera device configured")
	}
	if runtime.GOOS == "linux" {
		if _, err := os.Stat(device); err != nil {
			return UnavailableDevice(fmt.Sprintf("camera device %s: %v", device, err))
		}
	}
	bin, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return UnavailableDevice(fmt.Sprintf("%s not found on PATH", ffmpegPath))
	}
	return AvailableDevice(&FFmpegDevice{Path: bin, Device: device, Logger: logger})
}

// FFmpegDevice reads a local camera through ffmpeg, which writes MJPEG to
// stdout.
type FFmpegDevice struct {
	Path   string
	Device string
	Logger *zap.Logger

	// StartupGrace bounds how long Open waits for the process to either
	// produce a frame or fail.
	StartupGrace time.Duration
}

func (d *FFmpegDevice) inputArgs() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"-f", "avfoundation", "-framerate", "30", "-i", d.Device}
	case "windows":
		return []string{"-f", "dshow", "-i", "video=" + d.Device}
	default:
		return []string{"-f", "v4l2", "-i", d.Device}
	}
}

func (d *FFmpegDevice) Open(ctx context.Context, c Constraints) (Source, error) {
	if !c.Video {
		return nil, errors.New("open device: video constraint required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	args := append([]string{"-hide_banner", "-loglevel", "error"}, d.inputArgs()...)
	args = append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "5", "-")

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, d.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open device: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", d.Path, err)
	}

	src := &deviceSource{
		latestFrame: newLatestFrame(),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go func() {
		err := readJPEGFrames(stdout, func(b []byte) error {
			if err := src.decodeInto(b); err != nil {
				logger.Debug("dropping undecodable device frame", zap.Error(err))
			}
			return nil
		})
		if werr := cmd.Wait(); werr != nil && err == nil {
			err = werr
		}
		src.finish(err, strings.TrimSpace(stderr.String()))
	}()

	grace := d.StartupGrace
	if grace <= 0 {
		grace = time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-src.Loaded():
	case <-src.done:
		cancel()
		return nil, fmt.Errorf("camera %s: %w", d.Device, src.exitErr())
	case <-timer.C:
	case <-ctx.Done():
		src.Close()
		return nil, ctx.Err()
	}
	logger.Info("camera device opened", zap.String("device", d.Device))
	return src, nil
}

type deviceSource struct {
	*latestFrame
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	err     error
	stderr  string
	closing sync.Once
}

func (s *deviceSource) finish(err error, stderr string) {
	s.mu.Lock()
	s.err = err
	s.stderr = stderr
	s.mu.Unlock()
	close(s.done)
}

func (s *deviceSource) exitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stderr != "" {
		return fmt.Errorf("%s", s.stderr)
	}
	if s.err != nil {
		return s.err
	}
	return errors.New("capture process exited")
}

// Close kills the capture process and waits for it to exit.
func (s *deviceSource) Close() error {
	s.closing.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}
