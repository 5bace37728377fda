package capture

import (
	"bufio"
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"sync"
)

// latestFrame keeps only the newest decoded frame of a source.
type latestFrame struct {
	mu     sync.Mutex
	img    image.Image
	loaded chan struct{}
	once   sync.Once
}

func newLatestFrame() *latestFrame {
	return &latestFrame{loaded: make(chan struct{})}
}

func (l *latestFrame) set(img image.Image) {
	l.mu.Lock()
	l.img = img
	l.mu.Unlock()
	l.once.Do(func() { close(l.loaded) })
}

func (l *latestFrame) Current() (image.Image, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.img, l.img != nil
}

func (l *latestFrame) Loaded() <-chan struct{} { return l.loaded }

func (l *latestFrame) Ready() bool {
	img, ok := l.Current()
	if !ok {
		return false
	}
	b := img.Bounds()
	return b.Dx() > 0 && b.Dy() > 0
}

// decodeInto decodes one JPEG and stores it as the newest frame.
func (l *latestFrame) decodeInto(data []byte) error {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	l.set(img)
	return nil
}

// readJPEGFrames splits a concatenated MJPEG byte stream on SOI/EOI markers.
// Entropy-coded data byte-stuffs 0xFF, so EOI only appears at a frame end.
func readJPEGFrames(r io.Reader, emit func([]byte) error) error {
	br := bufio.NewReaderSize(r, 64<<10)
	var buf []byte
	var prev byte
	inFrame := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !inFrame {
			if prev == 0xFF && b == 0xD8 {
				inFrame = true
				buf = append(buf[:0], 0xFF, 0xD8)
			}
			prev = b
			continue
		}
		buf = append(buf, b)
		if prev == 0xFF && b == 0xD9 {
			frame := make([]byte, len(buf))
			copy(frame, buf)
			if err := emit(frame); err != nil {
				return err
			}
			inFrame = false
			b = 0
		}
		prev = b
	}
}
