// Package capture acquires a visual input source, takes single-frame
// snapshots from it and submits them for emotion prediction.
//
// A session is backed either by a local camera device or, when the device
// cannot be opened, by the prediction service's MJPEG video feed. Both kinds
// expose the same Source so the analyzer does not care which one is live.
package capture

import (
	"image"
	"time"
)

// SourceKind identifies which strategy produced the active session.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceDevice
	SourceRemoteStream
)

func (k SourceKind) String() string {
	switch k {
	case SourceDevice:
		return "device"
	case SourceRemoteStream:
		return "remote_stream"
	default:
		return "none"
	}
}

// Source is a live visual input.
type Source interface {
	// Ready reports whether a decoded frame with non-zero dimensions is available.
	Ready() bool
	// Loaded is closed once, when the first frame has been decoded.
	Loaded() <-chan struct{}
	// Current returns the most recent decoded frame.
	Current() (image.Image, bool)
	// Close releases the underlying device or request.
	Close() error
}

// Frame is one JPEG-encoded snapshot.
type Frame struct {
	JPEG       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}
