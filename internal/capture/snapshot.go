package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"time"
)

const (
	FallbackWidth  = 640
	FallbackHeight = 480
	JPEGQuality    = 85
)

// Snapshot draws img into an off-screen raster at its native size and
// encodes it as JPEG.
func Snapshot(img image.Image, at time.Time) (Frame, error) {
	w, h := FallbackWidth, FallbackHeight
	var src image.Rectangle
	if img != nil {
		src = img.Bounds()
		if src.Dx() > 0 && src.Dy() > 0 {
			w, h = src.Dx(), src.Dy()
		}
	}

	raster := image.NewRGBA(image.Rect(0, 0, w, h))
	if img != nil {
		draw.Draw(raster, raster.Bounds(), img, src.Min, draw.Src)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raster, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	return Frame{JPEG: buf.Bytes(), Width: w, Height: h, CapturedAt: at}, nil
}
