package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/convomesh/logging"
)

// Capture defaults.
const (
	DefaultCaptureInterval = 2 * time.Second
	DefaultMaxSize         = 512
	DefaultQuality         = 60
)

// Options configures a Buffer.
type Options struct {
	// CaptureInterval is the minimal time between two captured frames.
	CaptureInterval time.Duration
	// MaxSize bounds the longer side of raw frames after downscaling.
	MaxSize int
	// Quality is the JPEG quality used for raw frames.
	Quality int
	// Now defaults to time.Now.
	Now func() time.Time
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Buffer holds the most recently captured frame as an image URL.
type Buffer struct {
	interval time.Duration
	maxSize  int
	quality  int
	now      func() time.Time
	logger   logging.Logger

	mu          sync.RWMutex
	latest      string
	lastCapture time.Time
}

// NewBuffer creates an empty buffer.
func NewBuffer(optFns ...func(o *Options)) *Buffer {
	opts := Options{
		CaptureInterval: DefaultCaptureInterval,
		MaxSize:         DefaultMaxSize,
		Quality:         DefaultQuality,
		Now:             time.Now,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Buffer{
		interval: opts.CaptureInterval,
		maxSize:  opts.MaxSize,
		quality:  opts.Quality,
		now:      opts.Now,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Offer captures an encoded frame given as a data URL or bare base64 JPEG.
// It reports false when the frame was skipped by the capture interval.
func (b *Buffer) Offer(frame string) bool {
	frame = strings.TrimSpace(frame)
	if frame == "" {
		return false
	}
	if !strings.HasPrefix(frame, "data:") && !strings.HasPrefix(frame, "http") {
		frame = "data:image/jpeg;base64," + frame
	}
	return b.capture(func() (string, error) { return frame, nil })
}

// OfferRaw captures an uncompressed RGB or RGBA frame of width x height
// pixels, downscaled to MaxSize and JPEG-encoded.
func (b *Buffer) OfferRaw(pix []byte, width, height int) (bool, error) {
	if width <= 0 || height <= 0 {
		return false, ErrInvalidFrame
	}
	channels := 0
	switch len(pix) {
	case width * height * 4:
		channels = 4
	case width * height * 3:
		channels = 3
	default:
		return false, fmt.Errorf("%w: %d bytes for %dx%d", ErrInvalidFrame, len(pix), width, height)
	}
	var encodeErr error
	captured := b.capture(func() (string, error) {
		img := downscale(decodeRaw(pix, width, height, channels), b.maxSize)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: b.quality}); err != nil {
			encodeErr = err
			return "", err
		}
		return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
	})
	return captured, encodeErr
}

// LatestFrame returns the newest captured frame.
func (b *Buffer) LatestFrame() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.latest != ""
}

// Reset drops the captured frame.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = ""
	b.lastCapture = time.Time{}
}

func (b *Buffer) capture(encode func() (string, error)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if !b.lastCapture.IsZero() && now.Sub(b.lastCapture) < b.interval {
		return false
	}
	url, err := encode()
	if err != nil {
		b.logger.Error("vision.capture.failed", "error", err.Error())
		return false
	}
	b.latest = url
	b.lastCapture = now
	b.logger.Debug("vision.capture", "bytes", len(url))
	return true
}

func decodeRaw(pix []byte, width, height, channels int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < len(pix); i, j = i+channels, j+4 {
		img.Pix[j] = pix[i]
		img.Pix[j+1] = pix[i+1]
		img.Pix[j+2] = pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// downscale shrinks img with nearest-neighbour sampling so that its longer
// side is at most maxSize.
func downscale(img *image.RGBA, maxSize int) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}
	ratio := min(float64(maxSize)/float64(w), float64(maxSize)/float64(h))
	nw, nh := max(1, int(float64(w)*ratio)), max(1, int(float64(h)*ratio))
	out := image.NewRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		sy := y * h / nh
		for x := 0; x < nw; x++ {
			sx := x * w / nw
			copy(out.Pix[out.PixOffset(x, y):out.PixOffset(x, y)+4], img.Pix[img.PixOffset(sx, sy):img.PixOffset(sx, sy)+4])
		}
	}
	return out
}
