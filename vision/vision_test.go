package vision

import (
	"bytes"
	"encoding/base64"
	"image/jpeg"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/convomesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ tool.FrameSource = (*Buffer)(nil)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBuffer(clock *fakeClock) *Buffer {
	return NewBuffer(func(o *Options) { o.Now = clock.Now })
}

func TestBuffer_Empty(t *testing.T) {
	_, ok := NewBuffer().LatestFrame()
	assert.False(t, ok)
	assert.False(t, NewBuffer().Offer("  "))
}

func TestBuffer_CaptureInterval(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := newTestBuffer(clock)

	assert.True(t, b.Offer("data:image/png;base64,AAA"))
	clock.Advance(time.Second)
	assert.False(t, b.Offer("data:image/png;base64,BBB"))

	url, ok := b.LatestFrame()
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAA", url)

	clock.Advance(time.Second)
	assert.True(t, b.Offer("CCC"))
	url, _ = b.LatestFrame()
	assert.Equal(t, "data:image/jpeg;base64,CCC", url)
}

func TestBuffer_Reset(t *testing.T) {
	b := NewBuffer()
	require.True(t, b.Offer("AAA"))
	b.Reset()
	_, ok := b.LatestFrame()
	assert.False(t, ok)
	assert.True(t, b.Offer("BBB"))
}

func TestBuffer_OfferRawDownscales(t *testing.T) {
	b := NewBuffer(func(o *Options) { o.MaxSize = 16 })
	const w, h = 64, 32
	pix := bytes.Repeat([]byte{200, 10, 10}, w*h)

	ok, err := b.OfferRaw(pix, w, h)
	require.NoError(t, err)
	require.True(t, ok)

	url, _ := b.LatestFrame()
	require.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestBuffer_OfferRawRGBA(t *testing.T) {
	b := NewBuffer()
	ok, err := b.OfferRaw(make([]byte, 4*4*4), 4, 4)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuffer_OfferRawInvalid(t *testing.T) {
	b := NewBuffer()
	_, err := b.OfferRaw([]byte{1, 2, 3}, 4, 4)
	assert.ErrorIs(t, err, ErrInvalidFrame)
	_, err = b.OfferRaw(nil, 0, 4)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestStore(t *testing.T) {
	s := NewStore(func(o *Options) { o.CaptureInterval = time.Hour })

	b := s.Buffer("s1")
	assert.Same(t, b, s.Buffer("s1"))
	require.True(t, b.Offer("AAA"))
	assert.False(t, b.Offer("BBB"))

	got, err := s.Get("s1")
	require.NoError(t, err)
	assert.Same(t, b, got)
	assert.Equal(t, []string{"s1"}, s.Sessions())

	require.NoError(t, s.Delete("s1"))
	assert.ErrorIs(t, s.Delete("s1"), ErrNotFound)
	_, err = s.Get("s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
