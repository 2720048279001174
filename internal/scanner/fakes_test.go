package scanner

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"qrscan-service/internal/camera"
	"qrscan-service/internal/qr"
)

type fakeTrack struct {
	once   sync.Once
	ended  chan struct{}
	onStop func()
}

func (t *fakeTrack) ID() string    { return "track" }
func (t *fakeTrack) Kind() string  { return "video" }
func (t *fakeTrack) Label() string { return "fake" }
func (t *fakeTrack) Stop() {
	t.once.Do(func() {
		close(t.ended)
		if t.onStop != nil {
			t.onStop()
		}
	})
}
func (t *fakeTrack) Ended() <-chan struct{} { return t.ended }

type fakeStream struct {
	id    string
	track *fakeTrack
}

func (s *fakeStream) ID() string             { return s.id }
func (s *fakeStream) Tracks() []camera.Track { return []camera.Track{s.track} }
func (s *fakeStream) ReadFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.track.ended:
		return nil, camera.ErrStreamEnded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeDevices struct {
	mu     sync.Mutex
	err    error
	calls  []camera.Constraints
	live   int
	issued int
}

func (d *fakeDevices) GetUserMedia(_ context.Context, c camera.Constraints) (camera.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
	if d.err != nil {
		return nil, d.err
	}
	d.live++
	d.issued++
	track := &fakeTrack{ended: make(chan struct{})}
	track.onStop = func() {
		d.mu.Lock()
		d.live--
		d.mu.Unlock()
	}
	return &fakeStream{id: "stream", track: track}, nil
}

func (d *fakeDevices) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDevices) liveStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *fakeDevices) lastConstraints() camera.Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[len(d.calls)-1]
}

func (d *fakeDevices) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// fakeSurface hands out whatever frame the test sets.
type fakeSurface struct {
	mu       sync.Mutex
	attached camera.Stream
	playing  bool
	frame    image.Image
	ready    camera.ReadyState
	// unsized makes VideoSize report 0x0, as before metadata arrives.
	unsized bool
}

func (s *fakeSurface) Attach(stream camera.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = stream
}

func (s *fakeSurface) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	return nil
}

func (s *fakeSurface) Detach(stream camera.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stream != nil && s.attached != stream {
		return
	}
	s.attached = nil
	s.playing = false
}

func (s *fakeSurface) ReadyState() camera.ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeSurface) VideoSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil || s.unsized {
		return 0, 0
	}
	b := s.frame.Bounds()
	return b.Dx(), b.Dy()
}

func (s *fakeSurface) DrawTo(dst *image.RGBA) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return false
	}
	draw.Draw(dst, dst.Bounds(), s.frame, s.frame.Bounds().Min, draw.Src)
	return true
}

func (s *fakeSurface) show(frame image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.ready = camera.HaveCurrentData
}

func (s *fakeSurface) isAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached != nil
}

// manualTicker fires only when the test sends on it.
type manualTicker struct {
	c       chan time.Time
	once    sync.Once
	stopped chan struct{}
}

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               { m.once.Do(func() { close(m.stopped) }) }

type tickers struct {
	mu   sync.Mutex
	list []*manualTicker
}

func (t *tickers) factory() Ticker {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := &manualTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	t.list = append(t.list, m)
	return m
}

func (t *tickers) last() *manualTicker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.list[len(t.list)-1]
}

// tick blocks until the loop takes the tick or the timeout passes.
func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.c <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("decode loop did not take the tick")
	}
}

type harness struct {
	scanner *Scanner
	devices *fakeDevices
	surface *fakeSurface
	tickers *tickers
}

func newHarness(t *testing.T, origin string, mobile bool) *harness {
	t.Helper()
	u, err := url.Parse(origin)
	require.NoError(t, err)

	h := &harness{
		devices: &fakeDevices{},
		surface: &fakeSurface{},
		tickers: &tickers{},
	}
	h.scanner = New(Options{
		ID:      "test-scanner",
		Devices: h.devices,
		Surface: h.surface,
		Decoder: qr.NewZXing(),
		Origin:  u,
		Mobile:  mobile,
		Ticker:  h.tickers.factory,
		Log:     zerolog.Nop(),
	})
	t.Cleanup(h.scanner.Stop)
	return h
}

func blankFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

func codeFrame(t *testing.T, text string) image.Image {
	t.Helper()
	img, err := qr.Encode(text, 240)
	require.NoError(t, err)
	return img
}

// recordingDecoder keeps every image it is asked to decode.
type recordingDecoder struct {
	mu   sync.Mutex
	seen []image.Image
}

func (d *recordingDecoder) Decode(img image.Image) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, img)
	return "", false
}

func (d *recordingDecoder) images() []image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]image.Image(nil), d.seen...)
}
