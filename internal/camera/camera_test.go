package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFacingMode(t *testing.T) {
	assert.Equal(t, FacingUser, FacingEnvironment.Toggle())
	assert.Equal(t, FacingEnvironment, FacingUser.Toggle())

	f, err := ParseFacingMode("user")
	require.NoError(t, err)
	assert.Equal(t, FacingUser, f)

	_, err = ParseFacingMode("front")
	assert.Error(t, err)
}

func TestStillDevicesIdealFallsBack(t *testing.T) {
	env := solid(4, 4, color.White)
	d := NewStillDevices(map[FacingMode][]image.Image{FacingEnvironment: {env}}, time.Millisecond)

	stream, err := d.GetUserMedia(context.Background(), VideoOnly(FacingUser))
	require.NoError(t, err)
	defer StopAll(stream)

	assert.Equal(t, "still environment", stream.Tracks()[0].Label())
	img, err := stream.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, env, img)
}

func TestStillDevicesRejectsBadConstraints(t *testing.T) {
	d := NewStillDevices(map[FacingMode][]image.Image{FacingEnvironment: {solid(1, 1, color.White)}}, 0)

	_, err := d.GetUserMedia(context.Background(), Constraints{Video: &VideoConstraints{}, Audio: true})
	assert.ErrorIs(t, err, ErrAudioUnsupported)

	_, err = d.GetUserMedia(context.Background(), Constraints{})
	assert.ErrorIs(t, err, ErrInvalidConstraints)

	empty := NewStillDevices(nil, 0)
	_, err = empty.GetUserMedia(context.Background(), VideoOnly(""))
	assert.ErrorIs(t, err, ErrNoCamera)
}

func TestStillStreamEndsOnStop(t *testing.T) {
	d := NewStillDevices(map[FacingMode][]image.Image{FacingUser: {solid(1, 1, color.Black)}}, time.Hour)
	stream, err := d.GetUserMedia(context.Background(), VideoOnly(""))
	require.NoError(t, err)

	_, err = stream.ReadFrame(context.Background())
	require.NoError(t, err)

	StopAll(stream)
	StopAll(stream)
	_, err = stream.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrStreamEnded)
}

func TestLoadStillDevices(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(8, 6, color.White)))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	d, err := LoadStillDevices(map[FacingMode][]string{FacingEnvironment: {path}}, 0)
	require.NoError(t, err)
	stream, err := d.GetUserMedia(context.Background(), VideoOnly(""))
	require.NoError(t, err)
	defer StopAll(stream)

	img, err := stream.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())

	_, err = LoadStillDevices(map[FacingMode][]string{FacingEnvironment: {filepath.Join(dir, "missing.png")}}, 0)
	assert.Error(t, err)
}

func TestSnapshotDevices(t *testing.T) {
	var frame bytes.Buffer
	require.NoError(t, png.Encode(&frame, solid(10, 10, color.White)))

	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(frame.Bytes())
	})
	mux.HandleFunc("/locked.png", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/busy.png", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Run("ok", func(t *testing.T) {
		d := NewSnapshotDevices(srv.Client(), map[FacingMode]string{FacingEnvironment: srv.URL + "/ok.png"}, time.Millisecond, zerolog.Nop())
		stream, err := d.GetUserMedia(context.Background(), VideoOnly(FacingUser))
		require.NoError(t, err)
		defer StopAll(stream)

		for i := 0; i < 2; i++ {
			img, err := stream.ReadFrame(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 10, img.Bounds().Dx())
		}
	})

	t.Run("forbidden", func(t *testing.T) {
		d := NewSnapshotDevices(srv.Client(), map[FacingMode]string{FacingUser: srv.URL + "/locked.png"}, 0, zerolog.Nop())
		_, err := d.GetUserMedia(context.Background(), VideoOnly(FacingUser))
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("busy", func(t *testing.T) {
		d := NewSnapshotDevices(srv.Client(), map[FacingMode]string{FacingUser: srv.URL + "/busy.png"}, 0, zerolog.Nop())
		_, err := d.GetUserMedia(context.Background(), VideoOnly(""))
		assert.ErrorIs(t, err, ErrDeviceBusy)
	})

	t.Run("no url", func(t *testing.T) {
		d := NewSnapshotDevices(srv.Client(), nil, 0, zerolog.Nop())
		_, err := d.GetUserMedia(context.Background(), VideoOnly(""))
		assert.ErrorIs(t, err, ErrNoCamera)
	})
}

func TestSurfacePlayback(t *testing.T) {
	d := NewStillDevices(map[FacingMode][]image.Image{FacingEnvironment: {solid(32, 24, color.White)}}, time.Millisecond)
	stream, err := d.GetUserMedia(context.Background(), VideoOnly(""))
	require.NoError(t, err)
	defer StopAll(stream)

	s := NewSurface(zerolog.Nop())
	assert.Equal(t, HaveNothing, s.ReadyState())
	assert.ErrorIs(t, s.Play(), ErrNoSource)

	s.Attach(stream)
	assert.Equal(t, HaveMetadata, s.ReadyState())
	require.NoError(t, s.Play())
	require.NoError(t, s.Play())

	require.Eventually(t, func() bool { return s.ReadyState() == HaveCurrentData }, time.Second, time.Millisecond)
	w, h := s.VideoSize()
	assert.Equal(t, 32, w)
	assert.Equal(t, 24, h)

	same := image.NewRGBA(image.Rect(0, 0, 32, 24))
	assert.True(t, s.DrawTo(same))
	assert.Equal(t, uint8(255), same.Pix[0])

	scaled := image.NewRGBA(image.Rect(0, 0, 16, 12))
	assert.True(t, s.DrawTo(scaled))

	other := &stillStream{}
	s.Detach(other)
	assert.Equal(t, HaveCurrentData, s.ReadyState(), "detaching another stream is ignored")

	s.Detach(stream)
	assert.Equal(t, HaveNothing, s.ReadyState())
	assert.False(t, s.DrawTo(same))
	w, h = s.VideoSize()
	assert.Zero(t, w)
	assert.Zero(t, h)
}
