package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StillDevices serves fixed images as camera frames, looping over them
// at a fixed interval. Each facing mode is a separate camera.
type StillDevices struct {
	frames   map[FacingMode][]image.Image
	interval time.Duration
}

func NewStillDevices(frames map[FacingMode][]image.Image, interval time.Duration) *StillDevices {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	return &StillDevices{frames: frames, interval: interval}
}

// LoadStillDevices decodes PNG or JPEG files for each facing mode.
func LoadStillDevices(paths map[FacingMode][]string, interval time.Duration) (*StillDevices, error) {
	frames := make(map[FacingMode][]image.Image, len(paths))
	for facing, files := range paths {
		for _, p := range files {
			img, err := loadImage(p)
			if err != nil {
				return nil, err
			}
			frames[facing] = append(frames[facing], img)
		}
	}
	return NewStillDevices(frames, interval), nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

func (d *StillDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := checkConstraints(c); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	facing, err := pick(c, func(f FacingMode) bool { return len(d.frames[f]) > 0 })
	if err != nil {
		return nil, err
	}
	return &stillStream{
		id:       uuid.NewString(),
		track:    newVideoTrack("still " + string(facing)),
		frames:   d.frames[facing],
		interval: d.interval,
	}, nil
}

type stillStream struct {
	id       string
	track    *videoTrack
	frames   []image.Image
	interval time.Duration

	mu   sync.Mutex
	next int
}

func (s *stillStream) ID() string      { return s.id }
func (s *stillStream) Tracks() []Track { return []Track{s.track} }

func (s *stillStream) ReadFrame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	n := s.next
	s.next++
	s.mu.Unlock()

	if n > 0 {
		timer := time.NewTimer(s.interval)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.track.Ended():
			return nil, ErrStreamEnded
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	select {
	case <-s.track.Ended():
		return nil, ErrStreamEnded
	default:
	}
	return s.frames[n%len(s.frames)], nil
}
