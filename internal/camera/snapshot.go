package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SnapshotDevices exposes IP cameras that serve a still JPEG or PNG per
// request, one URL per facing mode. Streams poll the URL at a fixed
// interval.
type SnapshotDevices struct {
	client   *http.Client
	urls     map[FacingMode]string
	interval time.Duration
	log      zerolog.Logger
}

func NewSnapshotDevices(client *http.Client, urls map[FacingMode]string, interval time.Duration, log zerolog.Logger) *SnapshotDevices {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &SnapshotDevices{
		client:   client,
		urls:     urls,
		interval: interval,
		log:      log,
	}
}

func (d *SnapshotDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := checkConstraints(c); err != nil {
		return nil, err
	}
	facing, err := pick(c, func(f FacingMode) bool { return d.urls[f] != "" })
	if err != nil {
		return nil, err
	}
	url := d.urls[facing]

	// The first snapshot doubles as the permission probe.
	first, err := d.fetch(ctx, url)
	if err != nil {
		d.log.Warn().Err(err).Str("facing", string(facing)).Msg("snapshot camera acquisition failed")
		return nil, err
	}

	return &snapshotStream{
		id:      uuid.NewString(),
		track:   newVideoTrack("snapshot " + string(facing)),
		devices: d,
		url:     url,
		pending: first,
	}, nil
}

func (d *SnapshotDevices) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCamera, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceBusy, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: camera answered %s", ErrPermissionDenied, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: camera answered %s", ErrNoCamera, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: camera answered %s", ErrDeviceBusy, resp.Status)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable snapshot: %v", ErrDeviceBusy, err)
	}
	return img, nil
}

type snapshotStream struct {
	id      string
	track   *videoTrack
	devices *SnapshotDevices
	url     string

	mu      sync.Mutex
	pending image.Image
}

func (s *snapshotStream) ID() string      { return s.id }
func (s *snapshotStream) Tracks() []Track { return []Track{s.track} }

func (s *snapshotStream) ReadFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.track.Ended():
		return nil, ErrStreamEnded
	default:
	}

	s.mu.Lock()
	img := s.pending
	s.pending = nil
	s.mu.Unlock()
	if img != nil {
		return img, nil
	}

	timer := time.NewTimer(s.devices.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.track.Ended():
		return nil, ErrStreamEnded
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ctx, cancel := trackContext(ctx, s.track)
	defer cancel()
	img, err := s.devices.fetch(ctx, s.url)
	if err != nil && errors.Is(err, context.Canceled) {
		select {
		case <-s.track.Ended():
			return nil, ErrStreamEnded
		default:
		}
	}
	return img, err
}
