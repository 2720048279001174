package camera

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type videoTrack struct {
	id    string
	label string
	once  sync.Once
	ended chan struct{}
}

func newVideoTrack(label string) *videoTrack {
	return &videoTrack{
		id:    uuid.NewString(),
		label: label,
		ended: make(chan struct{}),
	}
}

func (t *videoTrack) ID() string    { return t.id }
func (t *videoTrack) Kind() string  { return "video" }
func (t *videoTrack) Label() string { return t.label }

func (t *videoTrack) Stop() {
	t.once.Do(func() { close(t.ended) })
}

func (t *videoTrack) Ended() <-chan struct{} { return t.ended }

// trackContext returns a context cancelled when ctx is done or the track ends.
func trackContext(ctx context.Context, t *videoTrack) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-t.ended:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
