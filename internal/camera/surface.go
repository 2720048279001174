package camera

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

// ReadyState mirrors how much media a Surface holds.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
)

func (r ReadyState) String() string {
	switch r {
	case HaveMetadata:
		return "have_metadata"
	case HaveCurrentData:
		return "have_current_data"
	default:
		return "have_nothing"
	}
}

var ErrNoSource = errors.New("surface has no stream attached")

// readRetryDelay paces the pump after a failed frame read.
const readRetryDelay = 100 * time.Millisecond

// Surface plays an attached stream. Playback pulls frames on its own
// goroutine and keeps only the most recent one.
type Surface struct {
	log zerolog.Logger

	mu     sync.Mutex
	stream Stream
	frame  image.Image
	state  ReadyState
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSurface(log zerolog.Logger) *Surface {
	return &Surface{log: log}
}

// Attach sets the surface source, replacing and pausing any previous one.
func (s *Surface) Attach(stream Stream) {
	s.Detach(nil)
	s.mu.Lock()
	s.stream = stream
	s.state = HaveMetadata
	s.mu.Unlock()
}

// Play starts pulling frames from the attached stream. Calling Play on a
// playing surface does nothing.
func (s *Surface) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return ErrNoSource
	}
	if s.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.pump(ctx, s.stream, s.done)
	return nil
}

func (s *Surface) pump(ctx context.Context, stream Stream, done chan struct{}) {
	defer close(done)
	for {
		img, err := stream.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, ErrStreamEnded) || ctx.Err() != nil {
				return
			}
			s.log.Debug().Err(err).Str("stream_id", stream.ID()).Msg("frame read failed")
			select {
			case <-time.After(readRetryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}

		s.mu.Lock()
		if s.stream == stream {
			s.frame = img
			s.state = HaveCurrentData
		}
		s.mu.Unlock()
	}
}

// Detach stops playback, waits for the pump to exit and clears the
// source. With a non-nil stream it only acts when that stream is the
// current source. The stream itself is not stopped; its owner does that.
func (s *Surface) Detach(stream Stream) {
	s.mu.Lock()
	if stream != nil && s.stream != stream {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.stream = nil
	s.frame = nil
	s.state = HaveNothing
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Surface) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// VideoSize reports the native size of the current frame, or zeros when
// no frame has arrived.
func (s *Surface) VideoSize() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return 0, 0
	}
	b := s.frame.Bounds()
	return b.Dx(), b.Dy()
}

// DrawTo copies the current frame into dst, scaling when sizes differ.
// It reports false when there is no frame.
func (s *Surface) DrawTo(dst *image.RGBA) bool {
	s.mu.Lock()
	frame := s.frame
	s.mu.Unlock()
	if frame == nil {
		return false
	}

	src := frame.Bounds()
	if src.Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), frame, src.Min, draw.Src)
		return true
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, src, draw.Src, nil)
	return true
}
