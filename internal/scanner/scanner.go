// Package scanner runs the camera capture and QR decode loop.
//
// A Scanner owns at most one capture session at a time. A session holds
// the camera stream, the frame ticker and the pixel buffer frames are
// drawn into; it ends on Stop, on a restart, or after the first decoded
// payload.
package scanner

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"qrscan-service/internal/camera"
	"qrscan-service/internal/qr"
	"qrscan-service/internal/utils"
)

const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusStarting Status = "starting"
	StatusActive   Status = "active"
	StatusError    Status = "error"
)

// State is a snapshot of what a scanner exposes to its caller. Decoded
// and Error are empty when absent.
type State struct {
	ID        string            `json:"id"`
	Status    Status            `json:"status"`
	Facing    camera.FacingMode `json:"facing"`
	Mobile    bool              `json:"mobile"`
	Decoded   string            `json:"decoded,omitempty"`
	Error     string            `json:"error,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Surface receives the camera stream and hands out frames.
type Surface interface {
	Attach(stream camera.Stream)
	Play() error
	Detach(stream camera.Stream)
	ReadyState() camera.ReadyState
	VideoSize() (width, height int)
	DrawTo(dst *image.RGBA) bool
}

type Options struct {
	ID      string
	Devices camera.Devices
	// Surface may be nil; Start then fails with ErrNotMounted.
	Surface Surface
	Decoder qr.Decoder
	// Origin is where the controlling page is served from.
	Origin *url.URL
	// Mobile is fixed for the scanner's lifetime.
	Mobile bool
	Facing camera.FacingMode
	Ticker TickerFunc

	DefaultWidth  int
	DefaultHeight int

	Log zerolog.Logger
}

type Scanner struct {
	id        string
	devices   camera.Devices
	surface   Surface
	decoder   qr.Decoder
	origin    *url.URL
	mobile    bool
	newTicker TickerFunc
	defWidth  int
	defHeight int
	log       zerolog.Logger

	// startMu serialises Start, SwitchCamera and Rescan.
	startMu sync.Mutex

	mu          sync.Mutex
	closed      bool
	gen         uint64
	status      Status
	facing      camera.FacingMode
	decoded     string
	lastErr     string
	updatedAt   time.Time
	sess        *session
	cancelStart context.CancelFunc
	watchers    map[int]chan State
	nextWatcher int
}

func New(opts Options) *Scanner {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Decoder == nil {
		opts.Decoder = qr.NewZXing()
	}
	if !opts.Facing.Valid() {
		opts.Facing = camera.FacingEnvironment
	}
	if opts.Ticker == nil {
		opts.Ticker = FrameTicker(DefaultFPS)
	}
	if opts.DefaultWidth <= 0 || opts.DefaultHeight <= 0 {
		opts.DefaultWidth, opts.DefaultHeight = DefaultWidth, DefaultHeight
	}
	return &Scanner{
		id:        opts.ID,
		devices:   opts.Devices,
		surface:   opts.Surface,
		decoder:   opts.Decoder,
		origin:    opts.Origin,
		mobile:    opts.Mobile,
		newTicker: opts.Ticker,
		defWidth:  opts.DefaultWidth,
		defHeight: opts.DefaultHeight,
		log:       opts.Log.With().Str("scanner_id", opts.ID).Logger(),
		status:    StatusIdle,
		facing:    opts.Facing,
		updatedAt: time.Now(),
		watchers:  make(map[int]chan State),
	}
}

func (s *Scanner) ID() string { return s.id }

// State returns the current observable state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Scanner) stateLocked() State {
	return State{
		ID:        s.id,
		Status:    s.status,
		Facing:    s.facing,
		Mobile:    s.mobile,
		Decoded:   s.decoded,
		Error:     s.lastErr,
		UpdatedAt: s.updatedAt,
	}
}

// Watch delivers the latest state after every change until ctx is done.
// Slow readers only see the most recent state.
func (s *Scanner) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	ch <- s.stateLocked()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// changedLocked stamps the state and fans it out. Callers hold s.mu.
func (s *Scanner) changedLocked() {
	s.updatedAt = time.Now()
	st := s.stateLocked()
	for _, ch := range s.watchers {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

// Start acquires the camera and begins decoding. facing, when non-nil,
// becomes the selected facing mode; it only shapes the request on mobile
// devices. Any running session is stopped first.
//
// Failures are recorded in the state and returned; the scanner is left
// without a stream and may be started again.
func (s *Scanner) Start(ctx context.Context, facing *camera.FacingMode) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	return s.start(ctx, facing)
}

func (s *Scanner) start(ctx context.Context, facing *camera.FacingMode) error {
	s.Stop()

	acquireCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if facing != nil && facing.Valid() {
		s.facing = *facing
	}
	face := s.facing
	s.gen++
	gen := s.gen
	s.status = StatusStarting
	s.decoded = ""
	s.lastErr = ""
	s.cancelStart = cancel
	s.changedLocked()
	s.mu.Unlock()

	if s.surface == nil {
		return s.fail(gen, ErrNotMounted)
	}
	if !utils.IsSecureOrigin(s.origin) {
		return s.fail(gen, ErrInsecureContext)
	}

	constraints := camera.VideoOnly("")
	if s.mobile {
		constraints = camera.VideoOnly(face)
	}

	stream, err := s.devices.GetUserMedia(acquireCtx, constraints)
	if err != nil {
		return s.fail(gen, fmt.Errorf("%w: %w", ErrAcquisition, err))
	}

	s.surface.Attach(stream)
	if err := s.surface.Play(); err != nil {
		// Playback that never starts leaves the loop waiting on frames.
		s.log.Warn().Err(err).Str("stream_id", stream.ID()).Msg("video playback did not start")
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	sess := &session{
		id:     stream.ID(),
		stream: stream,
		ticker: s.newTicker(),
		cancel: stopLoop,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		stopLoop()
		sess.ticker.Stop()
		s.release(sess)
		return ErrStopped
	}
	s.cancelStart = nil
	s.sess = sess
	s.status = StatusActive
	s.changedLocked()
	go s.run(loopCtx, sess)
	s.mu.Unlock()

	s.log.Info().
		Str("stream_id", sess.id).
		Str("facing", string(face)).
		Bool("mobile", s.mobile).
		Msg("camera started")
	return nil
}

// fail records err unless a Stop or newer Start superseded this attempt.
func (s *Scanner) fail(gen uint64, err error) error {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrStopped
	}
	s.cancelStart = nil
	s.status = StatusError
	s.lastErr = err.Error()
	s.changedLocked()
	s.mu.Unlock()

	s.log.Warn().Err(err).Str("kind", string(KindOf(err))).Msg("camera start failed")
	return err
}

// Stop cancels the decode loop, stops every track and detaches the
// surface. It is synchronous and safe to call in any state.
func (s *Scanner) Stop() {
	s.mu.Lock()
	s.gen++
	sess := s.sess
	s.sess = nil
	if s.cancelStart != nil {
		s.cancelStart()
		s.cancelStart = nil
	}
	if s.status != StatusIdle {
		s.status = StatusIdle
		s.changedLocked()
	}
	s.mu.Unlock()

	if sess == nil {
		return
	}
	sess.cancel()
	<-sess.done
	s.release(sess)
	s.log.Info().
		Str("stream_id", sess.id).
		Int64("attempts", atomic.LoadInt64(&sess.attempts)).
		Msg("camera stopped")
}

// Close stops the scanner for good. Starts queued behind it, and any
// later ones, return ErrClosed without touching the camera.
func (s *Scanner) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Stop()
}

// SwitchCamera toggles the facing mode and restarts. It does nothing on
// non-mobile devices. The toggled mode is kept even if the restart fails.
func (s *Scanner) SwitchCamera(ctx context.Context) error {
	if !s.mobile {
		return nil
	}
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	next := s.facing.Toggle()
	s.facing = next
	s.mu.Unlock()

	return s.start(ctx, &next)
}

// Rescan clears the last result and starts again with the selected
// facing mode.
func (s *Scanner) Rescan(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	s.decoded = ""
	s.lastErr = ""
	s.mu.Unlock()

	return s.start(ctx, nil)
}

// release stops the stream and clears the surface once per session.
func (s *Scanner) release(sess *session) {
	sess.releaseOnce.Do(func() {
		camera.StopAll(sess.stream)
		s.surface.Detach(sess.stream)
	})
}
