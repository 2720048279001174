package scanner

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"qrscan-service/internal/camera"
)

// session is one camera acquisition. The loop goroutine is the only
// reader of buf; the scanner owns everything else.
type session struct {
	id     string
	stream camera.Stream
	ticker Ticker
	cancel context.CancelFunc
	done   chan struct{}

	buf      *image.RGBA
	attempts int64

	releaseOnce sync.Once
}

// run makes one decode attempt per tick until a payload is found or the
// session is cancelled.
func (s *Scanner) run(ctx context.Context, sess *session) {
	defer close(sess.done)
	defer sess.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.ticker.C():
		}
		if ctx.Err() != nil {
			return
		}

		text, ok := s.attempt(sess)
		if !ok {
			continue
		}
		s.decodedOnce(sess, text)
		return
	}
}

// attempt snapshots the current frame and decodes it. Frames that are not
// ready yet count as a miss.
func (s *Scanner) attempt(sess *session) (string, bool) {
	if s.surface.ReadyState() < camera.HaveCurrentData {
		return "", false
	}

	w, h := s.surface.VideoSize()
	if w <= 0 || h <= 0 {
		w, h = s.defWidth, s.defHeight
	}
	if sess.buf == nil || sess.buf.Rect.Dx() != w || sess.buf.Rect.Dy() != h {
		sess.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	if !s.surface.DrawTo(sess.buf) {
		return "", false
	}

	atomic.AddInt64(&sess.attempts, 1)
	return s.decoder.Decode(sess.buf)
}

// decodedOnce records the payload and ends the session: Active -> Idle.
func (s *Scanner) decodedOnce(sess *session, text string) {
	s.mu.Lock()
	if s.sess != sess {
		// Stop got here first and owns the teardown.
		s.mu.Unlock()
		return
	}
	s.sess = nil
	s.gen++
	s.decoded = text
	s.status = StatusIdle
	s.release(sess)
	s.changedLocked()
	s.mu.Unlock()

	s.log.Info().
		Str("stream_id", sess.id).
		Int64("attempts", atomic.LoadInt64(&sess.attempts)).
		Int("payload_len", len(text)).
		Msg("qr payload decoded")
}
