package scanner

import (
	"errors"
)

var (
	// ErrInsecureContext is returned before any camera request when the
	// page origin is neither HTTPS nor a loopback host.
	ErrInsecureContext = errors.New("camera requires HTTPS or localhost/127.0.0.1")
	// ErrNotMounted means Start ran without a video surface. This is a
	// wiring bug in the caller.
	ErrNotMounted = errors.New("video element not mounted")
	// ErrAcquisition wraps every camera error from the device layer.
	ErrAcquisition = errors.New("unable to start camera")
	// ErrStopped is returned by a Start that was overtaken by Stop.
	ErrStopped = errors.New("scan stopped before the camera started")
	// ErrClosed is returned by every start after Close.
	ErrClosed = errors.New("scanner closed")
)

type Kind string

const (
	KindNone        Kind = ""
	KindEnvironment Kind = "environment"
	KindAcquisition Kind = "acquisition"
	KindMount       Kind = "mount"
)

// KindOf classifies an error returned by Start, SwitchCamera or Rescan.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInsecureContext):
		return KindEnvironment
	case errors.Is(err, ErrNotMounted):
		return KindMount
	case errors.Is(err, ErrAcquisition):
		return KindAcquisition
	default:
		return KindNone
	}
}
