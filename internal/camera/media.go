// Package camera models video capture: device acquisition with
// constraints, streams made of stoppable tracks, and a Surface that plays
// a stream the way a video element would.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// FacingMode selects which physical camera a request prefers.
type FacingMode string

const (
	FacingEnvironment FacingMode = "environment"
	FacingUser        FacingMode = "user"
)

// Toggle returns the opposite facing mode.
func (f FacingMode) Toggle() FacingMode {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

func (f FacingMode) Valid() bool {
	return f == FacingEnvironment || f == FacingUser
}

// ParseFacingMode parses "environment" or "user".
func ParseFacingMode(s string) (FacingMode, error) {
	f := FacingMode(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown facing mode %q", s)
	}
	return f, nil
}

// FacingConstraint is a preference. Devices fall back to another camera
// when the ideal one is missing instead of failing the request.
type FacingConstraint struct {
	Ideal FacingMode
}

type VideoConstraints struct {
	FacingMode *FacingConstraint
}

// Constraints describe a capture request. A nil Video requests no video.
type Constraints struct {
	Video *VideoConstraints
	Audio bool
}

// VideoOnly returns constraints for a generic video stream, or one
// preferring the given facing mode when facing is non-empty.
func VideoOnly(facing FacingMode) Constraints {
	v := &VideoConstraints{}
	if facing != "" {
		v.FacingMode = &FacingConstraint{Ideal: facing}
	}
	return Constraints{Video: v}
}

// Acquisition failures returned by Devices.
var (
	ErrPermissionDenied        = errors.New("permission to use the camera was denied")
	ErrNoCamera                = errors.New("no camera available")
	ErrDeviceBusy              = errors.New("camera is busy or unreadable")
	ErrConstraintUnsatisfiable = errors.New("no camera satisfies the requested constraints")
	ErrAudioUnsupported        = errors.New("audio capture is not supported")
	ErrInvalidConstraints      = errors.New("at least video must be requested")
)

// ErrStreamEnded is returned by Stream.ReadFrame once every track stopped.
var ErrStreamEnded = errors.New("stream ended")

// Track is one live media track of a Stream.
type Track interface {
	ID() string
	Kind() string
	Label() string
	// Stop releases the underlying device. It is safe to call repeatedly.
	Stop()
	Ended() <-chan struct{}
}

// Stream is a live capture handle.
type Stream interface {
	ID() string
	Tracks() []Track
	// ReadFrame blocks until the next frame, ctx cancellation, or the end
	// of the stream.
	ReadFrame(ctx context.Context) (image.Image, error)
}

// Devices grants streams matching the given constraints.
type Devices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// StopAll stops every track of s. A nil stream is ignored.
func StopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

func checkConstraints(c Constraints) error {
	if c.Audio {
		return ErrAudioUnsupported
	}
	if c.Video == nil {
		return ErrInvalidConstraints
	}
	return nil
}

// pick resolves the facing preference against the cameras that exist.
func pick(c Constraints, available func(FacingMode) bool) (FacingMode, error) {
	order := []FacingMode{FacingEnvironment, FacingUser}
	if c.Video.FacingMode != nil && c.Video.FacingMode.Ideal.Valid() {
		ideal := c.Video.FacingMode.Ideal
		order = []FacingMode{ideal, ideal.Toggle()}
	}
	for _, f := range order {
		if available(f) {
			return f, nil
		}
	}
	return "", ErrNoCamera
}
