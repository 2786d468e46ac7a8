package capture

import (
	"context"
	"errors"
)

// Frame is a still image snapshotted from the camera at its native
// resolution, or the bytes of a user-chosen file.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// Camera provides live preview frames. Open failing is non-fatal to the
// page; the file fallback path stays usable.
type Camera interface {
	Open(ctx context.Context) error
	Frame(ctx context.Context) (Frame, error)
}

// Navigator performs the client-side navigation that supersedes the page
// after a successful upload.
type Navigator interface {
	Navigate(url string)
}

// Notifier surfaces blocking user-visible messages.
type Notifier interface {
	Alert(msg string)
}

// Mode is the preview state of the capture UI.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeFrozen Mode = "frozen"
)

var (
	// ErrNoCapture is returned when submission is attempted without a
	// captured frame. No network call is made.
	ErrNoCapture = errors.New("no captured image")

	// ErrSubmissionInFlight is returned when a second submission is
	// attempted while one is pending.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)
