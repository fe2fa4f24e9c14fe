package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFrame is returned by Trigger when nothing has been captured yet
	ErrNoFrame = errors.New("no frame available")
	// ErrClosed is returned after the orchestrator has been closed
	ErrClosed = errors.New("capture closed")
	// ErrAlreadyStarted is returned by a second Start call
	ErrAlreadyStarted = errors.New("source already started")
)

// DeviceError reports a failure opening or reading the capture device
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
