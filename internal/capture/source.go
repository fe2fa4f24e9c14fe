package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/image/draw"
)

const defaultRetryDelay = 100 * time.Millisecond

// Device is a blocking frame producer such as a webcam
type Device interface {
	// Read blocks until the next frame is available
	Read() (image.Image, error)
	Close() error
}

// SourceStats counts what the acquisition loop has done
type SourceStats struct {
	Frames     uint64 `json:"frames"`
	ReadErrors uint64 `json:"read_errors"`
	Drops      uint64 `json:"drops"`
}

// SourceOption configures a Source
type SourceOption func(*Source)

// WithSourceClock sets the clock used for timestamps and retry backoff
func WithSourceClock(c clock.Clock) SourceOption {
	return func(s *Source) {
		s.clock = c
	}
}

// WithRetryDelay sets how long the loop waits after a failed read
func WithRetryDelay(d time.Duration) SourceOption {
	return func(s *Source) {
		s.retryDelay = d
	}
}

// WithErrorHandler registers a callback for device read errors
func WithErrorHandler(fn func(error)) SourceOption {
	return func(s *Source) {
		s.onError = fn
	}
}

// Source owns a capture Device and feeds its frames into a Mailbox from a
// single background goroutine
type Source struct {
	device     Device
	mailbox    *Mailbox
	clock      clock.Clock
	retryDelay time.Duration
	onError    func(error)

	active atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	frames     atomic.Uint64
	readErrors atomic.Uint64
}

// NewSource creates a Source reading device into mailbox
func NewSource(device Device, mailbox *Mailbox, opts ...SourceOption) *Source {
	s := &Source{
		device:     device,
		mailbox:    mailbox,
		clock:      clock.New(),
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the acquisition loop. The loop runs until Stop is called or ctx is done.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.active.Store(true)

	s.wg.Add(1)
	go s.loop(ctx)

	slog.Info("Capture source started")
	return nil
}

func (s *Source) loop(ctx context.Context) {
	defer s.wg.Done()
	defer s.active.Store(false)

	for s.active.Load() {
		if ctx.Err() != nil {
			return
		}

		img, err := s.device.Read()
		if !s.active.Load() {
			return
		}
		if err != nil {
			s.handleError(ctx, &DeviceError{Op: "read", Err: err})
			continue
		}

		s.mailbox.Put(&Frame{
			Image:      toRGBA(img),
			CapturedAt: s.clock.Now(),
		})
		s.frames.Add(1)
	}
}

func (s *Source) handleError(ctx context.Context, err error) {
	s.readErrors.Add(1)
	slog.Warn("Failed to read frame", "error", err)
	if s.onError != nil {
		s.onError(err)
	}

	if s.retryDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-s.clock.After(s.retryDelay):
	}
}

// Stop ends the acquisition loop, waits for it to exit and only then closes
// the device. The mailbox is cleared. Calling Stop more than once is a no-op.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true

	s.active.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.mailbox.Clear()

	if err := s.device.Close(); err != nil {
		return fmt.Errorf("closing capture device: %w", err)
	}

	slog.Info("Capture source stopped", "frames", s.frames.Load(), "read_errors", s.readErrors.Load())
	return nil
}

// Running reports whether the acquisition loop is active. It turns false once
// the loop exits, whether through Stop or a cancelled context.
func (s *Source) Running() bool {
	return s.active.Load()
}

// Stats returns the loop counters
func (s *Source) Stats() SourceStats {
	return SourceStats{
		Frames:     s.frames.Load(),
		ReadErrors: s.readErrors.Load(),
		Drops:      s.mailbox.Drops(),
	}
}

// toRGBA converts img to RGBA byte order, reusing it when it already is
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
