package capture

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

const defaultPeriod = 10 * time.Millisecond

// View is a frame rendered for display
type View struct {
	Image      *image.NRGBA
	Seq        uint64
	Angle      int
	CapturedAt time.Time
}

// PresenterOption configures a Presenter
type PresenterOption func(*Presenter)

// WithPresenterClock sets the clock driving the tick loop
func WithPresenterClock(c clock.Clock) PresenterOption {
	return func(p *Presenter) {
		p.clock = c
	}
}

// WithPeriod sets the tick period
func WithPeriod(d time.Duration) PresenterOption {
	return func(p *Presenter) {
		p.period = d
	}
}

// OnRender registers a callback invoked with every rendered view
func OnRender(fn func(*View)) PresenterOption {
	return func(p *Presenter) {
		p.onRender = fn
	}
}

// Presenter renders the freshest mailbox frame on a fixed period
type Presenter struct {
	mailbox  *Mailbox
	rotation *Rotation
	size     image.Point
	clock    clock.Clock
	period   time.Duration
	onRender func(*View)

	latest atomic.Pointer[View]
}

// NewPresenter creates a Presenter that renders into a size display area
func NewPresenter(mailbox *Mailbox, rotation *Rotation, size image.Point, opts ...PresenterOption) *Presenter {
	p := &Presenter{
		mailbox:  mailbox,
		rotation: rotation,
		size:     size,
		clock:    clock.New(),
		period:   defaultPeriod,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tick renders the mailbox frame if there is an unread one. It never blocks
// and reports whether a new view was produced.
func (p *Presenter) Tick() bool {
	frame, ok := p.mailbox.Take()
	if !ok {
		return false
	}

	angle := p.rotation.Angle()
	view := &View{
		Image:      Render(frame.Image, angle, p.size),
		Seq:        frame.Seq,
		Angle:      angle,
		CapturedAt: frame.CapturedAt,
	}
	p.latest.Store(view)

	if p.onRender != nil {
		p.onRender(view)
	}
	return true
}

// Run ticks until ctx is done
func (p *Presenter) Run(ctx context.Context) {
	ticker := p.clock.Ticker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Latest returns the most recently rendered view, or nil before the first render
func (p *Presenter) Latest() *View {
	return p.latest.Load()
}

// Size returns the display area
func (p *Presenter) Size() image.Point {
	return p.size
}
