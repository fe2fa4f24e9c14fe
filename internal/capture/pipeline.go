package capture

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
)

// PipelineConfig holds the tunables for a Pipeline
type PipelineConfig struct {
	DisplaySize image.Point
	Timeout     time.Duration
	Clock       clock.Clock
}

// Pipeline wires a Source, Presenter and Orchestrator around one Mailbox.
// Without a device only submitted images can be analyzed.
type Pipeline struct {
	Mailbox      *Mailbox
	Rotation     *Rotation
	Session      *Session
	Presenter    *Presenter
	Orchestrator *Orchestrator

	source *Source
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline creates a Pipeline. device may be nil.
func NewPipeline(device Device, analyzer Analyzer, cfg PipelineConfig) *Pipeline {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}

	mailbox := NewMailbox()
	rotation := &Rotation{}
	session := NewSession(WithSessionClock(clk))

	p := &Pipeline{
		Mailbox:   mailbox,
		Rotation:  rotation,
		Session:   session,
		Presenter: NewPresenter(mailbox, rotation, cfg.DisplaySize, WithPresenterClock(clk)),
		Orchestrator: NewOrchestrator(mailbox, rotation, analyzer, session,
			WithAnalysisTimeout(timeout),
			WithOrchestratorClock(clk),
		),
	}
	if device != nil {
		p.source = NewSource(device, mailbox,
			WithSourceClock(clk),
			WithErrorHandler(func(error) {
				session.Error("Camera read failed")
			}),
		)
	}
	return p
}

// Start begins acquisition and presentation
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	if p.source != nil {
		if err := p.source.Start(ctx); err != nil {
			p.cancel()
			return err
		}
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Presenter.Run(ctx)
	}()
	return nil
}

// Close stops acquisition, cancels in-flight analyses and waits for the presenter
func (p *Pipeline) Close() error {
	var err error
	if p.source != nil {
		err = multierr.Append(err, p.source.Stop())
	}
	err = multierr.Append(err, p.Orchestrator.Close())
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return err
}

// Trigger captures and analyzes the freshest frame
func (p *Pipeline) Trigger() (string, error) {
	return p.Orchestrator.Trigger()
}

// Submit analyzes an encoded JPEG
func (p *Pipeline) Submit(data []byte) (string, error) {
	return p.Orchestrator.Submit(data)
}

// Rotate advances the rotation by 90 degrees
func (p *Pipeline) Rotate() int {
	return p.Rotation.Rotate()
}

// Snapshot returns the session state
func (p *Pipeline) Snapshot() Snapshot {
	return p.Session.Snapshot()
}

// Current returns the current capture, or nil
func (p *Pipeline) Current() *Capture {
	return p.Session.Current()
}

// Reset drops the current capture if its ID matches
func (p *Pipeline) Reset(id string) bool {
	return p.Session.Reset(id)
}

// Preview returns the latest rendered view, or nil
func (p *Pipeline) Preview() *View {
	return p.Presenter.Latest()
}

// Stats returns the source counters; zero without a device
func (p *Pipeline) Stats() SourceStats {
	if p.source == nil {
		return SourceStats{Drops: p.Mailbox.Drops()}
	}
	return p.source.Stats()
}
