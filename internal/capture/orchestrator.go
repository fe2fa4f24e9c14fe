package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/zombor/receipt-cam/internal/scanning"
)

const defaultAnalysisTimeout = 60 * time.Second

// Analyzer turns a JPEG image into a Receipt
type Analyzer interface {
	AnalyzeReceipt(ctx context.Context, imageData []byte) (*scanning.Receipt, error)
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithAnalysisTimeout bounds each analysis call
func WithAnalysisTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithOrchestratorClock sets the clock used to stamp analyses
func WithOrchestratorClock(c clock.Clock) OrchestratorOption {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithIDGenerator sets the capture ID generator
func WithIDGenerator(fn func() string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// Orchestrator captures the freshest frame on demand and analyzes it in the
// background, delivering the result into a Session
type Orchestrator struct {
	mailbox  *Mailbox
	rotation *Rotation
	analyzer Analyzer
	session  *Session
	timeout  time.Duration
	clock    clock.Clock
	newID    func() string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(mailbox *Mailbox, rotation *Rotation, analyzer Analyzer, session *Session, opts ...OrchestratorOption) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		mailbox:  mailbox,
		rotation: rotation,
		analyzer: analyzer,
		session:  session,
		timeout:  defaultAnalysisTimeout,
		clock:    clock.New(),
		newID:    uuid.NewString,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Trigger captures the freshest frame with the current rotation and starts
// analyzing it. It returns the capture ID without waiting for the analysis.
func (o *Orchestrator) Trigger() (string, error) {
	frame, ok := o.mailbox.Latest()
	if !ok {
		o.session.Notify("No frame available")
		return "", ErrNoFrame
	}

	angle := o.rotation.Angle()
	data, err := scanning.EncodeJPEG(RotateImage(frame.Image, angle))
	if err != nil {
		o.session.Error("Failed to encode frame")
		return "", err
	}

	return o.start(&Capture{
		JPEG:       data,
		Angle:      angle,
		CapturedAt: frame.CapturedAt,
	}, frame.Seq)
}

// Submit starts analyzing an already encoded JPEG, such as an uploaded photo,
// through the same path as a captured frame
func (o *Orchestrator) Submit(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoFrame
	}
	return o.start(&Capture{
		JPEG:       data,
		CapturedAt: o.clock.Now(),
	}, 0)
}

func (o *Orchestrator) start(capture *Capture, seq uint64) (string, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", ErrClosed
	}
	o.wg.Add(1)
	o.mu.Unlock()

	capture.ID = o.newID()
	o.session.Begin(capture.ID)
	slog.Info("Analyzing capture", "id", capture.ID, "seq", seq, "angle", capture.Angle, "size", len(capture.JPEG))

	go o.analyze(capture)

	return capture.ID, nil
}

func (o *Orchestrator) analyze(capture *Capture) {
	defer o.wg.Done()

	ctx, cancel := context.WithTimeout(o.ctx, o.timeout)
	defer cancel()

	receipt, err := o.analyzer.AnalyzeReceipt(ctx, capture.JPEG)
	if o.ctx.Err() != nil {
		slog.Debug("Dropping analysis after shutdown", "id", capture.ID)
		return
	}
	if err != nil {
		slog.Error("Failed to analyze capture", "id", capture.ID, "error", err)
		o.session.Fail(capture.ID, err)
		return
	}

	capture.Receipt = receipt
	capture.AnalyzedAt = o.clock.Now()
	o.session.Apply(capture)
	slog.Info("Capture analyzed", "id", capture.ID, "vendor", receipt.Vendor)
}

// Wait blocks until every in-flight analysis has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels in-flight analyses, waits for them and closes the session
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
	o.session.Close()
	return nil
}
