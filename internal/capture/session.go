package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/zombor/receipt-cam/internal/scanning"
)

const defaultStatusTTL = 2 * time.Second

// Capture is one analyzed frame
type Capture struct {
	ID         string            `json:"id"`
	Receipt    *scanning.Receipt `json:"receipt"`
	JPEG       []byte            `json:"-"`
	Angle      int               `json:"angle"`
	CapturedAt time.Time         `json:"captured_at"`
	AnalyzedAt time.Time         `json:"analyzed_at"`
}

// Snapshot is a copy of the session state for display
type Snapshot struct {
	Capture     *Capture `json:"capture,omitempty"`
	Pending     int      `json:"pending"`
	Status      string   `json:"status,omitempty"`
	StatusError bool     `json:"status_error,omitempty"`
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionClock sets the clock used to expire status messages
func WithSessionClock(c clock.Clock) SessionOption {
	return func(s *Session) {
		s.clock = c
	}
}

// WithStatusTTL sets how long a status message stays visible
func WithStatusTTL(d time.Duration) SessionOption {
	return func(s *Session) {
		s.statusTTL = d
	}
}

// Session holds what the user currently sees: the last analyzed capture and a
// short-lived status message. Writes after Close are ignored.
type Session struct {
	clock     clock.Clock
	statusTTL time.Duration

	mu          sync.Mutex
	current     *Capture
	pending     int
	status      string
	statusError bool
	statusAt    time.Time
	closed      bool
}

// NewSession creates an empty Session
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		clock:     clock.New(),
		statusTTL: defaultStatusTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin records that an analysis has started
func (s *Session) Begin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.pending++
	s.setStatus("Analyzing receipt...", false)
}

// Apply replaces the current capture with a completed analysis
func (s *Session) Apply(capture *Capture) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.done()
	s.current = capture
	s.setStatus("Receipt analyzed", false)
}

// Fail reports a failed analysis. The current capture is left untouched.
func (s *Session) Fail(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.done()
	s.setStatus(fmt.Sprintf("Analysis failed: %v", err), true)
}

// Notify posts an informational status message
func (s *Session) Notify(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.setStatus(message, false)
}

// Error posts an error status message
func (s *Session) Error(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.setStatus(message, true)
}

// Current returns the current capture, or nil
func (s *Session) Current() *Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reset drops the current capture if its ID matches, e.g. after it was committed
func (s *Session) Reset(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.current == nil || s.current.ID != id {
		return false
	}
	s.current = nil
	return true
}

// Snapshot returns the state to display. Expired status messages are omitted.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Pending: s.pending}
	if s.current != nil {
		c := *s.current
		if s.current.Receipt != nil {
			r := *s.current.Receipt
			c.Receipt = &r
		}
		snap.Capture = &c
	}
	if s.status != "" && s.clock.Now().Before(s.statusAt.Add(s.statusTTL)) {
		snap.Status = s.status
		snap.StatusError = s.statusError
	}
	return snap
}

// Close stops the session from accepting further writes
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) done() {
	if s.pending > 0 {
		s.pending--
	}
}

func (s *Session) setStatus(message string, isError bool) {
	s.status = message
	s.statusError = isError
	s.statusAt = s.clock.Now()
}
