// Package capture runs the live camera pipeline: a background source filling
// a single-slot mailbox, a presenter rendering the freshest frame and an
// orchestrator that sends a captured frame off for analysis.
package capture

import (
	"image"
	"sync/atomic"
	"time"
)

// Frame is one captured image. After it is put into a Mailbox it must not be modified.
type Frame struct {
	Image      *image.RGBA
	CapturedAt time.Time
	Seq        uint64
}

// Width returns the frame width in pixels
func (f *Frame) Width() int {
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in pixels
func (f *Frame) Height() int {
	return f.Image.Bounds().Dy()
}

type slot struct {
	frame *Frame
	read  bool
}

// Mailbox is a capacity-1 frame buffer. Put always replaces the held frame and
// never blocks; an unread frame that gets replaced is counted as a drop.
type Mailbox struct {
	current atomic.Pointer[slot]
	seq     atomic.Uint64
	puts    atomic.Uint64
	drops   atomic.Uint64
}

// NewMailbox creates an empty Mailbox
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Put stores frame, replacing whatever was held, and assigns its sequence number
func (m *Mailbox) Put(frame *Frame) {
	frame.Seq = m.seq.Add(1)
	m.puts.Add(1)

	old := m.current.Swap(&slot{frame: frame})
	if old != nil && !old.read {
		m.drops.Add(1)
	}
}

// Take returns the held frame if it has not been taken yet. It never blocks.
// The frame stays available to Latest.
func (m *Mailbox) Take() (*Frame, bool) {
	for {
		cur := m.current.Load()
		if cur == nil || cur.read {
			return nil, false
		}
		if m.current.CompareAndSwap(cur, &slot{frame: cur.frame, read: true}) {
			return cur.frame, true
		}
	}
}

// Latest returns the most recently put frame whether or not it was taken
func (m *Mailbox) Latest() (*Frame, bool) {
	cur := m.current.Load()
	if cur == nil {
		return nil, false
	}
	return cur.frame, true
}

// Clear empties the mailbox
func (m *Mailbox) Clear() {
	m.current.Store(nil)
}

// Puts returns the number of frames put
func (m *Mailbox) Puts() uint64 {
	return m.puts.Load()
}

// Drops returns the number of frames replaced before they were taken
func (m *Mailbox) Drops() uint64 {
	return m.drops.Load()
}
