package visual

import (
	"sync"
	"time"

	"github.com/balkashynov/whisp/internal/audio"
)

// Tap exposes the current time-domain window of a live signal.
type Tap interface {
	TimeDomain() []byte
}

// Feed samples a Tap on a fixed period and records the RMS of each read
// into a Buffer.
type Feed struct {
	mu     sync.Mutex
	tap    Tap
	buf    *Buffer
	period time.Duration
}

// NewFeed creates a feed with no tap, so the buffer shows NoSignal.
func NewFeed(capacity int, period time.Duration) *Feed {
	if period <= 0 {
		period = 32 * time.Millisecond
	}
	return &Feed{buf: NewBuffer(capacity), period: period}
}

// SetTap switches the analysed signal. The history is rebuilt from
// scratch; a nil tap means no session.
func (f *Feed) SetTap(tap Tap) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tap = tap
	f.buf.Reset()
}

// Next takes one sample from the tap. It returns false and records nothing
// when no tap is set.
func (f *Feed) Next() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tap == nil {
		return NoSignal, false
	}
	v := audio.RMS(f.tap.TimeDomain())
	f.buf.Push(v)
	return v, true
}

// Samples returns the current history, oldest first.
func (f *Feed) Samples() []float64 {
	return f.buf.Snapshot()
}

// Period is how often Next is meant to be called.
func (f *Feed) Period() time.Duration {
	return f.period
}
