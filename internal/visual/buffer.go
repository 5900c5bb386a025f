// Package visual turns the live analyser tap into a rolling amplitude history
// for the waveform display.
package visual

import "sync"

// NoSignal marks slots with no data, as opposed to silence (about 0).
const NoSignal = -1.0

// Buffer is a fixed-capacity amplitude history, newest last. Slots without
// data hold NoSignal and sit at the front.
type Buffer struct {
	mu      sync.RWMutex
	samples []float64
}

// NewBuffer returns a buffer of the given capacity filled with NoSignal.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 60
	}
	b := &Buffer{samples: make([]float64, capacity)}
	b.Reset()
	return b
}

// Push appends v and evicts the oldest sample.
func (b *Buffer) Push(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.samples, b.samples[1:])
	b.samples[len(b.samples)-1] = v
}

// Reset fills the buffer with NoSignal.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.samples {
		b.samples[i] = NoSignal
	}
}

// Snapshot returns a copy of the samples, oldest first.
func (b *Buffer) Snapshot() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]float64, len(b.samples))
	copy(out, b.samples)
	return out
}
