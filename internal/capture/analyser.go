package capture

import (
	"sync"

	"github.com/smallnest/ringbuffer"
)

// Analyser keeps the most recent window of the mixed signal for metering.
// It is written by the capture pump and read by the visualization feed.
type Analyser struct {
	mu    sync.Mutex
	rb    *ringbuffer.RingBuffer
	frame int
}

func newAnalyser(windowBytes, frameSize int) *Analyser {
	return &Analyser{rb: ringbuffer.New(windowBytes).SetBlocking(false), frame: frameSize}
}

// write appends p, evicting the oldest bytes when the window is full.
func (a *Analyser) write(p []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	writeEvicting(a.rb, p, a.frame)
}

// TimeDomain returns a copy of the current window, oldest sample first.
func (a *Analyser) TimeDomain() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rb.Bytes(nil)
}

// makeRoom discards whole frames from the front of rb until n bytes fit,
// so the remaining data still starts on a channel boundary.
func makeRoom(rb *ringbuffer.RingBuffer, n, frameSize int) {
	if free := rb.Free(); free < n {
		drop := alignUp(n-free, frameSize)
		rb.Read(make([]byte, min(drop, rb.Length())))
	}
}

func alignUp(n, frameSize int) int {
	if r := n % frameSize; r != 0 {
		n += frameSize - r
	}
	return n
}

func alignDown(n, frameSize int) int {
	return n - n%frameSize
}
