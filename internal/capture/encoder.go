package capture

import (
	"time"
)

// Chunk is one emitted slice of encoded audio.
type Chunk struct {
	Seq        int
	Payload    []byte
	CapturedAt time.Time
}

// ChunkSink receives chunks in emission order. It is called from the
// capture pump and must not block.
type ChunkSink func(Chunk)

// chunkEncoder cuts the mixed stream into fixed-duration raw PCM chunks.
// Sequence numbers start at 1 and never repeat.
type chunkEncoder struct {
	chunkBytes int
	pending    []byte
	seq        int
	chunks     [][]byte
	total      int
	sink       ChunkSink
	now        func() time.Time
}

func newChunkEncoder(chunkBytes int, sink ChunkSink, now func() time.Time) *chunkEncoder {
	return &chunkEncoder{
		chunkBytes: chunkBytes,
		pending:    make([]byte, 0, chunkBytes),
		sink:       sink,
		now:        now,
	}
}

func (e *chunkEncoder) write(p []byte) {
	e.total += len(p)
	for len(p) > 0 {
		n := min(e.chunkBytes-len(e.pending), len(p))
		e.pending = append(e.pending, p[:n]...)
		p = p[n:]
		if len(e.pending) == e.chunkBytes {
			e.emit()
		}
	}
}

// flush emits whatever is buffered as a final, shorter chunk.
func (e *chunkEncoder) flush() {
	if len(e.pending) > 0 {
		e.emit()
	}
}

func (e *chunkEncoder) emit() {
	payload := make([]byte, len(e.pending))
	copy(payload, e.pending)
	e.pending = e.pending[:0]

	e.seq++
	e.chunks = append(e.chunks, payload)
	if e.sink != nil {
		e.sink(Chunk{Seq: e.seq, Payload: payload, CapturedAt: e.now()})
	}
}
