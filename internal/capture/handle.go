package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"
	"go.uber.org/zap"

	"github.com/balkashynov/whisp/internal/audio"
)

// Recording is the finalized output of a capture.
type Recording struct {
	Data     []byte
	MIMEType string
	Format   audio.Format
	Duration time.Duration
	Chunks   int
}

type pumpState int

const (
	stateRecording pumpState = iota
	statePaused
	stateStopped
	stateFailed
)

type op int

const (
	opPause op = iota
	opResume
	opStop
	opRecorded
)

type request struct {
	op    op
	reply chan response
}

type response struct {
	err      error
	rec      *Recording
	recorded time.Duration
}

// Handle controls one live mixing graph. A single pump goroutine owns the
// graph; control calls are serialized through it.
type Handle struct {
	format        audio.Format
	mic           AudioTrack
	micStream     *Stream
	display       AudioTrack
	displayStream *Stream
	displayErr    error
	mixBuf        *ringbuffer.RingBuffer
	analyser      *Analyser
	enc           *chunkEncoder
	log           *zap.SugaredLogger

	// owned by the pump
	state pumpState

	ctrl        chan request
	quit        chan struct{}
	done        chan struct{}
	releaseOnce sync.Once

	systemAudio atomic.Bool
	systemEnded chan struct{}
	fatal       chan error
	fatalOnce   sync.Once
}

// Analyser returns the metering tap on the mixed signal.
func (h *Handle) Analyser() *Analyser { return h.analyser }

// Format returns the PCM format of the mixed stream.
func (h *Handle) Format() audio.Format { return h.format }

// SystemAudioActive reports whether shared-surface audio is currently mixed in.
func (h *Handle) SystemAudioActive() bool { return h.systemAudio.Load() }

// SystemAudioEnded is closed when shared-surface audio stops mid-session.
// It is never closed if system audio was not acquired.
func (h *Handle) SystemAudioEnded() <-chan struct{} { return h.systemEnded }

// DisplayErr is the reason system audio could not be acquired, if it was requested.
func (h *Handle) DisplayErr() error { return h.displayErr }

// Fatal delivers at most one error that ended capture, such as the
// microphone disappearing.
func (h *Handle) Fatal() <-chan error { return h.fatal }

// Pause stops encoding. Metering keeps running.
func (h *Handle) Pause() error { return h.call(opPause).err }

// Resume continues encoding with the next sequence number.
func (h *Handle) Resume() error { return h.call(opResume).err }

// Recorded returns how much audio has been encoded so far.
func (h *Handle) Recorded() (time.Duration, error) {
	resp := h.call(opRecorded)
	return resp.recorded, resp.err
}

// Stop flushes the encoder and returns the whole recording. Sources stay
// open until Release.
func (h *Handle) Stop() (*Recording, error) {
	resp := h.call(opStop)
	return resp.rec, resp.err
}

// Release stops every track and tears down the graph. It is safe to call
// from any state and more than once.
func (h *Handle) Release() {
	h.releaseOnce.Do(func() {
		close(h.quit)
		<-h.done
		h.stopTracks()
	})
}

func (h *Handle) stopTracks() {
	h.micStream.Stop()
	h.displayStream.Stop()
	h.systemAudio.Store(false)
}

func (h *Handle) call(o op) response {
	req := request{op: o, reply: make(chan response, 1)}
	select {
	case h.ctrl <- req:
		return <-req.reply
	case <-h.done:
		return response{err: ErrReleased}
	}
}

func (h *Handle) pump() {
	defer close(h.done)

	micFrames, micEnded := h.mic.Frames(), h.mic.Ended()
	var displayFrames <-chan []byte
	var displayEnded <-chan struct{}
	if h.display != nil {
		displayFrames, displayEnded = h.display.Frames(), h.display.Ended()
	}

	for {
		select {
		case <-h.quit:
			return
		case req := <-h.ctrl:
			req.reply <- h.handle(req.op)
		case frame, ok := <-micFrames:
			if !ok {
				micFrames, micEnded = nil, nil
				h.fail(ErrContextClosed)
				continue
			}
			h.process(frame)
		case <-micEnded:
			micFrames, micEnded = nil, nil
			h.fail(ErrContextClosed)
		case frame, ok := <-displayFrames:
			if !ok {
				displayFrames = nil
				continue
			}
			writeEvicting(h.mixBuf, frame, h.format.FrameSize())
		case <-displayEnded:
			displayFrames, displayEnded = nil, nil
			h.dropSystemAudio()
		}
	}
}

func (h *Handle) handle(o op) response {
	switch o {
	case opPause:
		switch h.state {
		case stateRecording, statePaused:
			h.state = statePaused
			return response{}
		}
		return response{err: ErrNotRecording}
	case opResume:
		switch h.state {
		case stateRecording, statePaused:
			h.state = stateRecording
			return response{}
		}
		return response{err: ErrNotRecording}
	case opRecorded:
		return response{recorded: h.format.Duration(h.enc.total)}
	case opStop:
		if h.state == stateStopped {
			return response{err: ErrNotRecording}
		}
		h.enc.flush()
		h.state = stateStopped

		data, err := audio.Reassemble(h.enc.chunks, h.format)
		if err != nil {
			return response{err: err}
		}
		return response{rec: &Recording{
			Data:     data,
			MIMEType: audio.MIMEType,
			Format:   h.format,
			Duration: h.format.Duration(h.enc.total),
			Chunks:   len(h.enc.chunks),
		}}
	}
	return response{}
}

// process mixes one microphone frame with whatever system audio is
// buffered, feeds the analyser and, unless paused, the encoder.
func (h *Handle) process(frame []byte) {
	if h.state == stateStopped || h.state == stateFailed {
		return
	}

	mixed := frame
	if h.mixBuf != nil {
		if n := alignDown(min(len(frame), h.mixBuf.Length()), h.format.FrameSize()); n > 0 {
			sys := make([]byte, n)
			h.mixBuf.Read(sys)
			mixed = audio.Mix(frame, sys)
		}
	}

	h.analyser.write(mixed)
	if h.state == stateRecording {
		h.enc.write(mixed)
	}
}

func (h *Handle) dropSystemAudio() {
	h.systemAudio.Store(false)
	h.mixBuf.Reset()
	close(h.systemEnded)
	h.log.Warnw("system audio track ended, recording microphone only")
}

func (h *Handle) fail(err error) {
	if h.state == stateStopped {
		return
	}
	h.state = stateFailed
	h.fatalOnce.Do(func() {
		h.fatal <- err
	})
	h.log.Errorw("capture failed", "error", err)
}

func newJitterBuffer(size, frameSize int) *ringbuffer.RingBuffer {
	return ringbuffer.New(max(alignDown(size, frameSize), frameSize)).SetBlocking(false)
}

// writeEvicting writes p, discarding the oldest buffered audio to make room.
// Only whole frames are kept.
func writeEvicting(rb *ringbuffer.RingBuffer, p []byte, frameSize int) {
	p = p[:alignDown(len(p), frameSize)]
	if capacity := alignDown(rb.Capacity(), frameSize); len(p) > capacity {
		p = p[len(p)-capacity:]
	}
	makeRoom(rb, len(p), frameSize)
	rb.Write(p)
}
