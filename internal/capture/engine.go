package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/balkashynov/whisp/internal/audio"
)

// Engine acquires sources and builds the mixing graph for one session at a time.
// The caller owns each returned Handle.
type Engine struct {
	devices       MediaDevices
	format        audio.Format
	emitInterval  time.Duration
	analyserSize  int
	displayBuffer time.Duration
	log           *zap.SugaredLogger
	now           func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithFormat sets the PCM format sources are opened with.
func WithFormat(f audio.Format) Option {
	return func(e *Engine) { e.format = f }
}

// WithEmitInterval sets how much audio goes into each emitted chunk.
func WithEmitInterval(d time.Duration) Option {
	return func(e *Engine) { e.emitInterval = d }
}

// WithAnalyserSize sets the metering window in samples per channel.
func WithAnalyserSize(samples int) Option {
	return func(e *Engine) { e.analyserSize = samples }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine opening sources through devices.
func NewEngine(devices MediaDevices, opts ...Option) *Engine {
	e := &Engine{
		devices:       devices,
		format:        audio.Format{SampleRate: 16000, Channels: 1},
		emitInterval:  10 * time.Second,
		analyserSize:  128,
		displayBuffer: time.Second,
		log:           zap.NewNop().Sugar(),
		now:           time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Format returns the PCM format of the mixed stream.
func (e *Engine) Format() audio.Format {
	return e.format
}

// AcquireOptions configures one acquisition.
type AcquireOptions struct {
	CaptureSystemAudio bool
	Sink               ChunkSink
}

// Acquire opens the microphone (mandatory) and optionally the shared
// surface's audio (best effort), wires them into one mixed stream and
// starts encoding it. On error every source opened so far is stopped.
func (e *Engine) Acquire(ctx context.Context, opts AcquireOptions) (*Handle, error) {
	if err := e.format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoderInitFailed, err)
	}
	chunkBytes := e.format.BytesFor(e.emitInterval)
	if chunkBytes <= 0 || e.analyserSize <= 0 {
		return nil, fmt.Errorf("%w: emit interval %s too short for %s", ErrEncoderInitFailed, e.emitInterval, e.format)
	}

	micStream, err := e.devices.UserMedia(ctx, e.format)
	if err != nil {
		micStream.Stop()
		return nil, classifyMicError(err)
	}
	if len(micStream.Audio) == 0 {
		micStream.Stop()
		return nil, fmt.Errorf("%w: no audio track", ErrDeviceUnavailable)
	}

	h := &Handle{
		format:      e.format,
		mic:         micStream.Audio[0],
		micStream:   micStream,
		analyser:    newAnalyser(e.analyserSize*e.format.FrameSize(), e.format.FrameSize()),
		enc:         newChunkEncoder(chunkBytes, opts.Sink, e.now),
		log:         e.log,
		ctrl:        make(chan request),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		systemEnded: make(chan struct{}),
		fatal:       make(chan error, 1),
	}

	if opts.CaptureSystemAudio {
		e.attachDisplay(ctx, h)
	}

	if err := ctx.Err(); err != nil {
		h.stopTracks()
		return nil, err
	}

	go h.pump()
	return h, nil
}

func (e *Engine) attachDisplay(ctx context.Context, h *Handle) {
	display, err := e.devices.DisplayMedia(ctx, e.format)
	switch {
	case err != nil:
		display.Stop()
		h.displayErr = fmt.Errorf("%w: %v", ErrDisplayCaptureUnavailable, err)
	case len(display.Audio) == 0:
		display.Stop()
		h.displayErr = fmt.Errorf("%w: shared source has no audio", ErrDisplayCaptureUnavailable)
	default:
		// video tracks stay in the stream, unused, so the capture stays alive
		h.displayStream = display
		h.display = display.Audio[0]
		h.mixBuf = newJitterBuffer(e.format.BytesFor(e.displayBuffer), e.format.FrameSize())
		h.systemAudio.Store(true)
		return
	}
	e.log.Warnw("continuing with microphone only", "error", h.displayErr)
}

func classifyMicError(err error) error {
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
}
