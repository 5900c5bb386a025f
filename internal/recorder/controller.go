// Package recorder coordinates a recording session: it drives the capture
// engine, mirrors progress into the durable chunk store, feeds the waveform
// and hands finished audio to the save pipeline.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/balkashynov/whisp/internal/audio"
	"github.com/balkashynov/whisp/internal/capture"
	"github.com/balkashynov/whisp/internal/models"
	"github.com/balkashynov/whisp/internal/power"
	"github.com/balkashynov/whisp/internal/visual"
)

// Store is the durable chunk store as seen by the controller and scanner.
type Store interface {
	PutSessionMetadata(ctx context.Context, session *models.RecordingSession) error
	AppendChunk(ctx context.Context, sessionID string, seq int, payload []byte, capturedAt time.Time) error
	GetLatestSession(ctx context.Context) (*models.RecordingSession, error)
	GetChunks(ctx context.Context, sessionID string) ([]models.AudioChunk, error)
	DeleteSession(ctx context.Context, sessionID string) error
	PurgeStaleSessions(ctx context.Context, maxAge time.Duration) (int, error)
}

// Handoff saves a finished recording: upload, transcribe, persist.
// It returns the id of the created note.
type Handoff interface {
	Deliver(ctx context.Context, res *Result) (uint, error)
}

// Quota tells whether new recordings are allowed.
type Quota interface {
	RemainingMinutes() (float64, error)
}

// Result is a finished recording awaiting save or discard.
type Result struct {
	SessionID      string
	Recording      *capture.Recording
	ElapsedSeconds int
	Language       string
	StartedAt      time.Time
	Recovered      bool
}

// StartOptions configures one session.
type StartOptions struct {
	CaptureSystemAudio bool
	Language           string
}

// Controller is the recording state machine. All methods are safe for
// concurrent use; at most one capture is live at a time.
type Controller struct {
	engine    *capture.Engine
	store     Store
	handoff   Handoff
	quota     Quota
	feed      *visual.Feed
	inhibitor power.Inhibitor
	log       *zap.SugaredLogger
	now       func() time.Time

	tickInterval       time.Duration
	checkpointInterval time.Duration
	queueSize          int

	events chan Event

	mu      sync.Mutex
	machine *fsm.FSM
	gen     uint64
	active  *activeSession
	pending *Result
	saving  bool
}

type activeSession struct {
	session models.RecordingSession
	handle  *capture.Handle
	queue   chan capture.Chunk
	cancel  context.CancelFunc
	group   *errgroup.Group
	gen     uint64

	stopOnce sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

func WithHandoff(h Handoff) Option { return func(c *Controller) { c.handoff = h } }

func WithQuota(q Quota) Option { return func(c *Controller) { c.quota = q } }

func WithFeed(f *visual.Feed) Option { return func(c *Controller) { c.feed = f } }

func WithInhibitor(i power.Inhibitor) Option { return func(c *Controller) { c.inhibitor = i } }

func WithLogger(l *zap.SugaredLogger) Option { return func(c *Controller) { c.log = l } }

// WithIntervals sets the elapsed-time tick and the metadata checkpoint period.
func WithIntervals(tick, checkpoint time.Duration) Option {
	return func(c *Controller) {
		c.tickInterval = tick
		c.checkpointInterval = checkpoint
	}
}

// NewController creates an idle controller.
func NewController(engine *capture.Engine, store Store, opts ...Option) *Controller {
	c := &Controller{
		engine:             engine,
		store:              store,
		inhibitor:          power.Nop{},
		log:                zap.NewNop().Sugar(),
		now:                time.Now,
		tickInterval:       time.Second,
		checkpointInterval: 5 * time.Second,
		queueSize:          64,
		events:             make(chan Event, 64),
		machine:            newStateMachine(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Events delivers state changes, ticks, warnings and errors. Events are
// dropped if the consumer falls behind.
func (c *Controller) Events() <-chan Event { return c.events }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

// Elapsed returns the recorded seconds of the live or pending session.
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return c.active.session.ElapsedSeconds
	}
	if c.pending != nil {
		return c.pending.ElapsedSeconds
	}
	return 0
}

// SystemAudioActive reports whether shared-surface audio is being mixed in.
func (c *Controller) SystemAudioActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.active.handle.SystemAudioActive()
}

// Pending returns the finished recording awaiting save, if any.
func (c *Controller) Pending() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// GuardExit reports whether leaving now would interrupt a live recording
// and so needs explicit confirmation.
func (c *Controller) GuardExit() bool {
	return c.State().Active()
}

// Start acquires capture and begins a new session. It blocks while the
// devices are opened; a Reset meanwhile makes it return ErrSuperseded.
func (c *Controller) Start(ctx context.Context, opts StartOptions) error {
	c.mu.Lock()
	if c.state() != StateIdle {
		defer c.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidTransition, c.state())
	}
	if err := c.checkQuota(); err != nil {
		c.mu.Unlock()
		c.emit(Event{Kind: EventError, State: StateIdle, Err: err})
		return err
	}
	if err := fire(ctx, c.machine, evStart); err != nil {
		c.mu.Unlock()
		return err
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.emitState(StateAcquiring)

	f := c.engine.Format()
	now := c.now()
	session := models.RecordingSession{
		ID:                 uuid.NewString(),
		StartTime:          now,
		LastCheckpoint:     now,
		CaptureSystemAudio: opts.CaptureSystemAudio,
		Language:           opts.Language,
		SampleRate:         f.SampleRate,
		Channels:           f.Channels,
		MIMEType:           audio.RawMIMEType,
	}
	queue := make(chan capture.Chunk, c.queueSize)

	handle, err := c.engine.Acquire(ctx, capture.AcquireOptions{
		CaptureSystemAudio: opts.CaptureSystemAudio,
		Sink:               c.sinkFor(session.ID, queue),
	})

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if handle != nil {
			handle.Release()
		}
		return ErrSuperseded
	}
	if err != nil {
		_ = fire(context.Background(), c.machine, evAbort)
		c.mu.Unlock()
		c.log.Warnw("could not start recording", "error", err)
		c.emit(Event{Kind: EventError, State: StateIdle, Err: err})
		return err
	}

	if err := c.store.PutSessionMetadata(ctx, &session); err != nil {
		c.log.Errorw("session metadata not stored", "session", session.ID, "error", err)
		c.emit(Event{Kind: EventWarning, State: StateAcquiring, Err: fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)})
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	group, loopCtx := errgroup.WithContext(loopCtx)
	a := &activeSession{
		session: session,
		handle:  handle,
		queue:   queue,
		cancel:  cancel,
		group:   group,
		gen:     gen,
	}
	c.active = a
	_ = fire(ctx, c.machine, evAcquired)
	c.startLoops(loopCtx, a)
	c.mu.Unlock()

	if c.feed != nil {
		c.feed.SetTap(handle.Analyser())
	}
	if err := c.inhibitor.Acquire(); err != nil {
		c.log.Warnw("could not keep the system awake", "error", err)
	}

	c.log.Infow("recording started", "session", session.ID, "system_audio", handle.SystemAudioActive())
	c.emitState(StateRecording)
	if derr := handle.DisplayErr(); derr != nil {
		c.emit(Event{Kind: EventWarning, State: StateRecording, Err: derr})
	}
	return nil
}

// Pause stops the elapsed clock and chunk emission.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fire(ctx, c.machine, evPause); err != nil {
		return err
	}
	if err := c.active.handle.Pause(); err != nil {
		c.log.Warnw("pause capture", "error", err)
	}
	c.emit(Event{Kind: EventStateChanged, State: StatePaused, Elapsed: c.active.session.ElapsedSeconds})
	return nil
}

// Resume continues a paused session.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fire(ctx, c.machine, evResume); err != nil {
		return err
	}
	if err := c.active.handle.Resume(); err != nil {
		c.log.Warnw("resume capture", "error", err)
	}
	c.emit(Event{Kind: EventStateChanged, State: StateRecording, Elapsed: c.active.session.ElapsedSeconds})
	return nil
}

// Stop finalizes the session, releases the hardware and, when a handoff
// is configured, saves the result. A failed save leaves the result
// pending in StateStopped so Save can be retried.
func (c *Controller) Stop(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if err := fire(ctx, c.machine, evStop); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	a := c.active
	c.mu.Unlock()
	c.emitState(StateStopping)

	rec, stopErr := a.handle.Stop()
	c.teardown(a)

	c.mu.Lock()
	if a.gen != c.gen {
		c.mu.Unlock()
		return nil, ErrSuperseded
	}
	c.active = nil

	session := a.session
	session.Paused = false
	session.LastCheckpoint = c.now()
	if err := c.store.PutSessionMetadata(ctx, &session); err != nil {
		c.log.Warnw("final checkpoint failed", "session", session.ID, "error", err)
	}

	if stopErr != nil {
		_ = fire(ctx, c.machine, evAbort)
		c.mu.Unlock()
		c.deleteSession(session.ID)
		c.log.Warnw("recording produced no audio", "session", session.ID, "error", stopErr)
		c.emit(Event{Kind: EventError, State: StateIdle, Err: stopErr})
		return nil, stopErr
	}

	res := &Result{
		SessionID:      session.ID,
		Recording:      rec,
		ElapsedSeconds: session.ElapsedSeconds,
		Language:       session.Language,
		StartedAt:      session.StartTime,
	}
	c.pending = res
	_ = fire(ctx, c.machine, evFinalize)
	c.mu.Unlock()

	c.log.Infow("recording stopped", "session", session.ID, "elapsed", session.ElapsedSeconds, "chunks", rec.Chunks)
	c.emit(Event{Kind: EventStateChanged, State: StateStopped, Elapsed: session.ElapsedSeconds})

	if c.handoff == nil {
		return res, nil
	}
	return res, c.Save(ctx)
}

// Save hands the pending result to the save pipeline. The durable copy is
// deleted only once the handoff succeeds.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if !c.state().HasResult() || c.pending == nil {
		defer c.mu.Unlock()
		return fmt.Errorf("%w: nothing to save while %s", ErrInvalidTransition, c.state())
	}
	if c.handoff == nil {
		c.mu.Unlock()
		return errors.New("no save pipeline configured")
	}
	if c.saving {
		c.mu.Unlock()
		return ErrSaveInProgress
	}
	c.saving = true
	res := c.pending
	c.mu.Unlock()

	noteID, err := c.handoff.Deliver(ctx, res)

	c.mu.Lock()
	c.saving = false
	if err != nil {
		st := c.state()
		c.mu.Unlock()
		c.log.Errorw("save failed", "session", res.SessionID, "error", err)
		c.emit(Event{Kind: EventError, State: st, Err: err})
		return err
	}
	if c.pending != res {
		// discarded or reset while saving
		c.mu.Unlock()
		return nil
	}
	c.pending = nil
	_ = fire(ctx, c.machine, evSaved)
	c.mu.Unlock()

	c.deleteSession(res.SessionID)
	c.log.Infow("recording saved", "session", res.SessionID, "note", noteID)
	c.emit(Event{Kind: EventSaved, State: StateIdle, NoteID: noteID, Elapsed: res.ElapsedSeconds})
	return nil
}

// Discard drops the pending result and its durable copy.
func (c *Controller) Discard(ctx context.Context) error {
	c.mu.Lock()
	if err := fire(ctx, c.machine, evDiscard); err != nil {
		c.mu.Unlock()
		return err
	}
	res := c.pending
	c.pending = nil
	c.mu.Unlock()

	if res != nil {
		c.deleteSession(res.SessionID)
	}
	c.emitState(StateIdle)
	return nil
}

// Reset abandons whatever is in progress, including an acquisition still
// waiting on devices, and deletes its durable state. It is a no-op when idle.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.state() == StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	a := c.active
	res := c.pending
	c.active, c.pending = nil, nil
	if err := fire(ctx, c.machine, evReset); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if a != nil {
		c.teardown(a)
		c.deleteSession(a.session.ID)
	}
	if res != nil {
		c.deleteSession(res.SessionID)
	}
	c.emitState(StateIdle)
	return nil
}

// Detach ends a live session without stopping it. The encoder is flushed
// and the hardware released, but the session stays in the store so the
// Recovery Scanner offers it on the next launch. It is a no-op unless
// recording or paused.
func (c *Controller) Detach(ctx context.Context) error {
	c.mu.Lock()
	a := c.active
	if a == nil || !c.state().Active() {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	c.active = nil
	session := a.session
	session.Paused = c.state() == StatePaused
	if err := fire(ctx, c.machine, evAbort); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	// the final partial chunk goes through the sink like any other
	if _, err := a.handle.Stop(); err != nil {
		c.log.Debugw("nothing left to flush", "session", session.ID, "error", err)
	}
	c.teardown(a)

	session.LastCheckpoint = c.now()
	if err := c.store.PutSessionMetadata(ctx, &session); err != nil {
		c.log.Warnw("final checkpoint failed", "session", session.ID, "error", err)
	}
	c.log.Infow("recording kept for recovery", "session", session.ID, "elapsed", session.ElapsedSeconds)
	c.emitState(StateIdle)
	return nil
}

// Recover installs a result found by the Scanner.
func (c *Controller) Recover(ctx context.Context, res *Result) error {
	if res == nil {
		return errors.New("nothing to recover")
	}
	c.mu.Lock()
	if err := fire(ctx, c.machine, evRecover); err != nil {
		c.mu.Unlock()
		return err
	}
	res.Recovered = true
	c.pending = res
	c.mu.Unlock()

	c.log.Infow("recording recovered", "session", res.SessionID, "elapsed", res.ElapsedSeconds)
	c.emit(Event{Kind: EventRecovered, State: StateRecoveredStopped, Elapsed: res.ElapsedSeconds})
	return nil
}

// OnVisible re-requests the stay-awake lock if the platform dropped it
// while recording.
func (c *Controller) OnVisible() {
	if c.State() != StateRecording || c.inhibitor.Held() {
		return
	}
	if err := c.inhibitor.Acquire(); err != nil {
		c.log.Warnw("could not keep the system awake", "error", err)
	}
}

func (c *Controller) state() State {
	return State(c.machine.Current())
}

func (c *Controller) checkQuota() error {
	if c.quota == nil {
		return nil
	}
	remaining, err := c.quota.RemainingMinutes()
	if err != nil {
		c.log.Warnw("quota lookup failed, allowing recording", "error", err)
		return nil
	}
	if !math.IsInf(remaining, 1) && remaining <= 0 {
		return ErrQuotaExhausted
	}
	return nil
}

// sinkFor forwards chunks to the writer without ever blocking the capture pump.
func (c *Controller) sinkFor(sessionID string, queue chan<- capture.Chunk) capture.ChunkSink {
	return func(ch capture.Chunk) {
		select {
		case queue <- ch:
		default:
			c.log.Errorw("chunk queue full, dropping chunk", "session", sessionID, "seq", ch.Seq)
			c.emit(Event{Kind: EventWarning, Err: fmt.Errorf("%w: chunk %d not persisted", ErrStorageWriteFailed, ch.Seq)})
		}
	}
}

func (c *Controller) startLoops(ctx context.Context, a *activeSession) {
	a.group.Go(func() error {
		ticker := time.NewTicker(c.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				c.tickElapsed(a)
			}
		}
	})

	a.group.Go(func() error {
		ticker := time.NewTicker(c.checkpointInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				c.checkpoint(ctx, a)
			}
		}
	})

	// writer drains the queue even after cancel so nothing emitted is lost
	a.group.Go(func() error {
		for ch := range a.queue {
			err := c.store.AppendChunk(context.Background(), a.session.ID, ch.Seq, ch.Payload, ch.CapturedAt)
			if err != nil {
				c.log.Errorw("chunk not persisted", "session", a.session.ID, "seq", ch.Seq, "error", err)
				c.emit(Event{Kind: EventWarning, Err: fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)})
			}
		}
		return nil
	})

	a.group.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-a.handle.SystemAudioEnded():
			if c.State().Active() {
				c.log.Warnw("system audio dropped", "session", a.session.ID)
				c.emit(Event{Kind: EventWarning, State: c.State(), Err: ErrSystemAudioDropped})
			}
			return nil
		}
	})

	a.group.Go(func() error {
		select {
		case <-ctx.Done():
		case err := <-a.handle.Fatal():
			// fail waits for this group, so it must run outside it
			go c.fail(a, err)
		}
		return nil
	})
}

// tickElapsed advances the elapsed clock by one second while recording.
func (c *Controller) tickElapsed(a *activeSession) {
	c.mu.Lock()
	if c.active != a || c.state() != StateRecording {
		c.mu.Unlock()
		return
	}
	a.session.ElapsedSeconds++
	elapsed := a.session.ElapsedSeconds
	c.mu.Unlock()
	c.emit(Event{Kind: EventTick, State: StateRecording, Elapsed: elapsed})
}

// checkpoint mirrors the session metadata into the store. Failures are
// logged and retried by the next checkpoint.
func (c *Controller) checkpoint(ctx context.Context, a *activeSession) {
	c.mu.Lock()
	if c.active != a {
		c.mu.Unlock()
		return
	}
	a.session.Paused = c.state() == StatePaused
	a.session.LastCheckpoint = c.now()
	session := a.session
	c.mu.Unlock()

	if err := c.store.PutSessionMetadata(ctx, &session); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Warnw("checkpoint failed", "session", session.ID, "error", err)
		c.emit(Event{Kind: EventWarning, Err: fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)})
	}
}

// fail rolls back after capture died underneath the session. The durable
// copy is kept so the next launch can recover it.
func (c *Controller) fail(a *activeSession, err error) {
	c.mu.Lock()
	if c.active != a {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.active = nil
	_ = fire(context.Background(), c.machine, evAbort)
	c.mu.Unlock()

	c.teardown(a)
	c.log.Errorw("recording aborted", "session", a.session.ID, "error", err)
	c.emit(Event{Kind: EventError, State: StateIdle, Err: err})
}

// teardown releases the hardware and stops every background loop, waiting
// for queued chunks to reach the store.
func (c *Controller) teardown(a *activeSession) {
	a.handle.Release()
	c.inhibitor.Release()
	if c.feed != nil {
		c.feed.SetTap(nil)
	}
	a.stopOnce.Do(func() {
		a.cancel()
		close(a.queue)
	})
	_ = a.group.Wait()
}

func (c *Controller) deleteSession(id string) {
	if err := c.store.DeleteSession(context.Background(), id); err != nil {
		c.log.Errorw("could not delete durable session", "session", id, "error", err)
	}
}

func (c *Controller) emitState(s State) {
	c.emit(Event{Kind: EventStateChanged, State: s, Elapsed: c.Elapsed()})
}

func (c *Controller) emit(e Event) {
	select {
	case c.events <- e:
	default:
	}
}
