package recorder

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/whisp/internal/audio"
	"github.com/balkashynov/whisp/internal/capture"
	"github.com/balkashynov/whisp/internal/capture/mock"
	"github.com/balkashynov/whisp/internal/db"
	"github.com/balkashynov/whisp/internal/models"
	"github.com/balkashynov/whisp/internal/visual"
)

var testFormat = audio.Format{SampleRate: 1000, Channels: 1}

func tone(d time.Duration, v int16) []byte {
	s := make([]int16, testFormat.BytesFor(d)/2)
	for i := range s {
		s[i] = v
	}
	return audio.Bytes(s)
}

func newTestStore(t *testing.T) *db.ChunkStore {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "recorder.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db.NewChunkStore(gdb)
}

type fakeHandoff struct {
	store *db.ChunkStore

	mu               sync.Mutex
	err              error
	calls            int
	got              *Result
	chunksAtDelivery int
}

func (f *fakeHandoff) Deliver(ctx context.Context, res *Result) (uint, error) {
	chunks, _ := f.store.GetChunks(ctx, res.SessionID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.got = res
	f.chunksAtDelivery = len(chunks)
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

func (f *fakeHandoff) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeQuota struct{ remaining float64 }

func (q fakeQuota) RemainingMinutes() (float64, error) { return q.remaining, nil }

type fakeInhibitor struct {
	mu       sync.Mutex
	held     bool
	acquires int
}

func (f *fakeInhibitor) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = true
	f.acquires++
	return nil
}

func (f *fakeInhibitor) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
}

func (f *fakeInhibitor) Held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}

func (f *fakeInhibitor) drop() { f.Release() }

func (f *fakeInhibitor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquires
}

// flakyStore fails or stalls writes on demand.
type flakyStore struct {
	Store
	failPuts    atomic.Bool
	failAppends atomic.Bool
	// appends wait on stall while it is non-nil
	stall   chan struct{}
	waiting atomic.Int32
}

func (s *flakyStore) PutSessionMetadata(ctx context.Context, session *models.RecordingSession) error {
	if s.failPuts.Load() {
		return errors.New("disk full")
	}
	return s.Store.PutSessionMetadata(ctx, session)
}

func (s *flakyStore) AppendChunk(ctx context.Context, sessionID string, seq int, payload []byte, capturedAt time.Time) error {
	if s.stall != nil {
		s.waiting.Add(1)
		<-s.stall
	}
	if s.failAppends.Load() {
		return errors.New("disk full")
	}
	return s.Store.AppendChunk(ctx, sessionID, seq, payload, capturedAt)
}

type harness struct {
	c         *Controller
	devices   *mock.Devices
	store     *db.ChunkStore
	inhibitor *fakeInhibitor
}

func newHarness(t *testing.T, devices *mock.Devices, opts ...Option) *harness {
	t.Helper()
	return newHarnessOn(t, devices, nil, opts...)
}

// newHarnessOn lets wrap put a decorator between the controller and the
// real store. storedChunks still reads the real store.
func newHarnessOn(t *testing.T, devices *mock.Devices, wrap func(Store) Store, opts ...Option) *harness {
	t.Helper()
	if devices == nil {
		devices = &mock.Devices{}
	}
	store := newTestStore(t)
	var controllerStore Store = store
	if wrap != nil {
		controllerStore = wrap(store)
	}
	inh := &fakeInhibitor{}
	engine := capture.NewEngine(devices,
		capture.WithFormat(testFormat),
		capture.WithEmitInterval(10*time.Second),
	)
	// loops are driven by hand; the intervals only need to never fire
	base := []Option{WithIntervals(time.Hour, time.Hour), WithInhibitor(inh)}
	c := NewController(engine, controllerStore, append(base, opts...)...)
	t.Cleanup(func() { _ = c.Reset(context.Background()) })
	return &harness{c: c, devices: devices, store: store, inhibitor: inh}
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.c.mu.Lock()
		a := h.c.active
		h.c.mu.Unlock()
		if a != nil {
			h.c.tickElapsed(a)
		}
	}
}

func (h *harness) checkpoint() {
	h.c.mu.Lock()
	a := h.c.active
	h.c.mu.Unlock()
	if a != nil {
		h.c.checkpoint(context.Background(), a)
	}
}

// record pushes seconds of audio and advances the clock alongside it.
func (h *harness) record(t *testing.T, seconds int) {
	t.Helper()
	for i := 0; i < seconds; i++ {
		require.True(t, h.devices.Mic().Push(tone(time.Second, 1200)))
		h.tick(1)
	}
}

func (h *harness) storedChunks(t *testing.T, id string) int {
	t.Helper()
	chunks, err := h.store.GetChunks(context.Background(), id)
	require.NoError(t, err)
	return len(chunks)
}

func waitEvent(t *testing.T, c *Controller, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-c.Events():
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("expected event was not delivered")
			return Event{}
		}
	}
}

func withErr(target error) func(Event) bool {
	return func(e Event) bool { return errors.Is(e.Err, target) }
}

func TestRecordStopSave(t *testing.T) {
	ctx := context.Background()
	handoff := &fakeHandoff{}
	h := newHarness(t, nil, WithHandoff(handoff))
	handoff.store = h.store

	require.NoError(t, h.c.Start(ctx, StartOptions{Language: "en"}))
	assert.Equal(t, StateRecording, h.c.State())
	assert.Equal(t, 1, h.inhibitor.count())

	h.record(t, 12)
	res, err := h.c.Stop(ctx)
	require.NoError(t, err)

	assert.Equal(t, 12, res.ElapsedSeconds)
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, 2, res.Recording.Chunks)
	assert.Equal(t, 12*time.Second, res.Recording.Duration)
	assert.Equal(t, audio.MIMEType, res.Recording.MIMEType)

	assert.Equal(t, 1, handoff.calls)
	assert.Equal(t, 2, handoff.chunksAtDelivery, "chunks must be durable before the handoff")
	assert.Equal(t, StateIdle, h.c.State())
	assert.Nil(t, h.c.Pending())
	assert.False(t, h.inhibitor.Held())
	assert.Zero(t, h.devices.LiveTracks())

	latest, err := h.store.GetLatestSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "saved session must be removed from the store")

	e := waitEvent(t, h.c, func(e Event) bool { return e.Kind == EventSaved })
	assert.Equal(t, uint(7), e.NoteID)
}

func TestPauseFreezesClockAndChunks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(ctx, StartOptions{}))

	h.record(t, 4)
	require.NoError(t, h.c.Pause(ctx))
	assert.True(t, h.c.GuardExit())

	for i := 0; i < 30; i++ {
		require.True(t, h.devices.Mic().Push(tone(time.Second, 1200)))
	}
	h.tick(30)
	assert.Equal(t, 4, h.c.Elapsed())

	h.checkpoint()
	latest, err := h.store.GetLatestSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Paused)

	assert.ErrorIs(t, h.c.Pause(ctx), ErrInvalidTransition)
	require.NoError(t, h.c.Resume(ctx))
	h.record(t, 2)

	res, err := h.c.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, res.ElapsedSeconds)
	assert.Equal(t, 6*time.Second, res.Recording.Duration)
	assert.Equal(t, StateStopped, h.c.State())
}

func TestCrashRecovery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(ctx, StartOptions{Language: "de"}))

	h.record(t, 20)
	h.checkpoint()
	var id string
	h.c.mu.Lock()
	id = h.c.active.session.ID
	h.c.mu.Unlock()
	require.Eventually(t, func() bool { return h.storedChunks(t, id) == 2 }, 2*time.Second, 10*time.Millisecond)

	// the process dies here: nothing is stopped and the store is left as is
	scanner := NewScanner(h.store, 5*time.Second, 24*time.Hour, nil)
	res, err := scanner.Scan(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, id, res.SessionID)
	assert.Equal(t, 20, res.ElapsedSeconds)
	assert.Equal(t, "de", res.Language)
	assert.True(t, res.Recovered)
	assert.Equal(t, 20*time.Second, res.Recording.Duration)

	pcm, f, err := audio.DecodeWAV(bytes.NewReader(res.Recording.Data))
	require.NoError(t, err)
	assert.InDelta(t, 20, f.Duration(len(pcm)).Seconds(), 0.1)

	handoff := &fakeHandoff{store: h.store}
	next := NewController(capture.NewEngine(&mock.Devices{}, capture.WithFormat(testFormat)), h.store, WithHandoff(handoff))
	require.NoError(t, next.Recover(ctx, res))
	assert.Equal(t, StateRecoveredStopped, next.State())
	assert.Equal(t, 20, next.Elapsed())
	assert.False(t, next.GuardExit())

	require.NoError(t, next.Save(ctx))
	assert.Equal(t, StateIdle, next.State())
	assert.True(t, handoff.got.Recovered)
	assert.Zero(t, h.storedChunks(t, id))
}

func TestDetachKeepsRecordingForRecovery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(ctx, StartOptions{}))

	h.record(t, 20)
	h.checkpoint()
	require.NoError(t, h.c.Pause(ctx))
	h.c.mu.Lock()
	id := h.c.active.session.ID
	h.c.mu.Unlock()

	require.NoError(t, h.c.Detach(ctx))
	assert.Equal(t, StateIdle, h.c.State())
	assert.Zero(t, h.devices.LiveTracks())
	assert.False(t, h.inhibitor.Held())
	assert.Nil(t, h.c.Pending())
	assert.Equal(t, 2, h.storedChunks(t, id))

	res, err := NewScanner(h.store, 5*time.Second, 24*time.Hour, nil).Scan(ctx)
	require.NoError(t, err)
	require.NotNil(t, res, "a detached recording must be offered on the next launch")
	assert.Equal(t, id, res.SessionID)
	assert.Equal(t, 20, res.ElapsedSeconds)
	assert.Equal(t, 20*time.Second, res.Recording.Duration)

	require.NoError(t, h.c.Detach(ctx), "detaching while idle is a no-op")
}

func TestDetachFlushesPartialChunk(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(ctx, StartOptions{}))
	h.record(t, 7)
	h.c.mu.Lock()
	id := h.c.active.session.ID
	h.c.mu.Unlock()

	require.NoError(t, h.c.Detach(ctx))
	assert.Equal(t, 1, h.storedChunks(t, id))

	latest, err := h.store.GetLatestSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 7, latest.ElapsedSeconds)
}

func TestStartFailures(t *testing.T) {
	tests := []struct {
		name    string
		devices *mock.Devices
		opts    []Option
		want    error
	}{
		{"permission denied", &mock.Devices{UserErr: errors.New("NotAllowedError")}, nil, ErrPermissionDenied},
		{"no device", &mock.Devices{UserErr: capture.ErrDeviceUnavailable}, nil, ErrDeviceUnavailable},
		{"quota exhausted", &mock.Devices{}, []Option{WithQuota(fakeQuota{remaining: 0})}, ErrQuotaExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.devices, tt.opts...)
			err := h.c.Start(context.Background(), StartOptions{CaptureSystemAudio: true})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, StateIdle, h.c.State())
			assert.Zero(t, h.devices.LiveTracks())
			assert.Zero(t, h.inhibitor.count())
			waitEvent(t, h.c, withErr(tt.want))

			latest, err := h.store.GetLatestSession(context.Background())
			require.NoError(t, err)
			assert.Nil(t, latest)
		})
	}
}

func TestUnlimitedQuotaAllowsRecording(t *testing.T) {
	h := newHarness(t, nil, WithQuota(fakeQuota{remaining: math.Inf(1)}))
	require.NoError(t, h.c.Start(context.Background(), StartOptions{}))
	assert.Equal(t, StateRecording, h.c.State())
}

func TestSystemAudioIsOptional(t *testing.T) {
	t.Run("picker cancelled", func(t *testing.T) {
		h := newHarness(t, &mock.Devices{DisplayErr: mock.ErrPickerCancelled})
		require.NoError(t, h.c.Start(context.Background(), StartOptions{CaptureSystemAudio: true}))
		assert.Equal(t, StateRecording, h.c.State())
		assert.False(t, h.c.SystemAudioActive())
		waitEvent(t, h.c, withErr(ErrDisplayCaptureUnavailable))
	})

	t.Run("dropped mid session", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.c.Start(context.Background(), StartOptions{CaptureSystemAudio: true}))
		assert.True(t, h.c.SystemAudioActive())

		h.devices.Display().End()
		waitEvent(t, h.c, withErr(ErrSystemAudioDropped))
		assert.False(t, h.c.SystemAudioActive())
		assert.Equal(t, StateRecording, h.c.State())

		h.record(t, 2)
		res, err := h.c.Stop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, res.Recording.Duration)
	})
}

func TestFailedSaveCanBeRetried(t *testing.T) {
	ctx := context.Background()
	handoff := &fakeHandoff{}
	h := newHarness(t, nil, WithHandoff(handoff))
	handoff.store = h.store
	handoff.fail(ErrUploadFailed)

	require.NoError(t, h.c.Start(ctx, StartOptions{}))
	h.record(t, 3)
	res, err := h.c.Stop(ctx)
	assert.ErrorIs(t, err, ErrUploadFailed)
	require.NotNil(t, res)
	assert.Equal(t, StateStopped, h.c.State())
	assert.Same(t, res, h.c.Pending())
	assert.Equal(t, 1, h.storedChunks(t, res.SessionID))

	handoff.fail(nil)
	require.NoError(t, h.c.Save(ctx))
	assert.Equal(t, StateIdle, h.c.State())
	assert.Equal(t, 2, handoff.calls)
	assert.Zero(t, h.storedChunks(t, res.SessionID))

	assert.ErrorIs(t, h.c.Save(ctx), ErrInvalidTransition)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	require.NoError(t, h.c.Start(ctx, StartOptions{}))
	h.record(t, 3)
	res, err := h.c.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, h.c.State())
	assert.False(t, h.c.GuardExit())

	require.NoError(t, h.c.Discard(ctx))
	assert.Equal(t, StateIdle, h.c.State())
	assert.Zero(t, h.storedChunks(t, res.SessionID))
	assert.ErrorIs(t, h.c.Discard(ctx), ErrInvalidTransition)
}

func TestStopWithoutAudioReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(ctx, StartOptions{}))

	_, err := h.c.Stop(ctx)
	assert.ErrorIs(t, err, audio.ErrNoAudio)
	assert.Equal(t, StateIdle, h.c.State())

	latest, err := h.store.GetLatestSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestResetWhileRecording(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(ctx, StartOptions{CaptureSystemAudio: true}))
	h.record(t, 11)

	require.NoError(t, h.c.Reset(ctx))
	assert.Equal(t, StateIdle, h.c.State())
	assert.Zero(t, h.devices.LiveTracks())
	assert.False(t, h.inhibitor.Held())
	assert.Zero(t, h.c.Elapsed())

	latest, err := h.store.GetLatestSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, h.c.Reset(ctx))
}

func TestResetSupersedesPendingAcquire(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	h := newHarness(t, &mock.Devices{Gate: gate})

	errCh := make(chan error, 1)
	go func() { errCh <- h.c.Start(ctx, StartOptions{}) }()
	require.Eventually(t, func() bool { return h.c.State() == StateAcquiring }, time.Second, 5*time.Millisecond)
	assert.False(t, h.c.GuardExit())

	require.NoError(t, h.c.Reset(ctx))
	close(gate)

	assert.ErrorIs(t, <-errCh, ErrSuperseded)
	assert.Equal(t, StateIdle, h.c.State())
	assert.Zero(t, h.devices.LiveTracks())
}

func TestStartWhileRecording(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(ctx, StartOptions{}))
	assert.ErrorIs(t, h.c.Start(ctx, StartOptions{}), ErrInvalidTransition)
	assert.Len(t, h.devices.Tracks(), 1)
}

func TestOnVisibleReacquiresWakeLock(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	h.c.OnVisible()
	assert.Zero(t, h.inhibitor.count())

	require.NoError(t, h.c.Start(ctx, StartOptions{}))
	h.c.OnVisible()
	assert.Equal(t, 1, h.inhibitor.count())

	h.inhibitor.drop()
	h.c.OnVisible()
	assert.Equal(t, 2, h.inhibitor.count())
	assert.True(t, h.inhibitor.Held())
}

func TestMicrophoneLossKeepsDurableCopy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.c.Start(ctx, StartOptions{}))
	h.record(t, 12)

	h.devices.Mic().End()
	waitEvent(t, h.c, withErr(ErrContextClosed))
	require.Eventually(t, func() bool { return h.c.State() == StateIdle }, time.Second, 5*time.Millisecond)
	assert.Zero(t, h.devices.LiveTracks())

	latest, err := h.store.GetLatestSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1, h.storedChunks(t, latest.ID))
}

func TestCheckpointFailureIsAWarning(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: newTestStore(t)}
	engine := capture.NewEngine(&mock.Devices{}, capture.WithFormat(testFormat))
	c := NewController(engine, store, WithIntervals(time.Hour, time.Hour))
	t.Cleanup(func() { _ = c.Reset(ctx) })

	require.NoError(t, c.Start(ctx, StartOptions{}))
	store.failPuts.Store(true)

	c.mu.Lock()
	a := c.active
	c.mu.Unlock()
	c.checkpoint(ctx, a)

	e := waitEvent(t, c, withErr(ErrStorageWriteFailed))
	assert.Equal(t, EventWarning, e.Kind)
	assert.Equal(t, StateRecording, c.State())
}

func TestChunkWriteFailureKeepsRecording(t *testing.T) {
	ctx := context.Background()
	var flaky *flakyStore
	h := newHarnessOn(t, nil, func(s Store) Store {
		flaky = &flakyStore{Store: s}
		return flaky
	})
	require.NoError(t, h.c.Start(ctx, StartOptions{}))
	flaky.failAppends.Store(true)

	h.record(t, 12)
	e := waitEvent(t, h.c, withErr(ErrStorageWriteFailed))
	assert.Equal(t, EventWarning, e.Kind)
	assert.Equal(t, StateRecording, h.c.State())

	h.record(t, 2)
	res, err := h.c.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 14, res.ElapsedSeconds)
	assert.Equal(t, 14*time.Second, res.Recording.Duration)
	assert.Equal(t, 2, res.Recording.Chunks)
	assert.Zero(t, h.storedChunks(t, res.SessionID))
}

func TestStalledChunkWritesDropInsteadOfBlocking(t *testing.T) {
	ctx := context.Background()
	stall := make(chan struct{})
	flaky := &flakyStore{stall: stall}
	h := newHarnessOn(t, nil, func(s Store) Store {
		flaky.Store = s
		return flaky
	})
	h.c.queueSize = 1
	require.NoError(t, h.c.Start(ctx, StartOptions{}))

	push := func(seconds int) {
		for i := 0; i < seconds; i++ {
			require.True(t, h.devices.Mic().Push(tone(time.Second, 1200)), "capture must keep accepting audio")
		}
	}

	// chunk 1 stalls in the writer, chunk 2 fills the queue, chunk 3 is dropped
	push(10)
	require.Eventually(t, func() bool { return flaky.waiting.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	push(22)

	e := waitEvent(t, h.c, withErr(ErrStorageWriteFailed))
	assert.Equal(t, EventWarning, e.Kind)
	assert.Contains(t, e.Err.Error(), "chunk 3")
	assert.Equal(t, StateRecording, h.c.State())

	h.c.mu.Lock()
	id := h.c.active.session.ID
	h.c.mu.Unlock()
	close(stall)
	require.Eventually(t, func() bool { return h.storedChunks(t, id) == 2 }, 2*time.Second, 10*time.Millisecond)

	res, err := h.c.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 32*time.Second, res.Recording.Duration)
	assert.Equal(t, 4, res.Recording.Chunks)
	assert.Equal(t, 3, h.storedChunks(t, res.SessionID))
}

func TestFeedFollowsCapture(t *testing.T) {
	ctx := context.Background()
	feed := visual.NewFeed(8, time.Hour)
	h := newHarness(t, nil, WithFeed(feed))

	_, ok := feed.Next()
	assert.False(t, ok)

	require.NoError(t, h.c.Start(ctx, StartOptions{}))
	h.record(t, 1)
	level, ok := feed.Next()
	require.True(t, ok)
	assert.Greater(t, level, 0.0)

	require.NoError(t, h.c.Pause(ctx))
	require.True(t, h.devices.Mic().Push(tone(time.Second, 1200)))
	level, ok = feed.Next()
	require.True(t, ok)
	assert.Greater(t, level, 0.0, "the waveform keeps moving while paused")

	require.NoError(t, h.c.Reset(ctx))
	_, ok = feed.Next()
	assert.False(t, ok)
}
