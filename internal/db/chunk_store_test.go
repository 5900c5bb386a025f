package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/whisp/internal/models"
)

func newTestStore(t *testing.T) *ChunkStore {
	t.Helper()
	gdb, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewChunkStore(gdb)
}

func testSession(id string, start time.Time, elapsed int) *models.RecordingSession {
	return &models.RecordingSession{
		ID:             id,
		StartTime:      start,
		ElapsedSeconds: elapsed,
		LastCheckpoint: start.Add(time.Duration(elapsed) * time.Second),
		SampleRate:     16000,
		Channels:       1,
		MIMEType:       "audio/wav",
	}
}

func TestPutSessionMetadataIsIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	start := time.Now().Add(-time.Minute)

	session := testSession("s1", start, 5)
	require.NoError(t, store.PutSessionMetadata(ctx, session))
	require.NoError(t, store.PutSessionMetadata(ctx, session))

	session.ElapsedSeconds = 15
	session.Paused = true
	session.LastCheckpoint = start.Add(15 * time.Second)
	require.NoError(t, store.PutSessionMetadata(ctx, session))

	latest, err := store.GetLatestSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "s1", latest.ID)
	assert.Equal(t, 15, latest.ElapsedSeconds)
	assert.True(t, latest.Paused)
	assert.Equal(t, 16000, latest.SampleRate)
	assert.WithinDuration(t, start.Add(15*time.Second), latest.LastCheckpoint, time.Millisecond)
}

func TestPutSessionMetadataRequiresID(t *testing.T) {
	store := newTestStore(t)
	err := store.PutSessionMetadata(context.Background(), &models.RecordingSession{})
	assert.Error(t, err)
}

func TestAppendChunkNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.PutSessionMetadata(ctx, testSession("s1", time.Now(), 0)))

	require.NoError(t, store.AppendChunk(ctx, "s1", 1, []byte("first"), time.Now()))
	err := store.AppendChunk(ctx, "s1", 1, []byte("second"), time.Now())
	assert.ErrorIs(t, err, ErrChunkExists)

	chunks, err := store.GetChunks(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte("first"), chunks[0].Payload)
}

func TestGetChunksOrderedBySequence(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.PutSessionMetadata(ctx, testSession("s1", time.Now(), 0)))
	require.NoError(t, store.PutSessionMetadata(ctx, testSession("s2", time.Now(), 0)))

	for _, seq := range []int{3, 1, 4, 2} {
		require.NoError(t, store.AppendChunk(ctx, "s1", seq, []byte{byte(seq)}, time.Now()))
	}
	require.NoError(t, store.AppendChunk(ctx, "s2", 1, []byte{9}, time.Now()))

	chunks, err := store.GetChunks(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i, chunk := range chunks {
		assert.Equal(t, i+1, chunk.Seq)
		assert.Equal(t, []byte{byte(i + 1)}, chunk.Payload)
	}

	none, err := store.GetChunks(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetLatestSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	latest, err := store.GetLatestSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	now := time.Now()
	require.NoError(t, store.PutSessionMetadata(ctx, testSession("older", now.Add(-2*time.Hour), 30)))
	require.NoError(t, store.PutSessionMetadata(ctx, testSession("newer", now.Add(-time.Hour), 10)))

	latest, err = store.GetLatestSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "newer", latest.ID)
}

func TestDeleteSessionRemovesChunks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.PutSessionMetadata(ctx, testSession("s1", time.Now(), 20)))
	require.NoError(t, store.AppendChunk(ctx, "s1", 1, []byte("a"), time.Now()))
	require.NoError(t, store.AppendChunk(ctx, "s1", 2, []byte("b"), time.Now()))

	require.NoError(t, store.DeleteSession(ctx, "s1"))

	latest, err := store.GetLatestSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	chunks, err := store.GetChunks(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// deleting twice is harmless
	assert.NoError(t, store.DeleteSession(ctx, "s1"))
}

func TestPurgeStaleSessions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()
	store.now = func() time.Time { return now }

	stale := testSession("stale", now.Add(-26*time.Hour), 600)
	stale.LastCheckpoint = now.Add(-25 * time.Hour)
	fresh := testSession("fresh", now.Add(-time.Hour), 60)
	fresh.LastCheckpoint = now.Add(-time.Minute)

	require.NoError(t, store.PutSessionMetadata(ctx, stale))
	require.NoError(t, store.PutSessionMetadata(ctx, fresh))
	require.NoError(t, store.AppendChunk(ctx, "stale", 1, []byte("x"), now))

	purged, err := store.PurgeStaleSessions(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	chunks, err := store.GetChunks(ctx, "stale")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	latest, err := store.GetLatestSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "fresh", latest.ID)
}
