package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/balkashynov/whisp/internal/models"
)

// ErrChunkExists is returned when a (session, seq) pair has already been appended
var ErrChunkExists = errors.New("chunk already stored")

// ChunkStore persists in-progress recordings so they survive a crash.
// It is safe for concurrent use.
type ChunkStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewChunkStore creates a store on top of an opened database
func NewChunkStore(db *gorm.DB) *ChunkStore {
	return &ChunkStore{db: db, now: time.Now}
}

// PutSessionMetadata inserts the session or refreshes its mutable fields
func (s *ChunkStore) PutSessionMetadata(ctx context.Context, session *models.RecordingSession) error {
	if session.ID == "" {
		return errors.New("session id is required")
	}

	rec := *session
	rec.StartTime = rec.StartTime.UTC()
	rec.LastCheckpoint = rec.LastCheckpoint.UTC()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"elapsed_seconds", "paused", "last_checkpoint", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("put session %s: %w", session.ID, err)
	}
	return nil
}

// AppendChunk stores one chunk. Existing chunks are never overwritten.
func (s *ChunkStore) AppendChunk(ctx context.Context, sessionID string, seq int, payload []byte, capturedAt time.Time) error {
	chunk := models.AudioChunk{
		SessionID:  sessionID,
		Seq:        seq,
		Payload:    payload,
		CapturedAt: capturedAt.UTC(),
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&chunk)
	if res.Error != nil {
		return fmt.Errorf("append chunk %s/%d: %w", sessionID, seq, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("append chunk %s/%d: %w", sessionID, seq, ErrChunkExists)
	}
	return nil
}

// GetLatestSession returns the most recently started session, or nil if there is none
func (s *ChunkStore) GetLatestSession(ctx context.Context) (*models.RecordingSession, error) {
	var sessions []models.RecordingSession
	err := s.db.WithContext(ctx).
		Order("start_time DESC").
		Limit(1).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("get latest session: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// GetChunks returns every chunk of a session ordered by sequence number
func (s *ChunkStore) GetChunks(ctx context.Context, sessionID string) ([]models.AudioChunk, error) {
	var chunks []models.AudioChunk
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("get chunks %s: %w", sessionID, err)
	}
	return chunks, nil
}

// DeleteSession removes a session together with all of its chunks
func (s *ChunkStore) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.AudioChunk{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", sessionID).Delete(&models.RecordingSession{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// PurgeStaleSessions deletes every session whose last checkpoint is older than maxAge.
// It returns the number of sessions removed.
func (s *ChunkStore) PurgeStaleSessions(ctx context.Context, maxAge time.Duration) (int, error) {
	var sessions []models.RecordingSession
	if err := s.db.WithContext(ctx).Select("id", "last_checkpoint").Find(&sessions).Error; err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	cutoff := s.now().Add(-maxAge)
	purged := 0
	for _, session := range sessions {
		if !session.LastCheckpoint.Before(cutoff) {
			continue
		}
		if err := s.DeleteSession(ctx, session.ID); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}
