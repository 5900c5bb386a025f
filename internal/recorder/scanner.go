package recorder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/balkashynov/whisp/internal/audio"
	"github.com/balkashynov/whisp/internal/capture"
)

// Scanner looks for a recording left behind by a crash or forced quit.
type Scanner struct {
	store       Store
	minDuration time.Duration
	staleAfter  time.Duration
	log         *zap.SugaredLogger
}

// NewScanner returns a scanner that ignores sessions of minDuration or less
// and purges sessions whose last checkpoint is older than staleAfter.
func NewScanner(store Store, minDuration, staleAfter time.Duration, log *zap.SugaredLogger) *Scanner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scanner{store: store, minDuration: minDuration, staleAfter: staleAfter, log: log}
}

// Scan returns the most recent recoverable session, or nil if there is
// none. Sessions that are too short or have no usable audio are deleted.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	purged, err := s.store.PurgeStaleSessions(ctx, s.staleAfter)
	if err != nil {
		return nil, fmt.Errorf("purge stale recordings: %w", err)
	}
	if purged > 0 {
		s.log.Infow("purged stale recordings", "count", purged)
	}

	session, err := s.store.GetLatestSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest recording: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if time.Duration(session.ElapsedSeconds)*time.Second <= s.minDuration {
		s.log.Debugw("dropping short recording", "session", session.ID, "elapsed", session.ElapsedSeconds)
		return nil, s.store.DeleteSession(ctx, session.ID)
	}

	chunks, err := s.store.GetChunks(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load recording chunks: %w", err)
	}
	payloads := make([][]byte, 0, len(chunks))
	for _, ch := range chunks {
		payloads = append(payloads, ch.Payload)
	}

	f := audio.Format{SampleRate: session.SampleRate, Channels: session.Channels}
	var data []byte
	err = f.Validate()
	if err == nil {
		data, err = audio.Reassemble(payloads, f)
	}
	if err != nil {
		s.log.Warnw("unusable recording discarded", "session", session.ID, "chunks", len(chunks), "error", err)
		return nil, s.store.DeleteSession(ctx, session.ID)
	}

	s.log.Infow("found interrupted recording", "session", session.ID, "elapsed", session.ElapsedSeconds, "chunks", len(chunks))
	return &Result{
		SessionID: session.ID,
		Recording: &capture.Recording{
			Data:     data,
			MIMEType: audio.MIMEType,
			Format:   f,
			Duration: f.Duration(totalBytes(payloads)),
			Chunks:   len(chunks),
		},
		ElapsedSeconds: session.ElapsedSeconds,
		Language:       session.Language,
		StartedAt:      session.StartTime,
		Recovered:      true,
	}, nil
}

func totalBytes(chunks [][]byte) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}
