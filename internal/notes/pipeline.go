// Package notes turns finished recordings into notes: upload the audio,
// transcribe it, then store the note.
package notes

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/balkashynov/whisp/internal/audio"
	"github.com/balkashynov/whisp/internal/capture"
	"github.com/balkashynov/whisp/internal/db"
	"github.com/balkashynov/whisp/internal/models"
	"github.com/balkashynov/whisp/internal/recorder"
	"github.com/balkashynov/whisp/internal/storage"
)

// Transcriber turns uploaded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL, mimeType, language string) (string, error)
}

// Pipeline is the recorder's save handoff.
type Pipeline struct {
	uploader    storage.Uploader
	transcriber Transcriber
	quota       recorder.Quota
	log         *zap.SugaredLogger
}

var _ recorder.Handoff = (*Pipeline)(nil)

func NewPipeline(uploader storage.Uploader, transcriber Transcriber, quota recorder.Quota, log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{uploader: uploader, transcriber: transcriber, quota: quota, log: log}
}

// Deliver uploads and transcribes res and stores the resulting note.
func (p *Pipeline) Deliver(ctx context.Context, res *recorder.Result) (uint, error) {
	rec := res.Recording
	if rec == nil || len(rec.Data) == 0 {
		return 0, fmt.Errorf("%w: recording is empty", recorder.ErrUploadFailed)
	}

	name := res.SessionID + ".wav"
	url, err := p.uploader.Upload(ctx, name, rec.Data, rec.MIMEType)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", recorder.ErrUploadFailed, err)
	}
	p.log.Infow("recording uploaded", "session", res.SessionID, "url", url)

	transcript, err := p.transcriber.Transcribe(ctx, url, rec.MIMEType, res.Language)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", recorder.ErrTranscriptionFailed, err)
	}

	note, err := db.CreateNote(db.CreateNoteRequest{
		Transcript:      transcript,
		Language:        res.Language,
		DurationSeconds: rec.Duration.Seconds(),
		AudioURL:        url,
		MIMEType:        rec.MIMEType,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: save note: %v", recorder.ErrStorageWriteFailed, err)
	}
	p.log.Infow("note created", "note", note.ID, "session", res.SessionID, "recovered", res.Recovered)
	return note.ID, nil
}

// ImportFile sends an existing WAV file through the same pipeline.
func (p *Pipeline) ImportFile(ctx context.Context, path, language string) (*models.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pcm, f, err := audio.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(pcm) < f.FrameSize() {
		return nil, fmt.Errorf("%s: %w", path, audio.ErrNoAudio)
	}
	duration := f.Duration(len(pcm))

	if p.quota != nil {
		remaining, err := p.quota.RemainingMinutes()
		if err != nil {
			return nil, err
		}
		if !math.IsInf(remaining, 1) && remaining < duration.Minutes() {
			return nil, recorder.ErrQuotaExhausted
		}
	}

	id, err := p.Deliver(ctx, &recorder.Result{
		SessionID: uuid.NewString(),
		Recording: &capture.Recording{
			Data:     data,
			MIMEType: audio.MIMEType,
			Format:   f,
			Duration: duration,
		},
		ElapsedSeconds: int(duration / time.Second),
		Language:       language,
		StartedAt:      time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return db.GetNoteByID(id)
}
