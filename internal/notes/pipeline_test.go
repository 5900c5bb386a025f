package notes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/whisp/internal/audio"
	"github.com/balkashynov/whisp/internal/capture"
	"github.com/balkashynov/whisp/internal/db"
	"github.com/balkashynov/whisp/internal/recorder"
)

func useTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, db.Initialize(filepath.Join(t.TempDir(), "notes.db")))
	t.Cleanup(func() {
		db.Close()
		db.DB = nil
	})
}

type fakeUploader struct {
	err   error
	names []string
}

func (u *fakeUploader) Upload(_ context.Context, name string, data []byte, mimeType string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.names = append(u.names, name)
	return "https://cdn.example.com/" + name, nil
}

type fakeTranscriber struct {
	err      error
	text     string
	url      string
	language string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, url, _, language string) (string, error) {
	f.url, f.language = url, language
	return f.text, f.err
}

type fixedQuota float64

func (q fixedQuota) RemainingMinutes() (float64, error) { return float64(q), nil }

var format = audio.Format{SampleRate: 8000, Channels: 1}

func wavOf(t *testing.T, d time.Duration) []byte {
	t.Helper()
	data, err := audio.EncodeWAV(make([]byte, format.BytesFor(d)), format)
	require.NoError(t, err)
	return data
}

func result(t *testing.T) *recorder.Result {
	return &recorder.Result{
		SessionID: "sess-1",
		Recording: &capture.Recording{
			Data:     wavOf(t, 3*time.Second),
			MIMEType: audio.MIMEType,
			Format:   format,
			Duration: 3 * time.Second,
		},
		ElapsedSeconds: 3,
		Language:       "fr",
	}
}

func TestDeliverCreatesNote(t *testing.T) {
	useTestDB(t)
	up := &fakeUploader{}
	tr := &fakeTranscriber{text: "bonjour tout le monde"}
	p := NewPipeline(up, tr, nil, nil)

	id, err := p.Deliver(context.Background(), result(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"sess-1.wav"}, up.names)
	assert.Equal(t, "https://cdn.example.com/sess-1.wav", tr.url)
	assert.Equal(t, "fr", tr.language)

	note, err := db.GetNoteByID(id)
	require.NoError(t, err)
	assert.Equal(t, "bonjour tout le monde", note.Transcript)
	assert.Equal(t, "bonjour tout le monde", note.Title)
	assert.Equal(t, 3.0, note.DurationSeconds)
	assert.Equal(t, "fr", note.Language)
	assert.Equal(t, audio.MIMEType, note.MIMEType)
}

func TestDeliverFailures(t *testing.T) {
	tests := []struct {
		name        string
		uploader    *fakeUploader
		transcriber *fakeTranscriber
		want        error
	}{
		{"upload", &fakeUploader{err: errors.New("503")}, &fakeTranscriber{}, recorder.ErrUploadFailed},
		{"transcription", &fakeUploader{}, &fakeTranscriber{err: errors.New("bad audio")}, recorder.ErrTranscriptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useTestDB(t)
			_, err := NewPipeline(tt.uploader, tt.transcriber, nil, nil).Deliver(context.Background(), result(t))
			assert.ErrorIs(t, err, tt.want)

			notes, err := db.GetNotes(db.NoteQueryOptions{})
			require.NoError(t, err)
			assert.Empty(t, notes)
		})
	}
}

func TestImportFile(t *testing.T) {
	useTestDB(t)
	path := filepath.Join(t.TempDir(), "memo.wav")
	require.NoError(t, os.WriteFile(path, wavOf(t, 90*time.Second), 0644))

	p := NewPipeline(&fakeUploader{}, &fakeTranscriber{text: "imported memo"}, fixedQuota(10), nil)
	note, err := p.ImportFile(context.Background(), path, "en")
	require.NoError(t, err)
	assert.Equal(t, 90.0, note.DurationSeconds)
	assert.Equal(t, "imported memo", note.Transcript)

	_, err = NewPipeline(&fakeUploader{}, &fakeTranscriber{}, fixedQuota(1), nil).ImportFile(context.Background(), path, "en")
	assert.ErrorIs(t, err, recorder.ErrQuotaExhausted)
}

func TestImportRejectsNonWAV(t *testing.T) {
	useTestDB(t)
	path := filepath.Join(t.TempDir(), "memo.txt")
	require.NoError(t, os.WriteFile(path, []byte("not audio at all"), 0644))

	_, err := NewPipeline(&fakeUploader{}, &fakeTranscriber{}, nil, nil).ImportFile(context.Background(), path, "en")
	assert.Error(t, err)
}
