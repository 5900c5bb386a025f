package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/whisp/internal/db"
	"github.com/balkashynov/whisp/internal/quota"
)

func useTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, db.Initialize(filepath.Join(t.TempDir(), "transform.db")))
	t.Cleanup(func() {
		db.Close()
		db.DB = nil
	})
}

type fakeLLM struct {
	mu     sync.Mutex
	pieces []string
	prompt string
	model  string
}

func (f *fakeLLM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &req)

	f.mu.Lock()
	f.model = req.Model
	if len(req.Messages) > 0 {
		f.prompt = req.Messages[0].Content
	}
	pieces := f.pieces
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	for i, p := range pieces {
		chunk := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion.chunk",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"delta":         map[string]any{"content": p},
				"finish_reason": nil,
			}},
		}
		if i == len(pieces)-1 {
			chunk["choices"].([]map[string]any)[0]["finish_reason"] = "stop"
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

type fixedLimiter float64

func (l fixedLimiter) RemainingTransformations() (float64, error) { return float64(l), nil }

func newTestTransformer(t *testing.T, llm *fakeLLM, opts ...Option) *Transformer {
	t.Helper()
	srv := httptest.NewServer(llm)
	t.Cleanup(srv.Close)
	tr, err := New("sk-test", "gpt-4o-mini", append([]Option{WithBaseURL(srv.URL + "/v1/")}, opts...)...)
	require.NoError(t, err)
	return tr
}

func TestRunStreamsAndPersists(t *testing.T) {
	useTestDB(t)
	note, err := db.CreateNote(db.CreateNoteRequest{Title: "Standup", Transcript: "we shipped the release and fixed two bugs"})
	require.NoError(t, err)

	llm := &fakeLLM{pieces: []string{"- shipped ", "the release\n", "- fixed two bugs"}}
	tr := newTestTransformer(t, llm, WithLimiter(fixedLimiter(3)))

	var seen []string
	row, err := tr.Run(context.Background(), note.ID, "list", func(s string) { seen = append(seen, s) })
	require.NoError(t, err)

	assert.Equal(t, llm.pieces, seen)
	assert.Equal(t, "- shipped the release\n- fixed two bugs", row.Text)
	assert.False(t, row.IsGenerating)
	assert.Equal(t, "gpt-4o-mini", llm.model)
	assert.Contains(t, llm.prompt, "we shipped the release and fixed two bugs")
	assert.Contains(t, llm.prompt, "bullet point list")

	stored, err := db.GetNoteByID(note.ID)
	require.NoError(t, err)
	require.Len(t, stored.Transformations, 1)
	assert.Equal(t, "list", stored.Transformations[0].TypeName)
	assert.Equal(t, row.Text, stored.Transformations[0].Text)
	assert.False(t, stored.Transformations[0].IsGenerating)
}

func TestRunRefusesWhenExhausted(t *testing.T) {
	useTestDB(t)
	note, err := db.CreateNote(db.CreateNoteRequest{Transcript: "hello"})
	require.NoError(t, err)

	tr := newTestTransformer(t, &fakeLLM{}, WithLimiter(fixedLimiter(0)))
	_, err = tr.Run(context.Background(), note.ID, "summary", nil)
	assert.ErrorIs(t, err, quota.ErrTransformationsExhausted)

	stored, err := db.GetNoteByID(note.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Transformations)
}

func TestRunValidatesInput(t *testing.T) {
	useTestDB(t)
	tr := newTestTransformer(t, &fakeLLM{})
	ctx := context.Background()

	_, err := tr.Run(ctx, 1, "poem", nil)
	assert.ErrorContains(t, err, "unknown transformation")

	_, err = tr.Run(ctx, 99, "summary", nil)
	assert.ErrorContains(t, err, "not found")

	empty, err := db.CreateNote(db.CreateNoteRequest{Title: "Silent", Transcript: " "})
	require.NoError(t, err)
	_, err = tr.Run(ctx, empty.ID, "summary", nil)
	assert.ErrorContains(t, err, "no transcript")
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		typ      string
		contains []string
	}{
		{"summary", []string{"Generate a Summary", "100 words", "Return plain text"}},
		{"blog", []string{"Generate a Blog Post", "subheadings", "Return Markdown"}},
		{"email", []string{"subject line", "thanking the reader"}},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			typ, err := Lookup(tt.typ)
			require.NoError(t, err)
			p := Prompt(typ, "the transcript")
			for _, c := range tt.contains {
				assert.Contains(t, p, c)
			}
			assert.True(t, strings.Contains(p, "same language"))
		})
	}
}
