package transform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/balkashynov/whisp/internal/db"
	"github.com/balkashynov/whisp/internal/models"
	"github.com/balkashynov/whisp/internal/quota"
)

// Limiter gates transformations.
type Limiter interface {
	RemainingTransformations() (float64, error)
}

// Transformer streams rewrites and persists them as Transformation rows.
type Transformer struct {
	client  oai.Client
	model   string
	limiter Limiter
	log     *zap.SugaredLogger
}

type config struct {
	baseURL string
	timeout time.Duration
	limiter Limiter
	log     *zap.SugaredLogger
}

// Option is a functional option for Transformer.
type Option func(*config)

func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

func WithLimiter(l Limiter) Option {
	return func(c *config) {
		c.limiter = l
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *config) {
		c.log = l
	}
}

// New constructs a Transformer for model.
func New(apiKey, model string, opts ...Option) (*Transformer, error) {
	if apiKey == "" {
		return nil, errors.New("transform: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("transform: model must not be empty")
	}

	cfg := &config{log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Transformer{
		client:  oai.NewClient(reqOpts...),
		model:   model,
		limiter: cfg.limiter,
		log:     cfg.log,
	}, nil
}

// Run rewrites the note's transcript as typeName. onChunk, if set, sees
// each piece of text as it arrives. If the stream breaks, the partial text
// is kept and the error returned.
func (t *Transformer) Run(ctx context.Context, noteID uint, typeName string, onChunk func(string)) (*models.Transformation, error) {
	typ, err := Lookup(typeName)
	if err != nil {
		return nil, err
	}
	if t.limiter != nil {
		remaining, err := t.limiter.RemainingTransformations()
		if err != nil {
			return nil, err
		}
		if remaining <= 0 {
			return nil, quota.ErrTransformationsExhausted
		}
	}

	note, err := db.GetNoteByID(noteID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(note.Transcript) == "" {
		return nil, fmt.Errorf("note #%d has no transcript", noteID)
	}

	row, err := db.CreateTransformation(note.ID, typ.Value)
	if err != nil {
		return nil, fmt.Errorf("create transformation: %w", err)
	}

	stream := t.client.Chat.Completions.NewStreaming(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(t.model),
		Messages: []oai.ChatCompletionMessageParamUnion{oai.UserMessage(Prompt(typ, note.Transcript))},
	})
	defer stream.Close()

	var text strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		piece := chunk.Choices[0].Delta.Content
		if piece == "" {
			continue
		}
		text.WriteString(piece)
		if onChunk != nil {
			onChunk(piece)
		}
	}
	streamErr := stream.Err()

	if err := db.FinishTransformation(row.ID, text.String()); err != nil {
		return nil, fmt.Errorf("save transformation: %w", err)
	}
	row.Text = text.String()
	row.IsGenerating = false

	if streamErr != nil {
		t.log.Warnw("transformation stream failed", "note", noteID, "type", typ.Value, "error", streamErr)
		return row, fmt.Errorf("transform: %w", streamErr)
	}
	t.log.Infow("transformation finished", "note", noteID, "type", typ.Value, "chars", text.Len())
	return row, nil
}
