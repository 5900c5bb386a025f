// Package transcribe turns an uploaded recording into text through an
// OpenAI-compatible audio transcription endpoint.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// Transcriber fetches audio by URL and transcribes it.
type Transcriber struct {
	client oai.Client
	http   *resty.Client
	model  string
	log    *zap.SugaredLogger
}

type config struct {
	baseURL string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// Option is a functional option for Transcriber.
type Option func(*config)

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout bounds both the audio download and the API request.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *config) {
		c.log = l
	}
}

// New constructs a Transcriber for model.
func New(apiKey, model string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("transcribe: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("transcribe: model must not be empty")
	}

	cfg := &config{log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	fetcher := resty.New()
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
		fetcher.SetTimeout(cfg.timeout)
	}

	return &Transcriber{
		client: oai.NewClient(reqOpts...),
		http:   fetcher,
		model:  model,
		log:    cfg.log,
	}, nil
}

// Transcribe downloads the audio at audioURL and returns its transcript.
// language is an ISO-639-1 hint and may be empty.
func (t *Transcriber) Transcribe(ctx context.Context, audioURL, mimeType, language string) (string, error) {
	data, err := t.fetch(ctx, audioURL)
	if err != nil {
		return "", err
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(data), fileName(mimeType), mimeType),
		Model: oai.AudioModel(t.model),
	}
	if language != "" {
		params.Language = oai.String(language)
	}

	start := time.Now()
	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	t.log.Debugw("transcribed recording", "bytes", len(data), "took", time.Since(start))
	return strings.TrimSpace(resp.Text), nil
}

func (t *Transcriber) fetch(ctx context.Context, raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("transcribe: bad audio url: %w", err)
	}

	switch u.Scheme {
	case "file":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("transcribe: read audio: %w", err)
		}
		return data, nil
	case "http", "https":
		resp, err := t.http.R().SetContext(ctx).Get(raw)
		if err != nil {
			return nil, fmt.Errorf("transcribe: fetch audio: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("transcribe: fetch audio: %s", resp.Status())
		}
		return resp.Body(), nil
	}
	return nil, fmt.Errorf("transcribe: unsupported audio url scheme %q", u.Scheme)
}

func fileName(mimeType string) string {
	ext := ".wav"
	switch mimeType {
	case "audio/webm":
		ext = ".webm"
	case "audio/mpeg":
		ext = ".mp3"
	case "audio/ogg":
		ext = ".ogg"
	case "audio/mp4":
		ext = ".m4a"
	}
	return "recording" + ext
}
