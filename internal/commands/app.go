package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/balkashynov/whisp/internal/audio"
	"github.com/balkashynov/whisp/internal/capture"
	"github.com/balkashynov/whisp/internal/db"
	"github.com/balkashynov/whisp/internal/notes"
	"github.com/balkashynov/whisp/internal/power"
	"github.com/balkashynov/whisp/internal/quota"
	"github.com/balkashynov/whisp/internal/recorder"
	"github.com/balkashynov/whisp/internal/storage"
	"github.com/balkashynov/whisp/internal/transcribe"
	"github.com/balkashynov/whisp/internal/transform"
	"github.com/balkashynov/whisp/internal/visual"
)

var errNoAPIKey = errors.New("no OpenAI API key: set openai.api_key or OPENAI_API_KEY")

// newQuota reads limits from config; byok lifts them.
func newQuota() *quota.Quota {
	return quota.New(cfg.Limits, cfg.BYOK)
}

// newPipeline wires upload, transcription and note persistence.
func newPipeline(q *quota.Quota) (*notes.Pipeline, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, errNoAPIKey
	}
	uploader, err := storage.New(cfg.Storage, log.Named("storage"))
	if err != nil {
		return nil, err
	}
	tr, err := transcribe.New(cfg.OpenAI.APIKey, cfg.OpenAI.TranscriptionModel,
		transcribe.WithBaseURL(cfg.OpenAI.BaseURL),
		transcribe.WithTimeout(cfg.OpenAI.Timeout),
		transcribe.WithLogger(log.Named("transcribe")),
	)
	if err != nil {
		return nil, err
	}
	return notes.NewPipeline(uploader, tr, q, log.Named("notes")), nil
}

func newTransformer(q *quota.Quota) (*transform.Transformer, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, errNoAPIKey
	}
	return transform.New(cfg.OpenAI.APIKey, cfg.OpenAI.TransformModel,
		transform.WithBaseURL(cfg.OpenAI.BaseURL),
		transform.WithTimeout(cfg.OpenAI.Timeout),
		transform.WithLimiter(q),
		transform.WithLogger(log.Named("transform")),
	)
}

func newScanner() *recorder.Scanner {
	return recorder.NewScanner(db.NewChunkStore(db.DB),
		cfg.Recorder.RecoveryMinDuration, cfg.Recorder.StaleAfter, log.Named("scanner"))
}

// newController builds a controller on the host audio devices. Without an
// API key recordings still land in the chunk store and can be saved later
// with `whisp recover`.
func newController(feed *visual.Feed) *recorder.Controller {
	devices := capture.NewHostDevices(log.Named("devices"), cfg.Recorder.DeviceBacklog)
	engine := capture.NewEngine(devices,
		capture.WithFormat(audio.Format{SampleRate: cfg.Recorder.SampleRate, Channels: cfg.Recorder.Channels}),
		capture.WithEmitInterval(cfg.Recorder.EmitInterval),
		capture.WithAnalyserSize(cfg.Recorder.AnalyserSize),
		capture.WithLogger(log.Named("capture")),
	)

	q := newQuota()
	opts := []recorder.Option{
		recorder.WithQuota(q),
		recorder.WithInhibitor(power.ForHost()),
		recorder.WithIntervals(cfg.Recorder.TickInterval, cfg.Recorder.CheckpointInterval),
		recorder.WithLogger(log.Named("recorder")),
	}
	if feed != nil {
		opts = append(opts, recorder.WithFeed(feed))
	}
	if pipeline, err := newPipeline(q); err != nil {
		log.Warnw("recordings will not be saved automatically", "error", err)
	} else {
		opts = append(opts, recorder.WithHandoff(pipeline))
	}
	return recorder.NewController(engine, db.NewChunkStore(db.DB), opts...)
}

// recoverInto runs the scanner and installs anything found in c.
func recoverInto(ctx context.Context, c *recorder.Controller) (*recorder.Result, error) {
	res, err := newScanner().Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan for unfinished recordings: %w", err)
	}
	if res == nil {
		return nil, nil
	}
	if err := c.Recover(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}
