// Package quota enforces the free-tier limits on recorded minutes and
// transformations. Users bringing their own API key are unlimited.
package quota

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/balkashynov/whisp/internal/config"
	"github.com/balkashynov/whisp/internal/db"
)

var ErrTransformationsExhausted = errors.New("no transformations left")

// Usage is a snapshot of the current window.
type Usage struct {
	Unlimited            bool
	MinutesUsed          float64
	MinutesLimit         int
	TransformationsUsed  int
	TransformationsLimit int
	Window               time.Duration
}

// Quota reads usage from the notes database over a rolling window.
type Quota struct {
	limits config.LimitsConfig
	byok   bool
	now    func() time.Time
}

func New(limits config.LimitsConfig, byok bool) *Quota {
	if limits.Window <= 0 {
		limits.Window = 24 * time.Hour
	}
	return &Quota{limits: limits, byok: byok, now: time.Now}
}

func (q *Quota) since() time.Time {
	return q.now().Add(-q.limits.Window)
}

// RemainingMinutes is how much more may be recorded in this window.
// It is +Inf when unlimited.
func (q *Quota) RemainingMinutes() (float64, error) {
	if q.byok {
		return math.Inf(1), nil
	}
	used, err := db.RecordedMinutesSince(q.since())
	if err != nil {
		return 0, fmt.Errorf("count recorded minutes: %w", err)
	}
	return math.Max(0, float64(q.limits.Minutes)-used), nil
}

// RemainingTransformations is how many more transformations may run in
// this window. It is +Inf when unlimited.
func (q *Quota) RemainingTransformations() (float64, error) {
	if q.byok {
		return math.Inf(1), nil
	}
	used, err := db.TransformationsSince(q.since())
	if err != nil {
		return 0, fmt.Errorf("count transformations: %w", err)
	}
	return math.Max(0, float64(q.limits.Transformations-used)), nil
}

// Usage reports consumption in the current window.
func (q *Quota) Usage() (Usage, error) {
	u := Usage{
		Unlimited:            q.byok,
		MinutesLimit:         q.limits.Minutes,
		TransformationsLimit: q.limits.Transformations,
		Window:               q.limits.Window,
	}
	var err error
	if u.MinutesUsed, err = db.RecordedMinutesSince(q.since()); err != nil {
		return u, fmt.Errorf("count recorded minutes: %w", err)
	}
	if u.TransformationsUsed, err = db.TransformationsSince(q.since()); err != nil {
		return u, fmt.Errorf("count transformations: %w", err)
	}
	return u, nil
}
