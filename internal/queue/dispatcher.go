package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

type Mode string

const (
	// ModeInline always runs media generation in-process.
	ModeInline Mode = "inline"
	// ModeQueue prefers the queue and falls back to inline when
	// enqueueing fails.
	ModeQueue Mode = "queue"
)

const (
	maxRetries   = 3
	baseBackoff  = 10 * time.Second
	inlineBudget = 10 * time.Minute
)

// InlineFunc runs the media pipeline synchronously in-process.
type InlineFunc func(ctx context.Context, sessionID string, missingOnly bool) error

// Dispatcher submits media-generation work. A session creation must never be
// left without a generation attempt, so enqueue failures degrade to a
// detached inline run instead of surfacing to the caller.
type Dispatcher struct {
	Mode   Mode
	Client TaskEnqueuer
	Inline InlineFunc
	Log    *logrus.Logger
}

func NewDispatcher(mode Mode, client TaskEnqueuer, inline InlineFunc, log *logrus.Logger) *Dispatcher {
	if mode != ModeInline {
		mode = ModeQueue
	}
	if log == nil {
		log = logrus.New()
	}
	return &Dispatcher{Mode: mode, Client: client, Inline: inline, Log: log}
}

// RetryDelay is the asynq server backoff: 10s, 20s, 40s, ...
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := baseBackoff
	for i := 0; i < n; i++ {
		delay *= 2
	}
	return delay
}

// Dispatch is fire-and-forget: failures are logged at this boundary and
// never propagate to the triggering request.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, missingOnly bool) {
	log := d.Log.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"missing_only": missingOnly,
	})

	if d.Mode != ModeInline && d.Client != nil {
		task, err := NewGenerateMediaTask(sessionID, missingOnly)
		if err == nil {
			_, err = d.Client.Enqueue(task, asynq.MaxRetry(maxRetries), asynq.Queue("media"))
		}
		if err == nil {
			log.Debug("media job enqueued")
			return
		}
		log.WithError(err).Warn("enqueue failed, falling back to inline media generation")
	}

	d.runInline(sessionID, missingOnly)
}

func (d *Dispatcher) runInline(sessionID string, missingOnly bool) {
	if d.Inline == nil {
		d.Log.WithField("session_id", sessionID).Error("no inline runner configured, media job dropped")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), inlineBudget)
		defer cancel()

		if err := d.Inline(ctx, sessionID, missingOnly); err != nil {
			d.Log.WithError(err).WithField("session_id", sessionID).Error("inline media generation failed")
			return
		}
		d.Log.WithField("session_id", sessionID).Debug("inline media generation done")
	}()
}
