package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/hirevox/hirevox/internal/media"
	"github.com/hirevox/hirevox/internal/queue"
)

// MediaWorker consumes media:generate tasks. Returning an error lets asynq
// retry with the configured backoff; per-question failures inside the
// pipeline are already recorded and do not fail the task.
type MediaWorker struct {
	Pipeline *media.Pipeline
	Log      *logrus.Logger
}

func NewMediaWorker(pipeline *media.Pipeline, log *logrus.Logger) *MediaWorker {
	if log == nil {
		log = logrus.New()
	}
	return &MediaWorker{Pipeline: pipeline, Log: log}
}

func (w *MediaWorker) HandleGenerateMediaTask(ctx context.Context, t *asynq.Task) error {
	var p queue.GenerateMediaPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	log := w.Log.WithFields(logrus.Fields{
		"session_id":   p.SessionID,
		"missing_only": p.MissingOnly,
	})

	outcomes, err := w.Pipeline.ProcessSession(ctx, p.SessionID, p.MissingOnly)
	if err != nil {
		log.WithError(err).Error("media generation task failed")
		return err
	}

	var ready, failed, skipped int
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.Err != nil:
			failed++
		default:
			ready++
		}
	}
	log.WithFields(logrus.Fields{
		"ready":   ready,
		"failed":  failed,
		"skipped": skipped,
	}).Info("media generation task done")
	return nil
}
