package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TypeGenerateMedia = "media:generate"

type GenerateMediaPayload struct {
	SessionID   string `json:"session_id"`
	MissingOnly bool   `json:"missing_only"`
}

func NewGenerateMediaTask(sessionID string, missingOnly bool) (*asynq.Task, error) {
	payload, err := json.Marshal(GenerateMediaPayload{SessionID: sessionID, MissingOnly: missingOnly})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateMedia, payload), nil
}

// TaskEnqueuer abstracts asynq.Client for testing.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
