package workers

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"

	"github.com/hirevox/hirevox/internal/queue"
)

func TestHandleGenerateMediaTaskBadPayload(t *testing.T) {
	w := NewMediaWorker(nil, nil)

	task := asynq.NewTask(queue.TypeGenerateMedia, []byte("not json"))
	err := w.HandleGenerateMediaTask(context.Background(), task)
	assert.Error(t, err)
}
