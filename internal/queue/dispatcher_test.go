package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (m *mockEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	return &asynq.TaskInfo{ID: "task-id", Queue: "media"}, nil
}

func TestRetryDelayDoubles(t *testing.T) {
	assert.Equal(t, 10*time.Second, RetryDelay(0, nil, nil))
	assert.Equal(t, 20*time.Second, RetryDelay(1, nil, nil))
	assert.Equal(t, 40*time.Second, RetryDelay(2, nil, nil))
	assert.Equal(t, 80*time.Second, RetryDelay(3, nil, nil))
}

func TestGenerateMediaTaskPayload(t *testing.T) {
	task, err := NewGenerateMediaTask("sess-1", true)
	require.NoError(t, err)
	assert.Equal(t, TypeGenerateMedia, task.Type())

	var p GenerateMediaPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "sess-1", p.SessionID)
	assert.True(t, p.MissingOnly)
}

func TestDispatchQueueMode(t *testing.T) {
	enq := &mockEnqueuer{}
	ran := make(chan string, 1)
	d := NewDispatcher(ModeQueue, enq, func(ctx context.Context, sessionID string, missingOnly bool) error {
		ran <- sessionID
		return nil
	}, nil)

	d.Dispatch(context.Background(), "sess-1", false)

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeGenerateMedia, enq.tasks[0].Type())
	select {
	case <-ran:
		t.Fatal("inline runner must not fire when enqueue succeeds")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchInlineModeNeverEnqueues(t *testing.T) {
	enq := &mockEnqueuer{}
	ran := make(chan string, 1)
	d := NewDispatcher(ModeInline, enq, func(ctx context.Context, sessionID string, missingOnly bool) error {
		ran <- sessionID
		return nil
	}, nil)

	d.Dispatch(context.Background(), "sess-1", true)

	select {
	case got := <-ran:
		assert.Equal(t, "sess-1", got)
	case <-time.After(2 * time.Second):
		t.Fatal("inline runner did not fire")
	}
	assert.Empty(t, enq.tasks)
}

func TestDispatchFallsBackInlineOnEnqueueFailure(t *testing.T) {
	enq := &mockEnqueuer{err: errors.New("redis down")}
	ran := make(chan bool, 1)
	d := NewDispatcher(ModeQueue, enq, func(ctx context.Context, sessionID string, missingOnly bool) error {
		ran <- missingOnly
		return nil
	}, nil)

	// must not surface the enqueue error to the caller
	d.Dispatch(context.Background(), "sess-1", true)

	select {
	case missingOnly := <-ran:
		assert.True(t, missingOnly)
	case <-time.After(2 * time.Second):
		t.Fatal("inline fallback did not fire")
	}
}

func TestDispatchWithoutInlineRunnerDoesNotPanic(t *testing.T) {
	d := NewDispatcher(ModeInline, nil, nil, nil)
	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), "sess-1", false)
	})
}
