package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type taskResult struct {
	Value int
	Err   error
}

type runTask struct {
	fn      func() (*taskResult, error)
	timeout time.Duration
}

type taskActor struct {
	replyTo *actor.PID
}

func (a *taskActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case runTask:
		a.replyTo = ctx.Sender()
		NewBackgroundTask(ctx, msg.fn).Recover(func(err error) taskResult {
			return taskResult{Err: err}
		}).WithTimeout(msg.timeout).PipeTo(ctx.Self())
	case taskResult:
		ctx.Send(a.replyTo, msg)
	}
}

func runTaskActor(t *testing.T, task runTask) taskResult {
	as := NewActorSystemWithZapLogger(zap.NewNop())
	defer as.Shutdown()

	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return &taskActor{} }))
	res, err := as.Root.RequestFuture(pid, task, 2*time.Second).Result()
	assert.NoError(t, err)
	result, ok := res.(taskResult)
	assert.True(t, ok)
	return result
}

func TestBackgroundTaskSuccess(t *testing.T) {
	result := runTaskActor(t, runTask{
		fn: func() (*taskResult, error) {
			return &taskResult{Value: 42}, nil
		},
		timeout: time.Second,
	})
	assert.Equal(t, 42, result.Value)
	assert.NoError(t, result.Err)
}

func TestBackgroundTaskRecoverFromError(t *testing.T) {
	boom := errors.New("boom")
	result := runTaskActor(t, runTask{
		fn: func() (*taskResult, error) {
			return nil, boom
		},
		timeout: time.Second,
	})
	assert.ErrorIs(t, result.Err, boom)
}

func TestBackgroundTaskTimeout(t *testing.T) {
	result := runTaskActor(t, runTask{
		fn: func() (*taskResult, error) {
			time.Sleep(500 * time.Millisecond)
			return &taskResult{Value: 1}, nil
		},
		timeout: 50 * time.Millisecond,
	})
	assert.Error(t, result.Err)
	assert.Equal(t, 0, result.Value)
}

func TestBackgroundTaskOnError(t *testing.T) {
	var got error
	task := &SafeBackgroundTask[taskResult]{
		fn: func() (*taskResult, error) {
			return nil, errors.New("boom")
		},
	}
	task.OnError(func(err error) { got = err }).OnSuccess(func(taskResult) {
		t.Fatal("unexpected success")
	}).Run()
	assert.EqualError(t, got, "boom")
}
