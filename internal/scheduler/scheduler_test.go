package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAddTask_InvalidSchedule(t *testing.T) {
	s := NewScheduler(nil)
	err := s.AddTask("bad", "every now and then", func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.Empty(t, s.Status())
}

func TestAddTask_Duplicate(t *testing.T) {
	s := NewScheduler(nil)
	noop := func(context.Context) error { return nil }
	require.NoError(t, s.AddTask("warm", "@hourly", noop))
	assert.Error(t, s.AddTask("warm", "@daily", noop))
}

func TestAddTaskInterval_RejectsNonPositive(t *testing.T) {
	s := NewScheduler(nil)
	assert.Error(t, s.AddTaskInterval("x", 0, func(context.Context) error { return nil }))
}

func TestTriggerTask_RecordsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewScheduler(zap.New(core))
	boom := errors.New("boom")
	calls := 0
	require.NoError(t, s.AddTask("evaluate", "*/5 * * * *", func(context.Context) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}))

	require.NoError(t, s.TriggerTask("evaluate"))
	assert.ErrorIs(t, s.TriggerTask("evaluate"), boom)

	st := s.Status()
	require.Len(t, st, 1)
	assert.Equal(t, "evaluate", st[0].Name)
	assert.Equal(t, 2, st[0].Runs)
	assert.Equal(t, "boom", st[0].LastError)
	assert.Equal(t, 1, logs.FilterMessage("task failed").Len())
}

func TestTriggerTask_Unknown(t *testing.T) {
	s := NewScheduler(nil)
	assert.ErrorIs(t, s.TriggerTask("nope"), ErrUnknownTask)
}

func TestStartStop_RunsIntervalTasks(t *testing.T) {
	s := NewScheduler(nil)
	var runs atomic.Int32
	require.NoError(t, s.AddTaskInterval("tick", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestStop_CancelsTaskContext(t *testing.T) {
	s := NewScheduler(nil)
	started := make(chan struct{})
	require.NoError(t, s.AddTaskInterval("long", time.Second, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("task did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
