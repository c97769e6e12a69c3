// Package scheduler runs periodic background tasks (alert evaluation, cache
// warming) on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/observability"
)

// ErrUnknownTask is returned by TriggerTask for a name that was never added.
var ErrUnknownTask = errors.New("unknown task")

// TaskFunc is the body of a scheduled task. ctx is cancelled when the scheduler stops.
type TaskFunc func(ctx context.Context) error

// Task is one scheduled job.
type Task struct {
	Name     string
	Schedule string // cron expression: "*/5 * * * *", "@hourly", "@every 1m"
	fn       TaskFunc
	entryID  cron.EntryID

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	runs    int
}

// TaskStatus is a point-in-time view of a task.
type TaskStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
	Next      time.Time `json:"next,omitempty"`
}

// Scheduler wraps robfig/cron. Overlapping runs of the same task are skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewScheduler creates a scheduler. Schedules use the standard five-field cron
// format plus descriptors (@hourly, @every 5m).
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*Task),
	}
}

// AddTask registers fn under name with a cron schedule.
func (s *Scheduler) AddTask(name, schedule string, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}
	task := &Task{Name: name, Schedule: schedule, fn: fn}
	id, err := s.cron.AddFunc(schedule, func() { s.execute(task) })
	if err != nil {
		return fmt.Errorf("add task %q with schedule %q: %w", name, schedule, err)
	}
	task.entryID = id
	s.tasks[name] = task
	return nil
}

// AddTaskInterval registers fn to run every interval.
func (s *Scheduler) AddTaskInterval(name string, interval time.Duration, fn TaskFunc) error {
	if interval <= 0 {
		return fmt.Errorf("task %q: interval must be positive", name)
	}
	return s.AddTask(name, "@every "+interval.String(), fn)
}

// Start begins running tasks in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.RLock()
	n := len(s.tasks)
	s.mu.RUnlock()
	s.logger.Info("scheduler started", zap.Int("tasks", n))
}

// Stop halts scheduling, cancels running tasks' context and waits for them
// to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// TriggerTask runs a task immediately on the calling goroutine.
func (s *Scheduler) TriggerTask(name string) error {
	s.mu.RLock()
	task, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task %q: %w", name, ErrUnknownTask)
	}
	return s.execute(task)
}

// Status returns every task's status sorted by name.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		t.mu.Lock()
		st := TaskStatus{Name: t.Name, Schedule: t.Schedule, LastRun: t.lastRun, Runs: t.runs}
		if t.lastErr != nil {
			st.LastError = t.lastErr.Error()
		}
		t.mu.Unlock()
		st.Next = s.cron.Entry(t.entryID).Next
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(task *Task) error {
	start := time.Now()
	err := task.fn(s.ctx)
	elapsed := time.Since(start)

	task.mu.Lock()
	task.lastRun = start
	task.lastErr = err
	task.runs++
	task.mu.Unlock()

	if err != nil {
		observability.SchedulerRunsTotal.WithLabelValues(task.Name, "error").Inc()
		s.logger.Warn("task failed", zap.String("task", task.Name), zap.Duration("duration", elapsed), zap.Error(err))
		return err
	}
	observability.SchedulerRunsTotal.WithLabelValues(task.Name, "success").Inc()
	s.logger.Debug("task completed", zap.String("task", task.Name), zap.Duration("duration", elapsed))
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
