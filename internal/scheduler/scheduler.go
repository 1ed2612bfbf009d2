// Package scheduler runs periodic background tasks on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Task is a unit of scheduled work.
type Task interface {
	Name() string
	Schedule() string
	Timeout() time.Duration
	Run(ctx context.Context) error
}

// Runner executes registered tasks on their schedules
type Runner struct {
	cron  *cron.Cron
	tasks []Task
	wg    sync.WaitGroup
}

// NewRunner creates a runner for tasks. Tasks with an empty schedule are
// skipped.
func NewRunner(tasks ...Task) *Runner {
	return &Runner{cron: cron.New(), tasks: tasks}
}

// Start registers every task and starts the cron loop. It does not block.
func (r *Runner) Start(ctx context.Context) error {
	for _, task := range r.tasks {
		if task.Schedule() == "" {
			log.WithField("task", task.Name()).Info("Task disabled")
			continue
		}
		task := task
		if _, err := r.cron.AddFunc(task.Schedule(), func() { r.Execute(ctx, task) }); err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", task.Name(), err)
		}
		log.WithFields(log.Fields{"task": task.Name(), "schedule": task.Schedule()}).Info("Registered task")
	}
	r.cron.Start()
	return nil
}

// Execute runs task once with its timeout, logging the outcome.
func (r *Runner) Execute(ctx context.Context, task Task) {
	r.wg.Add(1)
	defer r.wg.Done()

	taskCtx := ctx
	if task.Timeout() > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, task.Timeout())
		defer cancel()
	}

	start := time.Now()
	err := task.Run(taskCtx)
	entry := log.WithFields(log.Fields{"task": task.Name(), "duration": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Error("Task failed")
		return
	}
	entry.Debug("Task completed")
}

// Stop halts the cron loop and waits for running tasks.
func (r *Runner) Stop() {
	done := r.cron.Stop()
	r.wg.Wait()
	<-done.Done()
}

// OverdueChecker recomputes overdue flags on open work orders.
type OverdueChecker interface {
	CheckAllOverdue(ctx context.Context) (int, error)
}

// OverdueSweep is the task that flags overdue work orders.
type OverdueSweep struct {
	Checker OverdueChecker
	Spec    string
}

func (t OverdueSweep) Name() string { return "overdue-sweep" }
func (t OverdueSweep) Schedule() string { return t.Spec }
func (t OverdueSweep) Timeout() time.Duration { return 5 * time.Minute }

func (t OverdueSweep) Run(ctx context.Context) error {
	n, err := t.Checker.CheckAllOverdue(ctx)
	if err != nil {
		return err
	}
	log.WithField("overdue", n).Info("Overdue sweep finished")
	return nil
}
