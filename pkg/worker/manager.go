package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one unit of work. A task writes its output into state it owns;
// Manager only collects errors.
type Task func(ctx context.Context) error

// Manager runs tasks on a fixed number of workers
type Manager struct {
	workerCount int
	logger      *slog.Logger
}

// NewManager creates a new manager. workerCount <= 0 is treated as 1.
func NewManager(workerCount int, logger *slog.Logger) *Manager {
	if workerCount <= 0 {
		workerCount = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		workerCount: workerCount,
		logger:      logger,
	}
}

// Run distributes tasks to workers and blocks until all of them finished.
// The returned slice has one entry per task, in task order: nil on success,
// the task's error otherwise. Tasks not started before ctx is done get
// ctx.Err().
func (m *Manager) Run(ctx context.Context, tasks []Task) []error {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}

	// Create job channel
	jobChan := make(chan int, len(tasks))
	for i := range tasks {
		jobChan <- i
	}
	close(jobChan)

	workers := m.workerCount
	if workers > len(tasks) {
		workers = len(tasks)
	}

	// Results channel to collect outcomes from workers (no contention)
	type result struct {
		index    int
		workerID int
		err      error
	}
	resultsChan := make(chan result, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobChan {
				if err := ctx.Err(); err != nil {
					resultsChan <- result{index: i, workerID: workerID, err: err}
					continue
				}
				resultsChan <- result{index: i, workerID: workerID, err: tasks[i](ctx)}
			}
		}(w)
	}

	// Close results channel when all workers finish
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var successCount, errorCount int
	for res := range resultsChan {
		errs[res.index] = res.err
		if res.err != nil {
			errorCount++
			m.logger.Debug("task failed", "task", res.index, "worker", res.workerID, "error", res.err)
		} else {
			successCount++
		}
	}

	m.logger.Debug("tasks completed", "successful", successCount, "errors", errorCount, "total", len(tasks))
	return errs
}
