package worker

import (
	"context"
	"fmt"
	"sync"

	"planted-staging/internal/logger"

	"github.com/rs/zerolog"
)

type Job func(ctx context.Context) error

// WorkerPool runs batches of jobs on a bounded number of goroutines.
type WorkerPool struct {
	workerCount int
	log         zerolog.Logger
}

func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
		log:         logger.Component("worker-pool"),
	}
}

// Run executes jobs and blocks until all of them finished. errs[i] is the
// outcome of jobs[i]. Jobs not yet started when ctx is cancelled report
// ctx.Err().
func (wp *WorkerPool) Run(ctx context.Context, jobs []Job) []error {
	errs := make([]error, len(jobs))
	if len(jobs) == 0 {
		return errs
	}

	workers := wp.workerCount
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobChan := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go wp.worker(ctx, i, jobs, jobChan, errs, &wg)
	}

feed:
	for i := range jobs {
		if ctx.Err() == nil {
			select {
			case jobChan <- i:
				continue
			case <-ctx.Done():
			}
		}
		for j := i; j < len(jobs); j++ {
			errs[j] = ctx.Err()
		}
		break feed
	}
	close(jobChan)
	wg.Wait()

	return errs
}

func (wp *WorkerPool) worker(ctx context.Context, id int, jobs []Job, jobChan <-chan int, errs []error, wg *sync.WaitGroup) {
	defer wg.Done()

	log := wp.log.With().Int("worker_id", id).Logger()
	for idx := range jobChan {
		errs[idx] = runJob(ctx, jobs[idx])
		if errs[idx] != nil {
			log.Debug().Err(errs[idx]).Int("job", idx).Msg("Job execution failed")
		}
	}
}

func runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job(ctx)
}
