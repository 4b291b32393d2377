// Package workers provides a bounded fan-out/fan-in worker pool.
package workers

import (
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
)

// fallbackWorkers is used when the CPU count cannot be determined
const fallbackWorkers = 10

// WorkerPool manages a fixed number of worker goroutines
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// Non-positive values select DefaultWorkers().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// DefaultWorkers returns the number of logical CPUs
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return fallbackWorkers
	}
	return n
}

// Size returns the configured number of workers
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// Run executes fn(0..n-1) on the pool and waits for all jobs.
// The error of the lowest failing index is returned.
func (wp *WorkerPool) Run(n int, fn func(i int) error) error {
	_, err := Map(wp, n, func(i int) (struct{}, error) {
		return struct{}{}, fn(i)
	})
	return err
}

// jobItem represents a single job index
type jobItem struct {
	index int
}

// resultItem represents the result of a job
type resultItem[T any] struct {
	index int
	value T
	err   error
}

// Map evaluates fn for every index on the pool and returns the results in index order.
// All jobs run to completion even if some fail; the error of the lowest failing
// index is returned alongside the partial results.
func Map[T any](wp *WorkerPool, n int, fn func(i int) (T, error)) ([]T, error) {
	if n == 0 {
		return []T{}, nil
	}

	jobs := make(chan jobItem, n)
	results := make(chan resultItem[T], n)

	numActualWorkers := wp.numWorkers
	if n < numActualWorkers {
		numActualWorkers = n // Don't spawn more workers than jobs
	}

	var wg sync.WaitGroup
	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				v, err := fn(job.index)
				results <- resultItem[T]{index: job.index, value: v, err: err}
			}
		}()
	}

	for idx := 0; idx < n; idx++ {
		jobs <- jobItem{index: idx}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]T, n)
	errs := make([]error, n)
	for r := range results {
		out[r.index] = r.value
		errs[r.index] = r.err
	}

	for _, err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
