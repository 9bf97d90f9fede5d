package concurrent

import (
	"context"
	"sync"
)

type JobFunc[T any, G any] func(ctx context.Context, job T) G

type indexedJob[T any] struct {
	index int
	job   T
}

// IndexedResult a job result tagged with the index AddJob returned for the job.
type IndexedResult[G any] struct {
	Index  int
	Result G
}

// WorkerPool runs a fixed number of workers over a bounded job queue. Results carry the index
// the job was submitted with.
type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan indexedJob[T]
	results    chan IndexedResult[G]
	wg         sync.WaitGroup
	submitted  int
}

func NewWorkerPool[T any, G any](numWorkers, jobQueueSize int) *WorkerPool[T, G] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan indexedJob[T], jobQueueSize),
		results:    make(chan IndexedResult[G], jobQueueSize),
	}
}

func (wp *WorkerPool[T, G]) worker(ctx context.Context, jobFunc JobFunc[T, G]) {
	defer wp.wg.Done()
	for j := range wp.jobQueue {
		wp.results <- IndexedResult[G]{Index: j.index, Result: jobFunc(ctx, j.job)}
	}
}

func (wp *WorkerPool[T, G]) Start(ctx context.Context, jobFunc JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, jobFunc)
	}
}

// AddJob returns the index of the job.
func (wp *WorkerPool[T, G]) AddJob(job T) int {
	idx := wp.submitted
	wp.submitted++
	wp.jobQueue <- indexedJob[T]{index: idx, job: job}
	return idx
}

// Close stops accepting jobs.
func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

// Wait blocks until every worker returned, then closes the results channel.
func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

// CollectResults is closed by Wait.
func (wp *WorkerPool[T, G]) CollectResults() <-chan IndexedResult[G] {
	return wp.results
}

// Map runs jobFunc over jobs on numWorkers workers and returns the results in job order.
func Map[T any, G any](ctx context.Context, numWorkers int, jobs []T, jobFunc JobFunc[T, G]) []G {
	wp := NewWorkerPool[T, G](numWorkers, len(jobs))
	wp.Start(ctx, jobFunc)
	for _, job := range jobs {
		wp.AddJob(job)
	}
	wp.Close()
	wp.Wait()

	out := make([]G, len(jobs))
	for r := range wp.CollectResults() {
		out[r.Index] = r.Result
	}
	return out
}
