package concurrent

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapKeepsJobOrder(t *testing.T) {
	testCases := []struct {
		name    string
		workers int
		jobs    []int
	}{
		{name: "single worker", workers: 1, jobs: []int{3, 1, 2}},
		{name: "more workers than jobs", workers: 8, jobs: []int{5, 4}},
		{name: "many jobs", workers: 4, jobs: []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}},
		{name: "no jobs", workers: 2, jobs: []int{}},
		{name: "zero workers falls back to one", workers: 0, jobs: []int{1, 2}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			got := Map(context.Background(), tt.workers, tt.jobs, func(_ context.Context, job int) int {
				calls.Add(1)
				return job * job
			})

			want := make([]int, len(tt.jobs))
			for i, j := range tt.jobs {
				want[i] = j * j
			}
			assert.Equal(t, want, got)
			assert.Equal(t, int32(len(tt.jobs)), calls.Load())
		})
	}
}

func TestWorkerPoolIndices(t *testing.T) {
	wp := NewWorkerPool[string, int](2, 3)
	wp.Start(context.Background(), func(_ context.Context, s string) int { return len(s) })
	assert.Equal(t, 0, wp.AddJob("a"))
	assert.Equal(t, 1, wp.AddJob("bb"))
	assert.Equal(t, 2, wp.AddJob("ccc"))
	wp.Close()
	wp.Wait()

	got := map[int]int{}
	for r := range wp.CollectResults() {
		got[r.Index] = r.Result
	}
	assert.Equal(t, map[int]int{0: 1, 1: 2, 2: 3}, got)
}
