// Package pipeline moves captured stills through recognition without ever
// blocking the live camera loop: a bounded FIFO hand-off queue feeds a
// fixed pool of recognition workers.
package pipeline

import (
	"sync"
	"time"

	"github.com/ai4fin/invoice-scanner/internal/capture"
)

// Queue is a bounded FIFO of pending capture jobs with one producer (the
// detection loop) and many consumers (the workers). Enqueue never blocks
// and never evicts: a full queue rejects new work so backpressure stays
// visible at the capture site. Dequeue blocks with a timeout so idle
// workers can poll the shutdown state.
type Queue struct {
	jobs chan *capture.Job
	done chan struct{}
	once sync.Once
}

// NewQueue creates a queue holding at most capacity jobs.
func NewQueue(capacity int) *Queue {
	return &Queue{
		jobs: make(chan *capture.Job, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue offers a job without blocking. It returns false when the queue is
// full or closed; the caller owns logging the dropped capture.
func (q *Queue) Enqueue(job *capture.Job) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.jobs <- job:
		return true
	default:
		return false
	}
}

// Dequeue takes the oldest pending job, waiting up to timeout for one to
// arrive. ok is false on timeout or after Close.
func (q *Queue) Dequeue(timeout time.Duration) (*capture.Job, bool) {
	// Prefer the shutdown signal over racing it against pending jobs, so
	// jobs still queued at close time stay abandoned rather than half
	// processed.
	select {
	case <-q.done:
		return nil, false
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case job := <-q.jobs:
		return job, true
	case <-q.done:
		return nil, false
	case <-timer.C:
		return nil, false
	}
}

// Close wakes every blocked Dequeue and abandons whatever is still queued.
// It returns the number of abandoned jobs. A consumer already past its
// shutdown check may still win the race and take one pending job; that job
// is processed exactly once rather than abandoned, so the count is a floor
// on what was pending. Safe to call more than once; only the first call
// drains.
func (q *Queue) Close() int {
	abandoned := 0
	q.once.Do(func() {
		close(q.done)
		for {
			select {
			case <-q.jobs:
				abandoned++
			default:
				return
			}
		}
	})
	return abandoned
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Len reports the number of jobs currently queued.
func (q *Queue) Len() int { return len(q.jobs) }
