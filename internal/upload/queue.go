package upload

import "sync"

// Queue hands out jobs in order, each exactly once. It is filled at
// construction and only ever drained.
type Queue struct {
	mu    sync.Mutex
	jobs  []Job
	next  int
	total int
}

// NewQueue copies jobs into a queue and numbers them by position.
func NewQueue(jobs []Job) *Queue {
	q := &Queue{jobs: make([]Job, len(jobs)), total: len(jobs)}
	for i, j := range jobs {
		j.Seq = i
		q.jobs[i] = j
	}
	return q
}

// Next removes and returns the next job, or false once the queue is empty.
func (q *Queue) Next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.jobs) {
		return Job{}, false
	}
	j := q.jobs[q.next]
	q.jobs[q.next] = Job{}
	q.next++
	return j, true
}

// Len is the number of jobs not yet taken.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs) - q.next
}

func (q *Queue) Total() int { return q.total }
