package upload

import "time"

const DefaultPollInterval = 750 * time.Millisecond

// Snapshot is the queue position at one instant. Done counts jobs taken by a
// worker, not jobs finished.
type Snapshot struct {
	Total     int
	Remaining int
	Done      int
	Ratio     float64
	Final     bool
}

func snapshot(q *Queue) Snapshot {
	total, remaining := q.Total(), q.Len()
	s := Snapshot{Total: total, Remaining: remaining, Done: total - remaining, Ratio: 1}
	if total > 0 {
		s.Ratio = float64(s.Done) / float64(total)
	}
	return s
}

// Reporter polls a queue while a run is active. It only reads the queue.
type Reporter struct {
	Interval time.Duration
	Emit     func(Snapshot)
}

// Watch emits a snapshot every interval until done is closed, then emits a
// final one.
func (r *Reporter) Watch(q *Queue, done <-chan struct{}) {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-done:
			s := snapshot(q)
			s.Final = true
			r.emit(s)
			return
		case <-t.C:
			r.emit(snapshot(q))
		}
	}
}

func (r *Reporter) emit(s Snapshot) {
	if r.Emit != nil {
		r.Emit(s)
	}
}
