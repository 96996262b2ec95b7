package upload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangasync/internal/reconcile"
	"mangasync/pkg/models"
)

type fakeUploader struct {
	mu      sync.Mutex
	calls   map[uint]int
	workers map[uint]bool
	fail    map[uint]error
	panics  map[uint]bool
	delay   time.Duration
	active  atomic.Int32
	peak    atomic.Int32
}

func newFake() *fakeUploader {
	return &fakeUploader{calls: map[uint]int{}, fail: map[uint]error{}, panics: map[uint]bool{}}
}

func (f *fakeUploader) do(ch models.LocalChapter) (models.Chapter, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.calls[ch.Index]++
	f.mu.Unlock()

	if f.panics[ch.Index] {
		panic("boom")
	}
	if err := f.fail[ch.Index]; err != nil {
		return models.Chapter{}, err
	}
	return models.Chapter{ID: "r", Index: ch.Index}, nil
}

func (f *fakeUploader) CreateChapter(_ context.Context, _ string, ch models.LocalChapter) (models.Chapter, error) {
	return f.do(ch)
}

func (f *fakeUploader) UpdateChapter(_ context.Context, _ string, ch models.LocalChapter) (models.Chapter, error) {
	return f.do(ch)
}

func jobs(n int) []Job {
	out := make([]Job, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Job{Action: reconcile.Create, MangaID: "m", Chapter: models.LocalChapter{Index: uint(i), Pages: []string{"1.jpg"}}})
	}
	return out
}

func TestDispatcherIsolatesFailures(t *testing.T) {
	up := newFake()
	up.fail[3] = errors.New("connection reset")
	up.panics[5] = true

	d := &Dispatcher{Uploader: up, Threads: 3, Log: zerolog.Nop()}
	results := d.Run(context.Background(), NewQueue(jobs(8)), nil)

	require.Len(t, results, 8)
	for i, res := range results {
		idx := uint(i + 1)
		assert.Equal(t, idx, res.Job.Chapter.Index)
		assert.Equal(t, 1, up.calls[idx], "chapter %d uploaded once", idx)
		switch idx {
		case 3:
			assert.Equal(t, Failed, res.State)
			require.NotNil(t, res.Err)
			assert.Equal(t, KindTransport, res.Err.Kind)
			assert.Equal(t, "create", res.Err.Op)
		case 5:
			assert.Equal(t, Failed, res.State)
			require.NotNil(t, res.Err)
			assert.Equal(t, KindPanic, res.Err.Kind)
		default:
			assert.Equal(t, Succeeded, res.State)
			assert.Nil(t, res.Err)
		}
	}
}

func TestDispatcherWorkerCount(t *testing.T) {
	up := newFake()
	up.delay = 20 * time.Millisecond

	d := &Dispatcher{Uploader: up, Threads: 8, Log: zerolog.Nop()}
	results := d.Run(context.Background(), NewQueue(jobs(2)), nil)

	workers := map[int]bool{}
	for _, r := range results {
		workers[r.Worker] = true
	}
	assert.LessOrEqual(t, len(workers), 2)
	assert.LessOrEqual(t, up.peak.Load(), int32(2))

	up = newFake()
	up.delay = 5 * time.Millisecond
	d = &Dispatcher{Uploader: up, Threads: 2, Log: zerolog.Nop()}
	d.Run(context.Background(), NewQueue(jobs(10)), nil)
	assert.LessOrEqual(t, up.peak.Load(), int32(2))
	assert.Len(t, up.calls, 10)
}

func TestDispatcherNoJobs(t *testing.T) {
	up := newFake()
	var snaps []Snapshot
	rep := &Reporter{Interval: time.Hour, Emit: func(s Snapshot) { snaps = append(snaps, s) }}

	d := &Dispatcher{Uploader: up, Threads: 4, Log: zerolog.Nop()}
	results := d.Run(context.Background(), NewQueue(nil), rep)

	assert.Empty(t, results)
	assert.Empty(t, up.calls)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Final)
	assert.Equal(t, 1.0, snaps[0].Ratio)
}

func TestReporterReachesOne(t *testing.T) {
	up := newFake()
	up.delay = 10 * time.Millisecond

	var snaps []Snapshot
	rep := &Reporter{Interval: 2 * time.Millisecond, Emit: func(s Snapshot) { snaps = append(snaps, s) }}
	d := &Dispatcher{Uploader: up, Threads: 2, Log: zerolog.Nop()}
	d.Run(context.Background(), NewQueue(jobs(6)), rep)

	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]
	assert.True(t, last.Final)
	assert.Equal(t, 1.0, last.Ratio)
	for i := 1; i < len(snaps); i++ {
		assert.GreaterOrEqual(t, snaps[i].Ratio, snaps[i-1].Ratio)
	}
}
