package upload

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangasync/internal/reconcile"
	"mangasync/pkg/models"
)

func TestQueueOrderAndLen(t *testing.T) {
	q := NewQueue(jobs(3))
	assert.Equal(t, 3, q.Total())
	assert.Equal(t, 3, q.Len())

	for i := 0; i < 3; i++ {
		j, ok := q.Next()
		require.True(t, ok)
		assert.Equal(t, i, j.Seq)
		assert.Equal(t, uint(i+1), j.Chapter.Index)
		assert.Equal(t, 2-i, q.Len())
	}
	_, ok := q.Next()
	assert.False(t, ok)
	assert.Equal(t, 3, q.Total())
}

func TestQueueHandsOutEachJobOnce(t *testing.T) {
	q := NewQueue(jobs(500))
	var (
		mu   sync.Mutex
		seen = map[int]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, ok := q.Next()
				if !ok {
					return
				}
				mu.Lock()
				seen[j.Seq]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 500)
	for seq, n := range seen {
		assert.Equal(t, 1, n, "job %d", seq)
	}
	assert.Zero(t, q.Len())
}

func TestSnapshotRatio(t *testing.T) {
	q := NewQueue(jobs(4))
	assert.Equal(t, 0.0, snapshot(q).Ratio)
	q.Next()
	s := snapshot(q)
	assert.Equal(t, 1, s.Done)
	assert.Equal(t, 3, s.Remaining)
	assert.Equal(t, 0.25, s.Ratio)

	assert.Equal(t, 1.0, snapshot(NewQueue(nil)).Ratio)
}

func TestJobsFromPlan(t *testing.T) {
	plan := reconcile.Reconcile(
		[]models.LocalChapter{{Index: 1, Name: "a"}, {Index: 2, Name: "b"}},
		[]models.Chapter{{ID: "abc", Index: 1}},
	)
	js := JobsFromPlan("m1", plan.Entries)
	require.Len(t, js, 2)

	assert.Equal(t, reconcile.Update, js[0].Action)
	assert.Equal(t, "abc", js[0].RemoteID)
	assert.Equal(t, "update", js[0].op())

	assert.Equal(t, reconcile.Create, js[1].Action)
	assert.Empty(t, js[1].RemoteID)
	assert.Equal(t, "m1", js[1].MangaID)
	assert.Equal(t, "create", js[1].op())
}
