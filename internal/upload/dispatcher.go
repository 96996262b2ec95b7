package upload

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"mangasync/internal/reconcile"
	"mangasync/pkg/models"
)

// Uploader performs the chapter requests. *recordstore.Client implements it.
type Uploader interface {
	CreateChapter(ctx context.Context, mangaID string, ch models.LocalChapter) (models.Chapter, error)
	UpdateChapter(ctx context.Context, id string, ch models.LocalChapter) (models.Chapter, error)
}

// Dispatcher drains a queue with a fixed pool of workers.
type Dispatcher struct {
	Uploader Uploader
	Threads  int
	Log      zerolog.Logger
}

// Run starts min(Threads, queue length) workers and blocks until every job
// reached a terminal state. If rep is set it polls the queue from the calling
// goroutine meanwhile. Results are ordered like the queue.
func (d *Dispatcher) Run(ctx context.Context, q *Queue, rep *Reporter) []Result {
	results := make([]Result, q.Total())
	workers := min(max(d.Threads, 1), q.Len())

	done := make(chan struct{})
	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.worker(ctx, id, q, results)
		}(w)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	if rep != nil {
		rep.Watch(q, done)
	} else {
		<-done
	}
	return results
}

func (d *Dispatcher) worker(ctx context.Context, id int, q *Queue, results []Result) {
	log := d.Log.With().Int("worker", id).Logger()
	log.Debug().Msg("[upload] worker started")
	for {
		job, ok := q.Next()
		if !ok {
			log.Debug().Msg("[upload] worker finished")
			return
		}
		results[job.Seq] = d.execute(ctx, id, job)
	}
}

func (d *Dispatcher) execute(ctx context.Context, worker int, job Job) (res Result) {
	res = Result{Job: job, State: InFlight, Worker: worker}
	log := d.Log.With().Int("worker", worker).Uint("index", job.Chapter.Index).Str("op", job.op()).Logger()

	defer func() {
		if r := recover(); r != nil {
			res.State = Failed
			res.Err = &JobError{Index: job.Chapter.Index, Op: job.op(), Kind: KindPanic, Err: fmt.Errorf("panic: %v", r)}
			log.Error().Err(res.Err).Msg("[upload] chapter failed")
		}
	}()

	var (
		rec models.Chapter
		err error
	)
	switch job.Action {
	case reconcile.Update:
		rec, err = d.Uploader.UpdateChapter(ctx, job.RemoteID, job.Chapter)
	default:
		rec, err = d.Uploader.CreateChapter(ctx, job.MangaID, job.Chapter)
	}

	if err != nil {
		res.State = Failed
		res.Err = &JobError{Index: job.Chapter.Index, Op: job.op(), Kind: kindOf(err), Err: err}
		log.Error().Err(err).Str("kind", res.Err.Kind.String()).Msg("[upload] chapter failed")
		return res
	}

	res.State = Succeeded
	res.Record = rec
	log.Info().Str("id", rec.ID).Int("pages", len(job.Chapter.Pages)).Msg("[upload] chapter uploaded")
	return res
}
