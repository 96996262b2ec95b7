package upload

import (
	"fmt"

	"mangasync/internal/reconcile"
	"mangasync/internal/recordstore"
	"mangasync/pkg/models"
)

// Job is one chapter upload. It carries everything a worker needs and is
// never modified once queued.
type Job struct {
	Seq      int
	Action   reconcile.Action
	MangaID  string
	RemoteID string
	Chapter  models.LocalChapter
}

func (j Job) op() string {
	if j.Action == reconcile.Update {
		return "update"
	}
	return "create"
}

// JobsFromPlan turns plan entries into jobs for the given manga record.
func JobsFromPlan(mangaID string, entries []reconcile.Entry) []Job {
	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		j := Job{Action: e.Action, MangaID: mangaID, Chapter: e.Chapter}
		if e.Remote != nil {
			j.RemoteID = e.Remote.ID
		}
		jobs = append(jobs, j)
	}
	return jobs
}

type State int

const (
	Pending State = iota
	InFlight
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in-flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type ErrorKind int

const (
	KindAttach ErrorKind = iota + 1
	KindTransport
	KindStatus
	KindDecode
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindAttach:
		return "attach"
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// JobError records why a single chapter upload failed. It never stops other
// jobs.
type JobError struct {
	Index uint
	Op    string
	Kind  ErrorKind
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("chapter %d: %s: %s: %v", e.Index, e.Op, e.Kind, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

func kindOf(err error) ErrorKind {
	switch recordstore.KindOf(err) {
	case recordstore.KindAttach:
		return KindAttach
	case recordstore.KindStatus:
		return KindStatus
	case recordstore.KindDecode:
		return KindDecode
	default:
		return KindTransport
	}
}

// Result is the terminal state of one job.
type Result struct {
	Job    Job
	State  State
	Worker int
	Record models.Chapter
	Err    *JobError
}
