// Package reconcile decides, per local chapter, whether the record store
// needs a new chapter record or an update of an existing one.
package reconcile

import (
	"fmt"

	"mangasync/pkg/models"
)

type Action int

const (
	Create Action = iota + 1
	Update
)

func (a Action) String() string {
	switch a {
	case Create:
		return "create"
	case Update:
		return "update"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Entry pairs a local chapter with the action it needs. Remote is set iff
// Action is Update.
type Entry struct {
	Action  Action
	Chapter models.LocalChapter
	Remote  *models.Chapter
	// InSync marks an update whose remote record already has the local name
	// and page count.
	InSync bool
}

// Warning reports several remote chapters sharing one index. The first one
// seen is used; the others are left alone.
type Warning struct {
	Index     uint
	KeptID    string
	IgnoredID string
}

func (w Warning) String() string {
	return fmt.Sprintf("duplicate remote index %d: using %s, ignoring %s", w.Index, w.KeptID, w.IgnoredID)
}

type Plan struct {
	Entries  []Entry
	Warnings []Warning
}

// Reconcile builds the plan for one manga. Entries follow the order of local,
// which the scanner returns ascending by index. Remote chapters with no local
// counterpart are never touched.
func Reconcile(local []models.LocalChapter, remote []models.Chapter) Plan {
	byIndex := make(map[uint]*models.Chapter, len(remote))
	var plan Plan
	for i := range remote {
		r := &remote[i]
		if kept, ok := byIndex[r.Index]; ok {
			plan.Warnings = append(plan.Warnings, Warning{Index: r.Index, KeptID: kept.ID, IgnoredID: r.ID})
			continue
		}
		byIndex[r.Index] = r
	}

	plan.Entries = make([]Entry, 0, len(local))
	for _, ch := range local {
		r, ok := byIndex[ch.Index]
		if !ok {
			plan.Entries = append(plan.Entries, Entry{Action: Create, Chapter: ch})
			continue
		}
		snapshot := *r
		snapshot.Pages = append([]string(nil), r.Pages...)
		plan.Entries = append(plan.Entries, Entry{
			Action:  Update,
			Chapter: ch,
			Remote:  &snapshot,
			InSync:  r.Name == ch.Name && len(r.Pages) == len(ch.Pages),
		})
	}
	return plan
}

// Counts tallies the plan.
func (p Plan) Counts() (creates, updates, inSync int) {
	for _, e := range p.Entries {
		switch {
		case e.Action == Create:
			creates++
		case e.InSync:
			inSync++
			updates++
		default:
			updates++
		}
	}
	return creates, updates, inSync
}

// Pending returns the entries that need a request. In-sync updates are
// dropped unless force is set.
func (p Plan) Pending(force bool) []Entry {
	out := make([]Entry, 0, len(p.Entries))
	for _, e := range p.Entries {
		if e.InSync && !force {
			continue
		}
		out = append(out, e)
	}
	return out
}
