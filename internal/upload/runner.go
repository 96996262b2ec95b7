package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mangasync/internal/catalog"
	"mangasync/internal/reconcile"
	"mangasync/internal/recordstore"
	"mangasync/internal/scan"
	"mangasync/pkg/models"
)

// Store is the part of the record store a run needs.
type Store interface {
	Uploader
	GetManga(ctx context.Context, anilistID int) (models.Manga, error)
	CreateManga(ctx context.Context, in recordstore.MangaInput) (models.Manga, error)
	UpdateManga(ctx context.Context, id string, in recordstore.MangaInput) (models.Manga, error)
	GetChapters(ctx context.Context, mangaID string) ([]models.Chapter, error)
}

// MetadataSource yields the catalog record of a manga directory.
// *catalog.Client implements it.
type MetadataSource interface {
	Ensure(ctx context.Context, dir string) (*models.MangaMetadata, error)
}

type Runner struct {
	Store    Store
	Metadata MetadataSource
	Threads  int
	// Force re-uploads chapters whose remote record already looks current.
	Force        bool
	PollInterval time.Duration
	Log          zerolog.Logger
	// Progress receives queue snapshots of the manga being uploaded.
	Progress func(manga string, s Snapshot)
}

// Summary is the outcome of one manga. Err is set when the run aborted before
// any chapter was dispatched.
type Summary struct {
	Manga    string
	MangaID  string
	InSync   int
	Created  int
	Updated  int
	Failed   int
	Failures []*JobError
	Warnings []reconcile.Warning
	Err      error
}

// Prepared is everything known about a manga before chapters are sent.
type Prepared struct {
	Name     string
	Dir      string
	Manga    models.Manga
	Metadata *models.MangaMetadata
	Plan     reconcile.Plan
}

// RunAll runs every manga directory under root in name order. When only is
// set the other directories are skipped. The error is set only when root
// itself cannot be read or only names no directory.
func (r *Runner) RunAll(ctx context.Context, root, only string) ([]Summary, error) {
	dirs, err := MangaDirs(root, only)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(dirs))
	for _, dir := range dirs {
		out = append(out, r.RunManga(ctx, dir))
	}
	return out, nil
}

// MangaDirs lists the manga directories under root.
func MangaDirs(root, only string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if only != "" && e.Name() != only {
			continue
		}
		dirs = append(dirs, filepath.Join(root, e.Name()))
	}
	if only != "" && len(dirs) == 0 {
		return nil, fmt.Errorf("no manga directory %q under %s", only, root)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// RunManga scans, resolves, reconciles and uploads one manga directory.
func (r *Runner) RunManga(ctx context.Context, dir string) Summary {
	name := filepath.Base(dir)
	sum := Summary{Manga: name}
	log := r.Log.With().Str("manga", name).Logger()

	prep, err := r.prepare(ctx, dir, true)
	if err != nil {
		sum.Err = err
		log.Error().Err(err).Msg("[upload] manga aborted")
		return sum
	}
	sum.MangaID = prep.Manga.ID
	sum.Warnings = prep.Plan.Warnings
	for _, w := range prep.Plan.Warnings {
		log.Warn().Uint("index", w.Index).Str("kept", w.KeptID).Str("ignored", w.IgnoredID).Msg("[upload] duplicate remote chapter index")
	}

	pending := prep.Plan.Pending(r.Force)
	_, _, inSync := prep.Plan.Counts()
	if !r.Force {
		sum.InSync = inSync
	}

	q := NewQueue(JobsFromPlan(prep.Manga.ID, pending))
	log.Info().Int("jobs", q.Total()).Int("in_sync", sum.InSync).Int("threads", r.Threads).Msg("[upload] dispatching")

	var rep *Reporter
	if r.Progress != nil {
		rep = &Reporter{Interval: r.PollInterval, Emit: func(s Snapshot) { r.Progress(name, s) }}
	}
	d := &Dispatcher{Uploader: r.Store, Threads: r.Threads, Log: log}
	for _, res := range d.Run(ctx, q, rep) {
		switch {
		case res.State == Failed:
			sum.Failed++
			sum.Failures = append(sum.Failures, res.Err)
		case res.Job.Action == reconcile.Update:
			sum.Updated++
		default:
			sum.Created++
		}
	}

	log.Info().
		Int("created", sum.Created).
		Int("updated", sum.Updated).
		Int("in_sync", sum.InSync).
		Int("failed", sum.Failed).
		Msg("[upload] manga done")
	return sum
}

// Plan runs every step up to reconciliation without writing anything to the
// record store. A manga missing remotely plans every chapter as a create.
func (r *Runner) Plan(ctx context.Context, dir string) (Prepared, error) {
	return r.prepare(ctx, dir, false)
}

func (r *Runner) prepare(ctx context.Context, dir string, write bool) (Prepared, error) {
	prep := Prepared{Name: filepath.Base(dir), Dir: dir}

	local, err := scan.Chapters(filepath.Join(dir, catalog.ChaptersDir))
	if err != nil {
		return prep, err
	}

	meta, err := r.metadata(ctx, dir)
	if err != nil {
		return prep, fmt.Errorf("metadata: %w", err)
	}
	prep.Metadata = meta

	manga, err := r.resolveManga(ctx, dir, meta, write)
	if err != nil {
		return prep, fmt.Errorf("resolve manga: %w", err)
	}
	prep.Manga = manga

	var remote []models.Chapter
	if manga.ID != "" {
		remote, err = r.Store.GetChapters(ctx, manga.ID)
		if err != nil {
			return prep, err
		}
	}

	prep.Plan = reconcile.Reconcile(local, remote)
	return prep, nil
}

func (r *Runner) metadata(ctx context.Context, dir string) (*models.MangaMetadata, error) {
	if r.Metadata != nil {
		return r.Metadata.Ensure(ctx, dir)
	}
	return catalog.LoadMetadata(dir)
}

// resolveManga finds the manga record by catalog id, refreshing it from
// metadata, or creates it. With write unset a missing record yields a zero
// Manga.
func (r *Runner) resolveManga(ctx context.Context, dir string, meta *models.MangaMetadata, write bool) (models.Manga, error) {
	existing, err := r.Store.GetManga(ctx, meta.ID)
	switch {
	case err == nil && !write:
		return existing, nil
	case errors.Is(err, recordstore.ErrNoRecord) && !write:
		return models.Manga{}, nil
	case err != nil && !errors.Is(err, recordstore.ErrNoRecord):
		return models.Manga{}, err
	}

	in := MangaInputFrom(dir, meta)
	if err == nil {
		r.Log.Debug().Str("manga", filepath.Base(dir)).Str("id", existing.ID).Msg("[upload] updating manga record")
		return r.Store.UpdateManga(ctx, existing.ID, in)
	}
	r.Log.Info().Str("manga", filepath.Base(dir)).Int("anilist_id", meta.ID).Msg("[upload] creating manga record")
	return r.Store.CreateManga(ctx, in)
}

// MangaInputFrom builds the manga record fields from catalog metadata and the
// images cached in dir.
func MangaInputFrom(dir string, meta *models.MangaMetadata) recordstore.MangaInput {
	return recordstore.MangaInput{
		Title:       meta.DisplayTitle(),
		MalID:       meta.MalIDOrZero(),
		AnilistID:   meta.ID,
		Description: meta.Description,
		StartDate:   meta.StartDate.String(),
		EndDate:     meta.EndDate.String(),
		Color:       meta.CoverColor(),
		Cover:       catalog.CoverImage(dir),
		Banner:      catalog.FindImage(dir, "banner"),
	}
}
