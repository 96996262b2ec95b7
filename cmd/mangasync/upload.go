package main

import (
	"context"
	"flag"
	"time"

	"mangasync/internal/reconcile"
	"mangasync/internal/upload"
	"mangasync/pkg/config"
)

func (a *app) upload(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	threads := fs.Int("threads", 0, "concurrent chapter uploads (default from config)")
	only := fs.String("manga", "", "only upload this manga directory")
	force := fs.Bool("force", false, "re-upload chapters that already look in sync")
	poll := fs.Duration("poll", 0, "progress poll interval (default from config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	pos, err := positional(fs.Args(), 1, "dir", "endpoint")
	if err != nil {
		a.log.Error().Err(err).Msg("upload")
		return 2
	}
	if !a.finish(config.Flags{Endpoint: pos[1], Threads: *threads, Force: *force, PollInterval: *poll}) {
		return 2
	}

	store, err := a.store(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("upload")
		return 1
	}

	r := &upload.Runner{
		Store:        store,
		Metadata:     a.catalog(),
		Threads:      a.cfg.Upload.Threads,
		Force:        a.cfg.Upload.Force,
		PollInterval: a.cfg.Upload.PollInterval,
		Log:          a.log,
		Progress:     a.progress,
	}

	start := time.Now()
	sums, err := r.RunAll(ctx, pos[0], *only)
	if err != nil {
		a.log.Error().Err(err).Msg("upload")
		return 1
	}

	code := 0
	for _, s := range sums {
		a.printSummary(s)
		if s.Err != nil {
			code = 1
		}
	}
	a.out.Fprintf(a.stdout, "%d manga processed in %v\n", len(sums), time.Since(start).Round(time.Millisecond))
	return code
}

func (a *app) progress(manga string, s upload.Snapshot) {
	format := "\r%s: %d/%d chapters dispatched (%.0f%%)"
	if s.Final {
		format += "\n"
	}
	a.out.Fprintf(a.stderr, format, manga, s.Done, s.Total, s.Ratio*100)
}

func (a *app) printSummary(s upload.Summary) {
	if s.Err != nil {
		a.out.Fprintf(a.stdout, "%s: aborted: %v\n", s.Manga, s.Err)
		return
	}
	a.out.Fprintf(a.stdout, "%s: %d created, %d updated, %d in sync, %d failed\n",
		s.Manga, s.Created, s.Updated, s.InSync, s.Failed)
	for _, f := range s.Failures {
		a.out.Fprintf(a.stdout, "  %v\n", f)
	}
}

func (a *app) plan(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	only := fs.String("manga", "", "only plan this manga directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	pos, err := positional(fs.Args(), 1, "dir", "endpoint")
	if err != nil {
		a.log.Error().Err(err).Msg("plan")
		return 2
	}
	if !a.finish(config.Flags{Endpoint: pos[1]}) {
		return 2
	}

	store, err := a.store(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("plan")
		return 1
	}
	dirs, err := upload.MangaDirs(pos[0], *only)
	if err != nil {
		a.log.Error().Err(err).Msg("plan")
		return 1
	}

	r := &upload.Runner{Store: store, Metadata: a.catalog(), Log: a.log}
	code := 0
	for _, dir := range dirs {
		prep, err := r.Plan(ctx, dir)
		if err != nil {
			a.out.Fprintf(a.stdout, "%s: aborted: %v\n", prep.Name, err)
			code = 1
			continue
		}
		a.printPlan(prep)
	}
	return code
}

func (a *app) printPlan(prep upload.Prepared) {
	id := prep.Manga.ID
	if id == "" {
		id = "(new)"
	}
	creates, updates, inSync := prep.Plan.Counts()
	a.out.Fprintf(a.stdout, "%s [%s]: %d to create, %d to update, %d in sync\n", prep.Name, id, creates, updates-inSync, inSync)
	for _, e := range prep.Plan.Entries {
		switch {
		case e.Action == reconcile.Create:
			a.out.Fprintf(a.stdout, "  create %5d  %-30s %d pages\n", e.Chapter.Index, e.Chapter.Name, len(e.Chapter.Pages))
		case e.InSync:
			a.out.Fprintf(a.stdout, "  ok     %5d  %-30s %s\n", e.Chapter.Index, e.Chapter.Name, e.Remote.ID)
		default:
			a.out.Fprintf(a.stdout, "  update %5d  %-30s %s (%d -> %d pages)\n",
				e.Chapter.Index, e.Chapter.Name, e.Remote.ID, len(e.Remote.Pages), len(e.Chapter.Pages))
		}
	}
	for _, w := range prep.Plan.Warnings {
		a.out.Fprintf(a.stdout, "  warning: %s\n", w)
	}
}
