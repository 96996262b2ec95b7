package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mangasync/internal/catalog"
	"mangasync/internal/upload"
	"mangasync/pkg/config"
)

func (a *app) metadata(ctx context.Context, args []string) int {
	fset := flag.NewFlagSet("metadata", flag.ContinueOnError)
	fset.SetOutput(a.stderr)
	only := fset.String("manga", "", "only this manga directory")
	if err := fset.Parse(args); err != nil {
		return 2
	}
	pos, err := positional(fset.Args(), 1, "dir")
	if err != nil {
		a.log.Error().Err(err).Msg("metadata")
		return 2
	}
	if !a.finish(config.Flags{}) {
		return 2
	}

	dirs, err := upload.MangaDirs(pos[0], *only)
	if err != nil {
		a.log.Error().Err(err).Msg("metadata")
		return 1
	}

	cat := a.catalog()
	code := 0
	for _, dir := range dirs {
		name := filepath.Base(dir)
		if _, err := os.Stat(filepath.Join(dir, catalog.MangaFile)); errors.Is(err, fs.ErrNotExist) {
			a.log.Debug().Str("manga", name).Msg("[catalog] no manga.json, skipping")
			continue
		}
		meta, err := cat.Ensure(ctx, dir)
		if err != nil {
			a.out.Fprintf(a.stdout, "%s: %v\n", name, err)
			code = 1
			continue
		}
		a.out.Fprintf(a.stdout, "%s: %s (anilist %d, mal %d)\n", name, meta.DisplayTitle(), meta.ID, meta.MalIDOrZero())
	}
	return code
}

func (a *app) search(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printUsage(a.stderr)
		return 2
	}
	if !a.finish(config.Flags{}) {
		return 2
	}
	results, err := a.catalog().Search(ctx, strings.Join(args, " "))
	if err != nil {
		a.log.Error().Err(err).Msg("search")
		return 1
	}
	for _, r := range results {
		mal := 0
		if r.MalID != nil {
			mal = *r.MalID
		}
		english := ""
		if r.Title.English != nil {
			english = *r.Title.English
		}
		a.out.Fprintf(a.stdout, "%8d  mal %8d  %s", r.ID, mal, r.Title.Romaji)
		if english != "" && english != r.Title.Romaji {
			a.out.Fprintf(a.stdout, " / %s", english)
		}
		a.out.Fprintln(a.stdout)
	}
	return 0
}

func (a *app) list(ctx context.Context, args []string) int {
	pos, err := positional(args, 0, "endpoint")
	if err != nil {
		a.log.Error().Err(err).Msg("list")
		return 2
	}
	if !a.finish(config.Flags{Endpoint: pos[0]}) {
		return 2
	}
	store, err := a.store(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("list")
		return 1
	}
	all, err := store.GetAllManga(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("list")
		return 1
	}
	a.printJSON(all)
	a.out.Fprintf(a.stderr, "%d manga\n", len(all))
	return 0
}
