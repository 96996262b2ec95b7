package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mangasync/internal/catalog"
	"mangasync/internal/recordstore"
	"mangasync/pkg/config"
)

// app carries what every subcommand needs.
type app struct {
	cfgPath string
	cfg     *config.Config
	log     zerolog.Logger
	out     *message.Printer
	http    *http.Client
	stdout  io.Writer
	stderr  io.Writer
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("mangasync", flag.ContinueOnError)
	global.SetOutput(stderr)
	cfgPath := global.String("config", "", "config file (default ~/"+config.FileName+")")
	verbose := global.Bool("v", false, "debug logging")
	jsonLogs := global.Bool("json", false, "log JSON lines instead of console output")
	global.Usage = func() { printUsage(stderr) }
	if err := global.Parse(argv); err != nil {
		return 2
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	a := newApp(stdout, stderr, *verbose, *jsonLogs)
	a.cfgPath = *cfgPath

	cmd, rest := args[0], args[1:]
	if cmd == "init" {
		return a.initConfig()
	}

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		a.log.Error().Err(err).Msg("load config")
		return 2
	}
	a.cfg = cfg

	switch cmd {
	case "upload":
		return a.upload(ctx, rest)
	case "plan":
		return a.plan(ctx, rest)
	case "metadata":
		return a.metadata(ctx, rest)
	case "search":
		return a.search(ctx, rest)
	case "list":
		return a.list(ctx, rest)
	default:
		printUsage(stderr)
		return 2
	}
}

// newApp wires the output streams. Workers log while the reporter prints
// progress, so stderr is shared behind a lock.
func newApp(stdout, stderr io.Writer, verbose, jsonLines bool) *app {
	stderr = zerolog.SyncWriter(stderr)
	return &app{
		log:    newLogger(stderr, verbose, jsonLines),
		out:    message.NewPrinter(language.English),
		http:   &http.Client{},
		stdout: stdout,
		stderr: stderr,
	}
}

func newLogger(w io.Writer, verbose, jsonLines bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if !jsonLines {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: mangasync [-config PATH] [-v] [-json] <command> [args]

commands:
  upload   [-threads N] [-manga NAME] [-force] [-poll DUR] <dir> [endpoint]
  plan     [-manga NAME] <dir> [endpoint]
  metadata [-manga NAME] <dir>
  search   <query>
  list     [endpoint]
  init     write the default config file
`)
}

func (a *app) initConfig() int {
	path := a.cfgPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			a.log.Error().Err(err).Msg("init")
			return 1
		}
	}
	if err := config.CreateDefault(path); err != nil {
		a.log.Error().Err(err).Msg("init")
		return 1
	}
	a.out.Fprintf(a.stdout, "Created default config file at: %s\n", path)
	return 0
}

// finish applies flag overrides and validates the result.
func (a *app) finish(f config.Flags) bool {
	a.cfg.ApplyFlags(f)
	if err := a.cfg.Validate(); err != nil {
		a.log.Error().Err(err).Msg("invalid configuration")
		return false
	}
	return true
}

// store returns a record store client, signed in when credentials are set.
func (a *app) store(ctx context.Context) (*recordstore.Client, error) {
	c := recordstore.New(a.cfg.Upload.Endpoint, recordstore.WithHTTPClient(a.http), recordstore.WithLogger(a.log))
	a.log.Debug().Str("endpoint", c.Endpoint()).Msg("[recordstore] using record store")
	if a.cfg.Upload.Identity == "" {
		return c, nil
	}
	if _, err := c.AuthWithPassword(ctx, a.cfg.Upload.Identity, a.cfg.Upload.Password); err != nil {
		return nil, fmt.Errorf("sign in as %s: %w", a.cfg.Upload.Identity, err)
	}
	a.log.Debug().Str("identity", a.cfg.Upload.Identity).Msg("[recordstore] signed in")
	return c, nil
}

func (a *app) catalog() *catalog.Client {
	return catalog.NewClient(a.cfg.Catalog.Endpoint, a.log)
}

func (a *app) printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(a.stdout, string(b))
}

// positional splits "<dir> [endpoint]" style arguments.
func positional(args []string, required int, names ...string) ([]string, error) {
	if len(args) < required || len(args) > len(names) {
		return nil, fmt.Errorf("expected %d to %d arguments (%v), got %d", required, len(names), names, len(args))
	}
	out := make([]string, len(names))
	copy(out, args)
	return out, nil
}
