package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangasync/internal/records"
	"mangasync/internal/upload"
	"mangasync/pkg/database"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func newRecordServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	db, err := database.Open(database.Config{Path: filepath.Join(dir, database.FileName)})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	h := &records.Handler{
		Repo:    records.NewRepo(db),
		Storage: &records.Storage{Root: filepath.Join(dir, "storage")},
		Log:     zerolog.Nop(),
	}
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// library lays out one manga with cached metadata and two chapters.
func library(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	m := filepath.Join(root, "Foo")
	writeFile(t, filepath.Join(m, "metadata.json"), []byte(`{"id":42,"idMal":7,"title":{"romaji":"Foo"}}`))
	writeFile(t, filepath.Join(m, "chapters", "1", "1.png"), pngBytes)
	writeFile(t, filepath.Join(m, "chapters", "1", "2.png"), pngBytes)
	writeFile(t, filepath.Join(m, "chapters", "2", "1.png"), pngBytes)
	return root
}

func writeConfig(t *testing.T, endpoint string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mangasync.yml")
	writeFile(t, path, []byte("upload:\n  endpoint: "+endpoint+"\n  threads: 2\n  poll_interval: 10ms\n"))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String()
}

func TestUploadThenPlan(t *testing.T) {
	srv := newRecordServer(t)
	cfg := writeConfig(t, srv.URL)
	root := library(t)

	code, out := runCLI(t, "-config", cfg, "upload", root)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Foo: 2 created, 0 updated, 0 in sync, 0 failed")

	code, out = runCLI(t, "-config", cfg, "plan", root)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "0 to create, 0 to update, 2 in sync")

	code, out = runCLI(t, "-config", cfg, "upload", root)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Foo: 0 created, 0 updated, 2 in sync, 0 failed")

	code, out = runCLI(t, "-config", cfg, "list")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, `"anilistId": 42`)
}

func TestUploadAbortedMangaExitsNonZero(t *testing.T) {
	srv := newRecordServer(t)
	cfg := writeConfig(t, srv.URL)
	root := library(t)
	writeFile(t, filepath.Join(root, "Bar", "chapters", "x", "1.png"), pngBytes)

	code, out := runCLI(t, "-config", cfg, "upload", root)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Bar: aborted")
	assert.Contains(t, out, "Foo: 2 created")
}

func TestUploadEndpointArgumentOverridesConfig(t *testing.T) {
	srv := newRecordServer(t)
	cfg := writeConfig(t, "http://127.0.0.1:1")
	root := library(t)

	code, out := runCLI(t, "-config", cfg, "upload", "-manga", "Foo", root, srv.URL)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Foo: 2 created")
}

func TestInitWritesConfigOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")

	code, out := runCLI(t, "-config", path, "init")
	require.Equal(t, 0, code)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	code, _ = runCLI(t, "-config", path, "init")
	assert.Equal(t, 1, code)
}

func TestUsageErrors(t *testing.T) {
	code, _ := runCLI(t)
	assert.Equal(t, 2, code)

	code, _ = runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)

	cfg := writeConfig(t, "http://127.0.0.1:1")
	code, _ = runCLI(t, "-config", cfg, "upload")
	assert.Equal(t, 2, code)
}

func TestLogsAndProgressShareStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr, true, true)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			a.log.Info().Int("index", i).Msg("[upload] chapter uploaded")
		}(i)
		go func() {
			defer wg.Done()
			a.progress("Foo", upload.Snapshot{Total: n, Done: 1, Ratio: 0.02, Final: true})
		}()
	}
	wg.Wait()

	out := stderr.String()
	assert.Equal(t, n, strings.Count(out, `"message":"[upload] chapter uploaded"`))
	assert.Equal(t, n, strings.Count(out, "Foo: 1/50 chapters dispatched (2%)\n"))
	assert.Equal(t, 2*n, strings.Count(out, "\n"))
}
