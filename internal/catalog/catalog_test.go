package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func catalogServer(t *testing.T, media map[string]any) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngBytes)
			return
		case "/banner":
			_, _ = w.Write(pngBytes)
			return
		}

		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("X-RateLimit-Remaining", "89")
		w.Header().Set("Content-Type", "application/json")

		if q, ok := req.Variables["query"]; ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"Page": map[string]any{
				"media": []map[string]any{{"id": 1, "idMal": 2, "title": map[string]any{"romaji": q}}},
			}}})
			return
		}
		if media == nil {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"Media": nil}, "errors": []map[string]any{{"message": "Not Found.", "status": 404}}})
			return
		}
		m := map[string]any{}
		for k, v := range media {
			m[k] = v
		}
		m["coverImage"] = map[string]any{"large": srv.URL + "/cover.png", "color": "#e4a15d"}
		m["bannerImage"] = srv.URL + "/banner"
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"Media": m}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMedia(t *testing.T) {
	srv := catalogServer(t, map[string]any{
		"id":        30002,
		"idMal":     2,
		"title":     map[string]any{"romaji": "Berserk", "english": "Berserk"},
		"startDate": map[string]any{"year": 1989, "month": 8, "day": 25},
	})
	c := NewClient(srv.URL, zerolog.Nop())

	meta, err := c.FetchMedia(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 30002, meta.ID)
	assert.Equal(t, 2, meta.MalIDOrZero())
	assert.Equal(t, "Berserk", meta.DisplayTitle())
	assert.Equal(t, "1989-08-25", meta.StartDate.String())
	assert.Equal(t, "", meta.EndDate.String())
	assert.Equal(t, "#e4a15d", meta.CoverColor())
}

func TestFetchMediaNotFound(t *testing.T) {
	srv := catalogServer(t, nil)
	_, err := NewClient(srv.URL, zerolog.Nop()).FetchMedia(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGraphQLErrorsWithStatusOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":   map[string]any{"Media": map[string]any{"id": 30002, "title": map[string]any{"romaji": "Berserk"}}},
			"errors": []map[string]any{{"message": "Cannot query field \"foo\"", "status": 400}},
		})
	}))
	defer srv.Close()
	c := NewClient(srv.URL, zerolog.Nop())

	meta, err := c.FetchMedia(context.Background(), 2)
	require.Error(t, err)
	assert.Nil(t, meta)
	assert.Contains(t, err.Error(), `Cannot query field "foo"`)
	assert.NotErrorIs(t, err, ErrNotFound)

	res, err := c.Search(context.Background(), "berserk")
	require.Error(t, err)
	assert.Empty(t, res)
}

func TestSearch(t *testing.T) {
	srv := catalogServer(t, nil)
	res, err := NewClient(srv.URL, zerolog.Nop()).Search(context.Background(), "vinland")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "vinland", res[0].Title.Romaji)
	require.NotNil(t, res[0].MalID)
	assert.Equal(t, 2, *res[0].MalID)
}

func TestEnsureFetchesOnceAndDownloadsImages(t *testing.T) {
	srv := catalogServer(t, map[string]any{"id": 30002, "idMal": 2, "title": map[string]any{"romaji": "Berserk"}})
	c := NewClient(srv.URL, zerolog.Nop())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MangaFile), []byte(`{"malId": 2}`), 0o644))

	meta, err := c.Ensure(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 30002, meta.ID)
	assert.FileExists(t, filepath.Join(dir, MetadataFile))
	assert.Equal(t, filepath.Join(dir, ImagesDir, "cover_large.png"), CoverImage(dir))
	assert.Equal(t, filepath.Join(dir, ImagesDir, "banner.png"), FindImage(dir, "banner"))

	// cached copy wins even when the catalog is gone
	srv.Close()
	again, err := c.Ensure(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, again.ID)
}

func TestEnsureWithoutRef(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", zerolog.Nop())
	_, err := c.Ensure(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), MangaFile)
}

func TestImageExt(t *testing.T) {
	assert.Equal(t, ".jpeg", imageExt("image/jpeg", nil))
	assert.Equal(t, ".png", imageExt("image/png; charset=binary", nil))
	assert.Equal(t, ".png", imageExt("application/octet-stream", pngBytes))
}
