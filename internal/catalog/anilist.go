// Package catalog talks to the AniList GraphQL API and manages the metadata
// and images cached next to a manga's chapters.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mangasync/pkg/models"
)

const DefaultEndpoint = "https://graphql.anilist.co/"

// ErrNotFound is returned when the catalog has no media for an id.
var ErrNotFound = errors.New("catalog: media not found")

const mediaQuery = `
query ($id: Int) {
  Media(idMal: $id, type: MANGA) {
    id
    idMal
    description(asHtml: true)
    type
    format
    status(version: 2)
    genres
    title { romaji english native }
    volumes
    chapters
    coverImage { medium large extraLarge color }
    bannerImage
    startDate { year month day }
    endDate { year month day }
  }
}`

const searchQuery = `
query ($query: String) {
  Page(page: 1, perPage: 15) {
    media(search: $query, type: MANGA) {
      id
      idMal
      title { romaji english native }
    }
  }
}`

type Client struct {
	Endpoint string
	HTTP     *http.Client
	Log      zerolog.Logger
}

func NewClient(endpoint string, log zerolog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		Log:      log,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type gqlResponse[T any] struct {
	Data   T          `json:"data"`
	Errors []gqlError `json:"errors"`
}

// firstError reports the first GraphQL error, which AniList may send next to
// partial data with status 200.
func (r *gqlResponse[T]) firstError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	e := r.Errors[0]
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return fmt.Errorf("graphql: %s", e.Message)
}

// SearchResult is one hit of Search.
type SearchResult struct {
	ID    int                  `json:"id"`
	MalID *int                 `json:"idMal"`
	Title models.MetadataTitle `json:"title"`
}

// FetchMedia looks a manga up by its MyAnimeList id.
func (c *Client) FetchMedia(ctx context.Context, malID int) (*models.MangaMetadata, error) {
	var out gqlResponse[struct {
		Media *models.MangaMetadata `json:"Media"`
	}]
	err := c.post(ctx, gqlRequest{Query: mediaQuery, Variables: map[string]any{"id": malID}}, &out)
	if err != nil {
		return nil, fmt.Errorf("anilist: media %d: %w", malID, err)
	}
	if out.Data.Media == nil {
		return nil, fmt.Errorf("anilist: media %d: %w", malID, ErrNotFound)
	}
	return out.Data.Media, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var out gqlResponse[struct {
		Page struct {
			Media []SearchResult `json:"media"`
		} `json:"Page"`
	}]
	err := c.post(ctx, gqlRequest{Query: searchQuery, Variables: map[string]any{"query": query}}, &out)
	if err != nil {
		return nil, fmt.Errorf("anilist: search %q: %w", query, err)
	}
	return out.Data.Page.Media, nil
}

func (c *Client) post(ctx context.Context, body gqlRequest, out interface{ firstError() error }) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	c.Log.Debug().
		Str("limit", resp.Header.Get("X-RateLimit-Limit")).
		Str("remaining", resp.Header.Get("X-RateLimit-Remaining")).
		Msg("[catalog] rate limit")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	// AniList answers unknown ids with 404 and an errors array.
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return out.firstError()
}
