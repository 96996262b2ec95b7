package recordstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"mangasync/pkg/models"
)

// MangaInput is the writable part of a manga record. Cover and Banner are
// local file paths; an empty path leaves the remote file untouched.
type MangaInput struct {
	Title       string
	MalID       int
	AnilistID   int
	Description string
	StartDate   string
	EndDate     string
	Color       string
	Cover       string
	Banner      string
}

func (in MangaInput) form() *form {
	f := &form{}
	f.field("title", in.Title).
		field("malId", strconv.Itoa(in.MalID)).
		field("anilistId", strconv.Itoa(in.AnilistID)).
		field("description", in.Description).
		field("startDate", in.StartDate).
		field("endDate", in.EndDate).
		field("color", in.Color).
		file("cover", in.Cover).
		file("banner", in.Banner)
	return f
}

// GetManga looks a manga up by its catalog id. It returns ErrNoRecord when
// nothing matches and ErrWrongItemCount when the id is not unique.
func (c *Client) GetManga(ctx context.Context, anilistID int) (models.Manga, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("perPage", "2")
	q.Set("filter", filterEq("anilistId", strconv.Itoa(anilistID)))

	var res models.ListResult[models.Manga]
	if err := c.doJSON(ctx, "get manga", http.MethodGet, c.recordsURL(MangaCollection, q), nil, &res); err != nil {
		return models.Manga{}, err
	}
	switch {
	case len(res.Items) == 0:
		return models.Manga{}, fmt.Errorf("anilist id %d: %w", anilistID, ErrNoRecord)
	case len(res.Items) > 1 || res.TotalItems > 1:
		return models.Manga{}, fmt.Errorf("anilist id %d: %w", anilistID, ErrWrongItemCount)
	}
	return res.Items[0], nil
}

// GetAllManga lists every manga record, following pagination.
func (c *Client) GetAllManga(ctx context.Context) ([]models.Manga, error) {
	q := url.Values{}
	q.Set("sort", "title")
	items, err := listAll[models.Manga](ctx, c, "list manga", MangaCollection, q)
	if err != nil {
		var pe *pageError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("list manga: page %d: %w", pe.page, pe.err)
		}
		return nil, err
	}
	return items, nil
}

func (c *Client) CreateManga(ctx context.Context, in MangaInput) (models.Manga, error) {
	var out models.Manga
	err := c.sendForm(ctx, "create manga", http.MethodPost, c.recordsURL(MangaCollection, nil), in.form(), &out)
	return out, err
}

func (c *Client) UpdateManga(ctx context.Context, id string, in MangaInput) (models.Manga, error) {
	var out models.Manga
	err := c.sendForm(ctx, "update manga", http.MethodPatch, c.recordURL(MangaCollection, id), in.form(), &out)
	return out, err
}

func (c *Client) DeleteManga(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete manga", http.MethodDelete, c.recordURL(MangaCollection, id), nil, nil)
}

func (c *Client) sendForm(ctx context.Context, op, method, rawURL string, f *form, out any) error {
	if err := f.check(op); err != nil {
		return err
	}
	body, contentType := f.stream()
	return c.do(ctx, op, method, rawURL, body, contentType, out)
}
