package recordstore

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"mangasync/pkg/models"
)

// GetChapters returns every chapter record of a manga, ordered by index.
// Any failure yields a *FetchError.
func (c *Client) GetChapters(ctx context.Context, mangaID string) ([]models.Chapter, error) {
	q := url.Values{}
	q.Set("sort", "idx")
	q.Set("filter", filterEq("manga", mangaID))

	items, err := listAll[models.Chapter](ctx, c, "get chapters", ChapterCollection, q)
	if err != nil {
		fe := &FetchError{MangaID: mangaID, Err: err}
		var pe *pageError
		if errors.As(err, &pe) {
			fe.Page, fe.Err = pe.page, pe.err
		}
		return nil, fe
	}
	return items, nil
}

func chapterForm(ch models.LocalChapter) *form {
	f := &form{}
	f.field("idx", strconv.FormatUint(uint64(ch.Index), 10)).field("name", ch.Name)
	return f
}

func attachPages(f *form, ch models.LocalChapter) *form {
	f.file("cover", ch.Cover())
	for _, p := range ch.Pages {
		f.file("pages", p)
	}
	return f
}

// CreateChapter uploads a new chapter record for mangaID with the first page
// as cover and every page in order.
func (c *Client) CreateChapter(ctx context.Context, mangaID string, ch models.LocalChapter) (models.Chapter, error) {
	f := chapterForm(ch)
	f.field("manga", mangaID)
	attachPages(f, ch)

	var out models.Chapter
	err := c.sendForm(ctx, "create chapter", http.MethodPost, c.recordsURL(ChapterCollection, nil), f, &out)
	return out, err
}

// UpdateChapter replaces the pages of an existing chapter record. The pages
// field is additive on the backend, so it is cleared first.
func (c *Client) UpdateChapter(ctx context.Context, id string, ch models.LocalChapter) (models.Chapter, error) {
	f := attachPages(&form{}, ch)
	f.fields = append(f.fields, [2]string{"name", ch.Name})
	if err := f.check("update chapter"); err != nil {
		return models.Chapter{}, err
	}

	reset := map[string]any{"pages": nil}
	if err := c.doJSON(ctx, "clear chapter pages", http.MethodPatch, c.recordURL(ChapterCollection, id), reset, nil); err != nil {
		return models.Chapter{}, err
	}

	var out models.Chapter
	body, contentType := f.stream()
	err := c.do(ctx, "update chapter", http.MethodPatch, c.recordURL(ChapterCollection, id), body, contentType, &out)
	return out, err
}
