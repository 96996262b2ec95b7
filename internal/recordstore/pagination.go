package recordstore

import (
	"context"
	"net/http"
	"net/url"

	"mangasync/pkg/models"
)

// pageError carries the page number a listing stopped at.
type pageError struct {
	page int
	err  error
}

func (e *pageError) Error() string { return e.err.Error() }
func (e *pageError) Unwrap() error { return e.err }

// listAll reads page 1 of a collection and, when the server reports more,
// pages 2..totalPages in order. A failure on any page discards everything
// read so far.
func listAll[T any](ctx context.Context, c *Client, op, collection string, query url.Values) ([]T, error) {
	var items []T
	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", itoa(page))
		q.Set("perPage", itoa(c.perPage))

		var res models.ListResult[T]
		if err := c.doJSON(ctx, op, http.MethodGet, c.recordsURL(collection, q), nil, &res); err != nil {
			return nil, &pageError{page: page, err: err}
		}
		if page == 1 {
			totalPages = res.TotalPages
			if items == nil {
				items = make([]T, 0, max(res.TotalItems, len(res.Items)))
			}
		}
		items = append(items, res.Items...)

		c.log.Debug().
			Str("collection", collection).
			Int("page", page).
			Int("total_pages", totalPages).
			Int("items", len(res.Items)).
			Msg("[fetch] page read")
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
