package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("record not found")

const (
	DefaultPerPage = 30
	MaxPerPage     = 500
)

// timeLayout matches the timestamps PocketBase emits.
const timeLayout = "2006-01-02 15:04:05.000Z"

type ListQuery struct {
	Filter  string
	Sort    string
	Page    int
	PerPage int
}

func (q *ListQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
}

type Page struct {
	Items      []Record `json:"items"`
	Page       int      `json:"page"`
	PerPage    int      `json:"perPage"`
	TotalItems int      `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
}

type Repo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, now: time.Now}
}

func columns(col *Collection) []string {
	cols := []string{"id", "created", "updated"}
	for _, f := range col.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

func (r *Repo) List(ctx context.Context, col *Collection, q ListQuery) (Page, error) {
	q.normalize()

	where, args, err := buildFilter(col, q.Filter)
	if err != nil {
		return Page{}, err
	}
	order, err := buildSort(col, q.Sort)
	if err != nil {
		return Page{}, err
	}
	if where != "" {
		where = " WHERE " + where
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+col.Name+where, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count %s: %w", col.Name, err)
	}

	query := "SELECT " + strings.Join(columns(col), ", ") + " FROM " + col.Name + where +
		" ORDER BY " + order + " LIMIT ? OFFSET ?"
	rows, err := r.DB.QueryContext(ctx, query, append(args, q.PerPage, (q.Page-1)*q.PerPage)...)
	if err != nil {
		return Page{}, fmt.Errorf("list %s: %w", col.Name, err)
	}
	defer rows.Close()

	items := []Record{}
	for rows.Next() {
		rec, err := scanRecord(col, rows)
		if err != nil {
			return Page{}, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("list %s: %w", col.Name, err)
	}

	return Page{
		Items:      items,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalItems: total,
		TotalPages: (total + q.PerPage - 1) / q.PerPage,
	}, nil
}

func (r *Repo) Get(ctx context.Context, col *Collection, id string) (Record, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+strings.Join(columns(col), ", ")+" FROM "+col.Name+" WHERE id = ?", id)
	rec, err := scanRecord(col, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(col *Collection, s scanner) (Record, error) {
	var id, created, updated string
	dest := []any{&id, &created, &updated}
	vals := make([]any, len(col.Fields))
	for i, f := range col.Fields {
		switch f.Kind {
		case kindInt:
			var n sql.NullInt64
			vals[i] = &n
		default:
			var s sql.NullString
			vals[i] = &s
		}
		dest = append(dest, vals[i])
	}
	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan %s: %w", col.Name, err)
	}

	rec := Record{
		"id":             id,
		"created":        created,
		"updated":        updated,
		"collectionId":   col.ID,
		"collectionName": col.Name,
	}
	for i, f := range col.Fields {
		switch v := vals[i].(type) {
		case *sql.NullInt64:
			rec[f.Name] = v.Int64
		case *sql.NullString:
			if f.Kind == kindFiles {
				pages := []string{}
				if v.String != "" {
					if err := json.Unmarshal([]byte(v.String), &pages); err != nil {
						return nil, fmt.Errorf("decode %s.%s: %w", col.Name, f.Name, err)
					}
				}
				rec[f.Name] = pages
			} else {
				rec[f.Name] = v.String
			}
		}
	}
	return rec, nil
}

func dbValue(f Field, v any) (any, error) {
	if f.Kind == kindFiles {
		list, _ := v.([]string)
		if list == nil {
			list = []string{}
		}
		b, err := json.Marshal(list)
		return string(b), err
	}
	if v == nil {
		if f.Kind == kindInt {
			return int64(0), nil
		}
		return "", nil
	}
	return v, nil
}

// Insert stores rec, assigning id and timestamps when missing.
func (r *Repo) Insert(ctx context.Context, col *Collection, rec Record) (Record, error) {
	now := r.now().UTC().Format(timeLayout)
	if rec.ID() == "" {
		rec["id"] = NewID()
	}
	rec["created"], rec["updated"] = now, now

	cols := columns(col)
	args := []any{rec["id"], now, now}
	for _, f := range col.Fields {
		v, err := dbValue(f, rec[f.Name])
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO "+col.Name+" ("+strings.Join(cols, ", ")+") VALUES ("+marks+")", args...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", col.Name, err)
	}
	return r.Get(ctx, col, rec.ID())
}

// Update writes the fields present in changes and bumps updated.
func (r *Repo) Update(ctx context.Context, col *Collection, id string, changes Record) (Record, error) {
	sets := []string{"updated = ?"}
	args := []any{r.now().UTC().Format(timeLayout)}
	for _, f := range col.Fields {
		v, ok := changes[f.Name]
		if !ok {
			continue
		}
		dv, err := dbValue(f, v)
		if err != nil {
			return nil, err
		}
		sets = append(sets, f.Column+" = ?")
		args = append(args, dv)
	}
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, "UPDATE "+col.Name+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", col.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, col, id)
}

func (r *Repo) Delete(ctx context.Context, col *Collection, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM "+col.Name+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", col.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ChildIDs returns the ids of chapters pointing at a manga, used to clean up
// their files when the manga goes away.
func (r *Repo) ChildIDs(ctx context.Context, mangaID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id FROM chapters WHERE manga = ?", mangaID)
	if err != nil {
		return nil, fmt.Errorf("chapter ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
