// Package records serves the mangas and chapters collections over a
// PocketBase-compatible REST API backed by sqlite and files on disk.
package records

import (
	"github.com/google/uuid"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindInt
	kindRelation
	kindFile
	kindFiles
)

type Field struct {
	Name     string
	Column   string
	Kind     fieldKind
	Required bool
	// Target names the collection a relation points to.
	Target string
}

func (f Field) isFile() bool { return f.Kind == kindFile || f.Kind == kindFiles }

// Collection describes one table exposed as a record collection.
type Collection struct {
	ID     string
	Name   string
	Fields []Field
}

func (c *Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// column resolves a wire name, including the system fields, to a column.
func (c *Collection) column(name string) (string, fieldKind, bool) {
	switch name {
	case "id", "created", "updated":
		return name, kindText, true
	}
	f, ok := c.Field(name)
	if !ok {
		return "", 0, false
	}
	return f.Column, f.Kind, true
}

var Mangas = &Collection{
	ID:   "mangas00000col1",
	Name: "mangas",
	Fields: []Field{
		{Name: "title", Column: "title", Kind: kindText, Required: true},
		{Name: "malId", Column: "mal_id", Kind: kindInt},
		{Name: "anilistId", Column: "anilist_id", Kind: kindInt},
		{Name: "description", Column: "description", Kind: kindText},
		{Name: "color", Column: "color", Kind: kindText},
		{Name: "startDate", Column: "start_date", Kind: kindText},
		{Name: "endDate", Column: "end_date", Kind: kindText},
		{Name: "cover", Column: "cover", Kind: kindFile},
		{Name: "banner", Column: "banner", Kind: kindFile},
	},
}

var Chapters = &Collection{
	ID:   "chapters000col2",
	Name: "chapters",
	Fields: []Field{
		{Name: "idx", Column: "idx", Kind: kindInt, Required: true},
		{Name: "name", Column: "name", Kind: kindText},
		{Name: "manga", Column: "manga", Kind: kindRelation, Required: true, Target: "mangas"},
		{Name: "cover", Column: "cover", Kind: kindFile},
		{Name: "pages", Column: "pages", Kind: kindFiles},
	},
}

var collections = map[string]*Collection{
	Mangas.Name:   Mangas,
	Chapters.Name: Chapters,
}

// Lookup finds a collection by name or id.
func Lookup(nameOrID string) (*Collection, bool) {
	if c, ok := collections[nameOrID]; ok {
		return c, true
	}
	for _, c := range collections {
		if c.ID == nameOrID {
			return c, true
		}
	}
	return nil, false
}

// Record holds one row keyed by wire field name. Values are string, int64 or
// []string.
type Record map[string]any

func (r Record) ID() string {
	s, _ := r["id"].(string)
	return s
}

func (r Record) Strings(name string) []string {
	v, _ := r[name].([]string)
	return v
}

func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewID returns a 15 character lowercase alphanumeric id.
func NewID() string {
	u := uuid.New()
	b := make([]byte, 15)
	for i := range b {
		b[i] = idAlphabet[int(u[i])%len(idAlphabet)]
	}
	return string(b)
}
