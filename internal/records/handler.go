package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mangasync/internal/events"
)

const maxMemory = 32 << 20

type Handler struct {
	Repo    *Repo
	Storage *Storage
	// Events, when set, receives every create, update and delete.
	Events *events.Hub
	// Guard, when set, runs in front of every write route.
	Guard gin.HandlerFunc
	Log   zerolog.Logger
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/collections/:collection/records", h.list)
	rg.GET("/collections/:collection/records/:id", h.view)
	rg.GET("/files/:collection/:id/:filename", h.file)

	write := rg.Group("/collections/:collection/records")
	if h.Guard != nil {
		write.Use(h.Guard)
	}
	write.POST("", h.create)
	write.PATCH("/:id", h.update)
	write.DELETE("/:id", h.delete)
}

func apiError(c *gin.Context, status int, msg string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, gin.H{"code": status, "message": msg, "data": data})
}

func notFound(c *gin.Context) {
	apiError(c, http.StatusNotFound, "The requested resource wasn't found.", nil)
}

func fieldError(code, msg string) gin.H {
	return gin.H{"code": code, "message": msg}
}

func (h *Handler) collection(c *gin.Context) (*Collection, bool) {
	col, ok := Lookup(c.Param("collection"))
	if !ok {
		notFound(c)
	}
	return col, ok
}

func (h *Handler) list(c *gin.Context) {
	col, ok := h.collection(c)
	if !ok {
		return
	}
	q := ListQuery{
		Filter:  c.Query("filter"),
		Sort:    c.Query("sort"),
		Page:    parseInt(c.Query("page"), 1),
		PerPage: parseInt(c.Query("perPage"), DefaultPerPage),
	}

	page, err := h.Repo.List(c.Request.Context(), col, q)
	if errors.Is(err, ErrBadFilter) {
		apiError(c, http.StatusBadRequest, "Something went wrong while processing your request. "+err.Error(), nil)
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("collection", col.Name).Msg("[records] list")
		apiError(c, http.StatusInternalServerError, "Failed to load records.", nil)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) view(c *gin.Context) {
	col, ok := h.collection(c)
	if !ok {
		return
	}
	rec, err := h.Repo.Get(c.Request.Context(), col, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		notFound(c)
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("[records] view")
		apiError(c, http.StatusInternalServerError, "Failed to load record.", nil)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) file(c *gin.Context) {
	col, ok := h.collection(c)
	if !ok {
		return
	}
	path, err := h.Storage.Path(col.Name, c.Param("id"), c.Param("filename"))
	if err != nil {
		notFound(c)
		return
	}
	if _, err := os.Stat(path); err != nil {
		notFound(c)
		return
	}
	c.File(path)
}

// input is a request body reduced to plain values and uploaded files. present
// records which fields appeared at all, so a JSON null can clear a field.
type input struct {
	values  map[string]any
	present map[string]bool
	files   map[string][]*multipart.FileHeader
}

func readInput(c *gin.Context) (input, error) {
	in := input{values: map[string]any{}, present: map[string]bool{}, files: map[string][]*multipart.FileHeader{}}
	ct := c.ContentType()
	switch {
	case ct == "application/json":
		if err := json.NewDecoder(c.Request.Body).Decode(&in.values); err != nil {
			return in, fmt.Errorf("decode json: %w", err)
		}
	case ct == "multipart/form-data":
		if err := c.Request.ParseMultipartForm(maxMemory); err != nil {
			return in, fmt.Errorf("parse multipart: %w", err)
		}
		for k, v := range c.Request.MultipartForm.Value {
			if len(v) > 0 {
				in.values[k] = v[len(v)-1]
			}
		}
		for k, v := range c.Request.MultipartForm.File {
			in.files[k] = v
			in.present[k] = true
		}
	default:
		if err := c.Request.ParseForm(); err != nil {
			return in, fmt.Errorf("parse form: %w", err)
		}
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				in.values[k] = v[len(v)-1]
			}
		}
	}
	for k := range in.values {
		in.present[k] = true
	}
	return in, nil
}

// apply validates the plain fields of in and writes them to changes. Files
// are handled separately once validation passed.
func (h *Handler) apply(c *gin.Context, col *Collection, in input, changes Record, creating bool) gin.H {
	errs := gin.H{}
	for _, f := range col.Fields {
		if f.isFile() || !in.present[f.Name] {
			continue
		}
		v := in.values[f.Name]
		switch f.Kind {
		case kindInt:
			n, err := toInt(v)
			if err != nil {
				errs[f.Name] = fieldError("validation_invalid_number", "Must be a valid number.")
				continue
			}
			changes[f.Name] = n
		case kindRelation:
			id := toString(v)
			if id != "" {
				target, _ := Lookup(f.Target)
				if _, err := h.Repo.Get(c.Request.Context(), target, id); err != nil {
					errs[f.Name] = fieldError("validation_missing_rel_records", "Failed to find all relation records with the provided ids.")
					continue
				}
			}
			changes[f.Name] = id
		default:
			changes[f.Name] = toString(v)
		}
	}

	if creating {
		for _, f := range col.Fields {
			if !f.Required || errs[f.Name] != nil {
				continue
			}
			if isBlank(changes[f.Name]) {
				errs[f.Name] = fieldError("validation_required", "Missing required value.")
			}
		}
	}
	return errs
}

// applyFiles stores uploads and updates the file fields in changes. Single
// file fields are replaced, multi file fields are appended to, and a blank or
// null value clears either kind. It returns the files it saved and the files
// that became unused. On error nothing it saved is left on disk.
func (h *Handler) applyFiles(col *Collection, id string, in input, existing, changes Record) (added, stale []string, errs gin.H) {
	errs = gin.H{}
	for _, f := range col.Fields {
		if !f.isFile() || !in.present[f.Name] {
			continue
		}

		cleared := false
		if v, ok := in.values[f.Name]; ok && isBlank(v) {
			cleared = true
		}

		saved := make([]string, 0, len(in.files[f.Name]))
		for _, fh := range in.files[f.Name] {
			name, err := h.Storage.Save(col.Name, id, fh)
			if err != nil {
				errs[f.Name] = fieldError("validation_invalid_file", err.Error())
				break
			}
			saved = append(saved, name)
		}
		added = append(added, saved...)
		if errs[f.Name] != nil {
			continue
		}

		switch f.Kind {
		case kindFiles:
			old := existing.Strings(f.Name)
			list := append([]string{}, old...)
			if cleared {
				stale = append(stale, old...)
				list = list[:0]
			}
			changes[f.Name] = append(list, saved...)
		case kindFile:
			old := existing.String(f.Name)
			switch {
			case len(saved) > 0:
				changes[f.Name] = saved[len(saved)-1]
				stale = append(stale, saved[:len(saved)-1]...)
			case cleared:
				changes[f.Name] = ""
			default:
				continue
			}
			if old != "" {
				stale = append(stale, old)
			}
		}
	}
	if len(errs) > 0 {
		h.Storage.Remove(col.Name, id, added...)
		return nil, nil, errs
	}
	return added, stale, errs
}

func (h *Handler) create(c *gin.Context) {
	col, ok := h.collection(c)
	if !ok {
		return
	}
	const failed = "Failed to create record."

	in, err := readInput(c)
	if err != nil {
		apiError(c, http.StatusBadRequest, failed, nil)
		return
	}

	rec := Record{}
	if errs := h.apply(c, col, in, rec, true); len(errs) > 0 {
		apiError(c, http.StatusBadRequest, failed, errs)
		return
	}

	id := NewID()
	rec["id"] = id
	if _, _, errs := h.applyFiles(col, id, in, Record{}, rec); len(errs) > 0 {
		_ = h.Storage.RemoveAll(col.Name, id)
		apiError(c, http.StatusBadRequest, failed, errs)
		return
	}

	out, err := h.Repo.Insert(c.Request.Context(), col, rec)
	if err != nil {
		_ = h.Storage.RemoveAll(col.Name, id)
		h.Log.Error().Err(err).Str("collection", col.Name).Msg("[records] create")
		apiError(c, http.StatusBadRequest, failed, nil)
		return
	}

	h.Log.Info().Str("collection", col.Name).Str("id", id).Msg("[records] created")
	h.publish(events.ActionCreate, col, out)
	c.JSON(http.StatusOK, out)
}

func (h *Handler) update(c *gin.Context) {
	col, ok := h.collection(c)
	if !ok {
		return
	}
	const failed = "Failed to update record."
	id := c.Param("id")

	existing, err := h.Repo.Get(c.Request.Context(), col, id)
	if errors.Is(err, ErrNotFound) {
		notFound(c)
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("[records] update lookup")
		apiError(c, http.StatusInternalServerError, failed, nil)
		return
	}

	in, err := readInput(c)
	if err != nil {
		apiError(c, http.StatusBadRequest, failed, nil)
		return
	}

	changes := Record{}
	if errs := h.apply(c, col, in, changes, false); len(errs) > 0 {
		apiError(c, http.StatusBadRequest, failed, errs)
		return
	}
	added, stale, errs := h.applyFiles(col, id, in, existing, changes)
	if len(errs) > 0 {
		apiError(c, http.StatusBadRequest, failed, errs)
		return
	}

	out, err := h.Repo.Update(c.Request.Context(), col, id, changes)
	if err != nil {
		h.Storage.Remove(col.Name, id, added...)
		h.Log.Error().Err(err).Str("collection", col.Name).Msg("[records] update")
		apiError(c, http.StatusBadRequest, failed, nil)
		return
	}
	h.Storage.Remove(col.Name, id, stale...)

	h.Log.Info().Str("collection", col.Name).Str("id", id).Msg("[records] updated")
	h.publish(events.ActionUpdate, col, out)
	c.JSON(http.StatusOK, out)
}

func (h *Handler) delete(c *gin.Context) {
	col, ok := h.collection(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	existing, err := h.Repo.Get(ctx, col, id)
	if errors.Is(err, ErrNotFound) {
		notFound(c)
		return
	}
	if err != nil {
		apiError(c, http.StatusBadRequest, "Failed to delete record.", nil)
		return
	}

	var children []string
	if col == Mangas {
		if children, err = h.Repo.ChildIDs(ctx, id); err != nil {
			h.Log.Error().Err(err).Msg("[records] delete children")
		}
	}

	if err := h.Repo.Delete(ctx, col, id); err != nil {
		h.Log.Error().Err(err).Str("collection", col.Name).Msg("[records] delete")
		apiError(c, http.StatusBadRequest, "Failed to delete record.", nil)
		return
	}
	_ = h.Storage.RemoveAll(col.Name, id)
	for _, child := range children {
		_ = h.Storage.RemoveAll(Chapters.Name, child)
	}

	h.Log.Info().Str("collection", col.Name).Str("id", id).Int("chapters", len(children)).Msg("[records] deleted")
	h.publish(events.ActionDelete, col, existing)
	c.Status(http.StatusNoContent)
}

func (h *Handler) publish(action string, col *Collection, rec Record) {
	if h.Events != nil {
		h.Events.Publish(events.Event{Action: action, Collection: col.Name, Record: rec})
	}
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return int64(x), nil
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return 0, nil
		}
		return strconv.ParseInt(x, 10, 64)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case int64:
		return x == 0
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}
