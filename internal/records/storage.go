package records

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotImage is returned for uploads whose content is not an image.
var ErrNotImage = errors.New("file is not an image")

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// Storage keeps uploaded files under root/{collection}/{record id}/.
type Storage struct {
	Root string
}

func (s *Storage) dir(col, id string) string {
	return filepath.Join(s.Root, col, id)
}

// Path returns the location of a stored file, rejecting names that would
// escape the record directory.
func (s *Storage) Path(col, id, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("bad file name %q", name)
	}
	return filepath.Join(s.dir(col, id), name), nil
}

// Save copies an uploaded file to the record directory under a fresh name
// like "12_k3j9d0a1b2.png" and returns that name.
func (s *Storage) Save(col, id string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	mt, err := mimetype.DetectReader(src)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%s: %w (%s)", fh.Filename, ErrNotImage, mt.String())
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = mt.Extension()
	}
	stem := unsafeName.ReplaceAllString(strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename)), "_")
	if stem == "" {
		stem = "file"
	}
	name := strings.ToLower(stem) + "_" + NewID()[:10] + ext

	if err := os.MkdirAll(s.dir(col, id), 0o755); err != nil {
		return "", err
	}
	dst, err := os.Create(filepath.Join(s.dir(col, id), name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return name, dst.Close()
}

func (s *Storage) Remove(col, id string, names ...string) {
	for _, n := range names {
		if p, err := s.Path(col, id, n); err == nil {
			_ = os.Remove(p)
		}
	}
}

func (s *Storage) RemoveAll(col, id string) error {
	return os.RemoveAll(s.dir(col, id))
}
