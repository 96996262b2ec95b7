// Package scan builds the local chapter inventory of one manga from disk.
package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"mangasync/pkg/models"
)

// InfoFile is the optional per-chapter sidecar; it is never treated as a page.
const InfoFile = "info.json"

var (
	plainName   = regexp.MustCompile(`^(\d+)$`)
	archiveName = regexp.MustCompile(`^\[(\d+)\]_(?:Group_([\d.]+)_)?Chapter_([\d.]+)$`)
)

type chapterInfo struct {
	Name string `json:"name"`
}

type page struct {
	num  uint64
	path string
}

// Chapters scans dir (a manga's chapters/ directory) and returns its chapters
// ordered by index. Entries whose names do not look like chapters are
// skipped. Any other problem fails the whole scan.
func Chapters(dir string) ([]models.LocalChapter, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &ScanError{Kind: DirectoryMissing, Path: dir, Err: err}
	}

	entries, err := readDir(abs)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]string)
	chapters := make([]models.LocalChapter, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		index, name, group, ok, err := parseChapterName(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(abs, e.Name())
		if err != nil {
			return nil, &ScanError{Kind: MalformedChapterName, Path: path, Err: err}
		}
		if prev, dup := seen[index]; dup {
			return nil, &ScanError{
				Kind: DuplicateChapterIndex,
				Path: path,
				Err:  fmt.Errorf("index %d already used by %s", index, prev),
			}
		}
		seen[index] = path

		ch, err := chapter(path, index, name, group)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}

	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Index < chapters[j].Index })
	return chapters, nil
}

func readDir(path string) ([]os.DirEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ScanError{Kind: DirectoryMissing, Path: path, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Kind: DirectoryMissing, Path: path, Err: errors.New("not a directory")}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &ScanError{Kind: DirectoryMissing, Path: path, Err: err}
	}
	return entries, nil
}

// parseChapterName reports ok=false for names that are not chapters at all,
// and a non-nil error for names that are chapters but carry a bad index.
func parseChapterName(name string) (index uint, display, group string, ok bool, err error) {
	var raw string
	switch {
	case plainName.MatchString(name):
		raw = name
		display = "Chapter " + strings.TrimLeft(name, "0")
	case archiveName.MatchString(name):
		m := archiveName.FindStringSubmatch(name)
		raw = m[1]
		group = m[2]
		display = "Chapter " + m[3]
	default:
		return 0, "", "", false, nil
	}

	n, perr := strconv.ParseUint(raw, 10, strconv.IntSize)
	if perr != nil {
		return 0, "", "", true, fmt.Errorf("parse index %q: %w", raw, perr)
	}
	if n == 0 {
		return 0, "", "", true, errors.New("chapter index must be positive")
	}
	return uint(n), display, group, true, nil
}

func chapter(path string, index uint, name, group string) (models.LocalChapter, error) {
	entries, err := readDir(path)
	if err != nil {
		return models.LocalChapter{}, err
	}

	pages := make([]page, 0, len(entries))
	byNum := make(map[uint64]string)
	for _, e := range entries {
		fname := e.Name()
		if e.IsDir() || strings.HasPrefix(fname, ".") {
			continue
		}
		if fname == InfoFile {
			override, err := readInfo(filepath.Join(path, fname))
			if err != nil {
				return models.LocalChapter{}, &ScanError{Kind: MalformedChapterName, Path: path, Err: err}
			}
			if override != "" {
				name = override
			}
			continue
		}

		full := filepath.Join(path, fname)
		num, err := pageNumber(fname)
		if err != nil {
			return models.LocalChapter{}, &ScanError{Kind: MalformedPageName, Path: full, Err: err}
		}
		if prev, dup := byNum[num]; dup {
			return models.LocalChapter{}, &ScanError{
				Kind: MalformedPageName,
				Path: full,
				Err:  fmt.Errorf("page %d already used by %s", num, filepath.Base(prev)),
			}
		}
		byNum[num] = full
		pages = append(pages, page{num: num, path: full})
	}

	if len(pages) == 0 {
		return models.LocalChapter{}, &ScanError{Kind: EmptyChapter, Path: path}
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	ordered := make([]string, len(pages))
	for i, p := range pages {
		ordered[i] = p.path
	}

	return models.LocalChapter{
		Index:      index,
		Name:       name,
		Group:      group,
		SourcePath: path,
		Pages:      ordered,
	}, nil
}

// pageNumber extracts the leading numeric component of a page file name,
// i.e. everything before the first dot.
func pageNumber(fname string) (uint64, error) {
	stem, _, _ := strings.Cut(fname, ".")
	if stem == "" {
		return 0, fmt.Errorf("page name %q has no number", fname)
	}
	for _, r := range stem {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("page name %q is not numeric", fname)
		}
	}
	n, err := strconv.ParseUint(stem, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("page name %q: %w", fname, err)
	}
	return n, nil
}

func readInfo(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", InfoFile, err)
	}
	var info chapterInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return "", fmt.Errorf("decode %s: %w", InfoFile, err)
	}
	return strings.TrimSpace(info.Name), nil
}
