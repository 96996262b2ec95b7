package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"mangasync/pkg/models"
)

const (
	MangaFile    = "manga.json"
	MetadataFile = "metadata.json"
	ImagesDir    = "images"
	ChaptersDir  = "chapters"
)

// MangaRef is the hand-written manga.json that ties a directory to a catalog
// entry.
type MangaRef struct {
	MalID int `json:"malId"`
}

func ReadMangaRef(dir string) (MangaRef, error) {
	var ref MangaRef
	b, err := os.ReadFile(filepath.Join(dir, MangaFile))
	if err != nil {
		return ref, err
	}
	if err := json.Unmarshal(b, &ref); err != nil {
		return ref, fmt.Errorf("decode %s: %w", MangaFile, err)
	}
	if ref.MalID <= 0 {
		return ref, fmt.Errorf("%s: malId must be positive", MangaFile)
	}
	return ref, nil
}

func LoadMetadata(dir string) (*models.MangaMetadata, error) {
	b, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	var meta models.MangaMetadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("decode %s: %w", MetadataFile, err)
	}
	return &meta, nil
}

func SaveMetadata(dir string, meta *models.MangaMetadata) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, MetadataFile+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, MetadataFile))
}

// Ensure returns the cached metadata of the manga in dir. When there is no
// cache it fetches the media named by manga.json, writes metadata.json and
// downloads the cover and banner images.
func (c *Client) Ensure(ctx context.Context, dir string) (*models.MangaMetadata, error) {
	meta, err := LoadMetadata(dir)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	ref, err := ReadMangaRef(dir)
	if err != nil {
		return nil, fmt.Errorf("no %s and no usable %s: %w", MetadataFile, MangaFile, err)
	}

	meta, err = c.FetchMedia(ctx, ref.MalID)
	if err != nil {
		return nil, err
	}
	if err := SaveMetadata(dir, meta); err != nil {
		return nil, fmt.Errorf("save %s: %w", MetadataFile, err)
	}
	c.Log.Info().Str("manga", filepath.Base(dir)).Int("mal_id", ref.MalID).Int("anilist_id", meta.ID).Msg("[catalog] metadata saved")

	if err := c.DownloadImages(ctx, dir, meta); err != nil {
		c.Log.Warn().Err(err).Str("manga", filepath.Base(dir)).Msg("[catalog] image download failed")
	}
	return meta, nil
}
