package catalog

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"mangasync/pkg/models"
)

// image names in preference order for the manga cover
var coverNames = []string{"cover_extra_large", "cover_large", "cover_medium", "cover"}

// DownloadImages stores the catalog cover sizes and banner under dir/images.
// Images already present are kept.
func (c *Client) DownloadImages(ctx context.Context, dir string, meta *models.MangaMetadata) error {
	images := filepath.Join(dir, ImagesDir)
	if err := os.MkdirAll(images, 0o755); err != nil {
		return err
	}

	wanted := map[string]string{
		"cover_medium":      meta.CoverImage.Medium,
		"cover_large":       meta.CoverImage.Large,
		"cover_extra_large": meta.CoverImage.ExtraLarge,
	}
	if meta.BannerImage != nil {
		wanted["banner"] = *meta.BannerImage
	}

	for name, src := range wanted {
		if src == "" || FindImage(dir, name) != "" {
			continue
		}
		path, err := c.download(ctx, src, filepath.Join(images, name))
		if err != nil {
			return fmt.Errorf("download %s: %w", name, err)
		}
		c.Log.Debug().Str("file", path).Msg("[catalog] image saved")
	}
	return nil
}

// download writes src to base plus an extension picked from the response
// content type, falling back to sniffing the body.
func (c *Client) download(ctx context.Context, src, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	path := base + imageExt(resp.Header.Get("Content-Type"), body)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func imageExt(contentType string, body []byte) string {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "image/jpeg":
		return ".jpeg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if ext := mimetype.Detect(body).Extension(); ext != "" {
		return ext
	}
	return ".bin"
}

// FindImage returns the path of dir/images/<name>.<any ext>, or "".
func FindImage(dir, name string) string {
	entries, err := os.ReadDir(filepath.Join(dir, ImagesDir))
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if stem == name {
			return filepath.Join(dir, ImagesDir, e.Name())
		}
	}
	return ""
}

// CoverImage picks the largest cover image present for the manga in dir.
func CoverImage(dir string) string {
	for _, name := range coverNames {
		if p := FindImage(dir, name); p != "" {
			return p
		}
	}
	return ""
}
