package models

// LocalChapter is one chapter found on disk. Pages are absolute paths in
// reading order; the slice is never modified after the scan.
type LocalChapter struct {
	Index      uint     `json:"index"`
	Name       string   `json:"name"`
	Group      string   `json:"group,omitempty"`
	SourcePath string   `json:"source_path"`
	Pages      []string `json:"pages"`
}

// Cover is the page used as the chapter cover image: the first page.
func (c LocalChapter) Cover() string {
	if len(c.Pages) == 0 {
		return ""
	}
	return c.Pages[0]
}
