package models

import "fmt"

// MangaMetadata is the catalog (AniList) media record, stored next to the
// chapters as metadata.json.
type MangaMetadata struct {
	ID          int           `json:"id"`
	MalID       *int          `json:"idMal"`
	Title       MetadataTitle `json:"title"`
	Status      string        `json:"status"`
	Type        string        `json:"type"`
	Format      string        `json:"format"`
	Description string        `json:"description"`
	Genres      []string      `json:"genres"`
	Chapters    *int          `json:"chapters"`
	Volumes     *int          `json:"volumes"`
	BannerImage *string       `json:"bannerImage"`
	CoverImage  CoverImage    `json:"coverImage"`
	StartDate   FuzzyDate     `json:"startDate"`
	EndDate     FuzzyDate     `json:"endDate"`
}

type MetadataTitle struct {
	Romaji  string  `json:"romaji"`
	English *string `json:"english"`
	Native  string  `json:"native"`
}

type CoverImage struct {
	Color      *string `json:"color"`
	Medium     string  `json:"medium"`
	Large      string  `json:"large"`
	ExtraLarge string  `json:"extraLarge"`
}

// FuzzyDate is a catalog date where any part may be unknown.
type FuzzyDate struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

// String formats the date as YYYY-MM-DD, or "" when any part is missing.
func (d FuzzyDate) String() string {
	if d.Year == nil || d.Month == nil || d.Day == nil {
		return ""
	}
	if *d.Year <= 0 || *d.Month <= 0 || *d.Day <= 0 {
		return ""
	}
	return fmt.Sprintf("%d-%02d-%02d", *d.Year, *d.Month, *d.Day)
}

// DisplayTitle prefers the English title and falls back to romaji.
func (m MangaMetadata) DisplayTitle() string {
	if m.Title.English != nil && *m.Title.English != "" {
		return *m.Title.English
	}
	return m.Title.Romaji
}

// MalIDOrZero returns the MyAnimeList id, 0 when the catalog has none.
func (m MangaMetadata) MalIDOrZero() int {
	if m.MalID == nil {
		return 0
	}
	return *m.MalID
}

// CoverColor returns the dominant cover color, "" when unknown.
func (m MangaMetadata) CoverColor() string {
	if m.CoverImage.Color == nil {
		return ""
	}
	return *m.CoverImage.Color
}
