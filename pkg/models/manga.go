package models

// Manga is a record of the "mangas" collection in the record store.
type Manga struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	MalID       int    `json:"malId"`
	AnilistID   int    `json:"anilistId"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Banner      string `json:"banner"`
	Cover       string `json:"cover"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`

	Created string `json:"created"`
	Updated string `json:"updated"`

	CollectionID   string `json:"collectionId"`
	CollectionName string `json:"collectionName"`
}

// Chapter is a record of the "chapters" collection. Index is the join key
// against the local inventory, ID is assigned by the store.
type Chapter struct {
	ID    string   `json:"id"`
	Index uint     `json:"idx"`
	Name  string   `json:"name"`
	Manga string   `json:"manga"`
	Cover string   `json:"cover"`
	Pages []string `json:"pages"`

	Created string `json:"created"`
	Updated string `json:"updated"`

	CollectionID   string `json:"collectionId"`
	CollectionName string `json:"collectionName"`
}

// ListResult is the paginated list envelope returned by the record store.
type ListResult[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}
