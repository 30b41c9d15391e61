package models

// ChapterSeed is a chapter record from a seed export file. MangaSlug ties
// it to its parent manga; the parent must already be persisted before the
// chapter phase runs.
type ChapterSeed struct {
	MangaSlug string            `json:"manga_slug" validate:"required,min=1,max=120"`
	Number    int               `json:"number" validate:"required,gte=1"`
	Title     string            `json:"title,omitempty" validate:"omitempty,max=255"`
	Pages     []string          `json:"pages,omitempty"` // ordered page image URLs
	Extra     map[string]string `json:"extra,omitempty"`
}
