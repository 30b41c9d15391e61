package models

// MangaSeed is the normalized, internal form of a manga entry taken
// from a seed export file.
//
// All source shapes are mapped into this structure first, then the
// seeder writes to the DB from this representation.
type MangaSeed struct {
	Slug        string            `json:"slug" validate:"required,min=1,max=120"`
	Title       string            `json:"title" validate:"required,min=1,max=255"`
	Author      string            `json:"author,omitempty"`
	Genres      []string          `json:"genres,omitempty"`
	Status      string            `json:"status,omitempty" validate:"omitempty,oneof=ongoing completed hiatus cancelled"`
	Description string            `json:"description,omitempty"`
	Year        int               `json:"year,omitempty" validate:"omitempty,gte=1900,lte=2100"`
	Covers      []string          `json:"covers,omitempty"` // cover image URLs, first one wins
	Extra       map[string]string `json:"extra,omitempty"`  // pass-through fields we do not model
}
