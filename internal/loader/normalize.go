package loader

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"mangaseed/pkg/models"
)

// extractItems finds the item array inside a decoded JSON document. Tried
// in order: the document itself, well-known wrapper keys, the largest
// array-valued property, and finally the whole document as one item.
func extractItems(doc any, wrapperKeys ...string) []any {
	if arr, ok := doc.([]any); ok {
		return arr
	}

	m, ok := doc.(map[string]any)
	if !ok {
		if doc == nil {
			return nil
		}
		return []any{doc}
	}

	for _, key := range append([]string{"data", "items"}, wrapperKeys...) {
		if arr, ok := m[key].([]any); ok {
			return arr
		}
	}

	var largest []any
	for _, v := range m {
		if arr, ok := v.([]any); ok && len(arr) > len(largest) {
			largest = arr
		}
	}
	if largest != nil {
		return largest
	}

	return []any{m}
}

// field returns the collapsed value of the first present key.
func field(m map[string]any, keys ...string) Value {
	for _, k := range keys {
		if raw, ok := m[k]; ok {
			if v := toValue(raw); v.Kind != ValueAbsent {
				return v
			}
		}
	}
	return Value{}
}

// imageURLs collapses an image-bearing field into an ordered list of URL
// strings. Entries may be raw strings or objects exposing one of the
// identifying properties.
func imageURLs(raw any) []string {
	var identifying = []string{"url", "src", "path", "filename", "slug", "id", "name", "title"}

	one := func(item any) string {
		switch v := item.(type) {
		case string:
			return strings.TrimSpace(v)
		case map[string]any:
			for _, key := range identifying {
				if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
		return ""
	}

	var urls []string
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range v {
			if u := one(item); u != "" {
				urls = append(urls, u)
			}
		}
	default:
		if u := one(v); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func imageField(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		if raw, ok := m[k]; ok {
			if urls := imageURLs(raw); len(urls) > 0 {
				return urls
			}
		}
	}
	return nil
}

func intField(m map[string]any, keys ...string) (int, error) {
	v := field(m, keys...)
	if v.Kind != ValueScalar {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v.Scalar, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", v.Scalar)
	}
	return int(math.Round(f)), nil
}

// Slugify converts a title to its canonical slug form: lowercase, letters
// and digits kept, everything else collapsed into single dashes.
func Slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))

	prevDash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevDash = false
			continue
		}
		if !prevDash {
			b.WriteRune('-')
			prevDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// extras collects pass-through fields we do not model, flattened to
// strings, so nothing from the export is silently lost.
func extras(m map[string]any, known map[string]bool) map[string]string {
	var out map[string]string
	for k, raw := range m {
		if known[k] {
			continue
		}
		v := toValue(raw)
		if v.Kind == ValueAbsent {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v.String()
	}
	return out
}

var userKnown = map[string]bool{
	"username": true, "login": true, "user": true, "handle": true,
	"email": true, "password": true,
	"display_name": true, "displayName": true, "name": true,
	"avatar": true, "avatars": true, "image": true, "profile_image": true,
}

func normalizeUser(m map[string]any) (models.UserSeed, error) {
	username := field(m, "username", "login", "user", "handle").String()
	if username == "" {
		return models.UserSeed{}, fmt.Errorf("no username field")
	}

	return models.UserSeed{
		Username:    username,
		Email:       field(m, "email").String(),
		Password:    field(m, "password").String(),
		DisplayName: field(m, "display_name", "displayName", "name").String(),
		Avatars:     imageField(m, "avatar", "avatars", "image", "profile_image"),
		Extra:       extras(m, userKnown),
	}, nil
}

var mangaKnown = map[string]bool{
	"slug": true, "id": true, "title": true,
	"author": true, "authors": true, "artist": true, "artists": true,
	"genre": true, "genres": true, "tags": true,
	"status": true, "description": true, "summary": true, "synopsis": true,
	"year": true, "cover": true, "covers": true, "cover_url": true, "image": true, "images": true,
}

func normalizeManga(m map[string]any) (models.MangaSeed, error) {
	title := field(m, "title").String()

	slug := field(m, "slug", "id").String()
	if slug == "" {
		slug = Slugify(title)
	} else {
		slug = Slugify(slug)
	}

	year, err := intField(m, "year")
	if err != nil {
		return models.MangaSeed{}, fmt.Errorf("year: %w", err)
	}

	return models.MangaSeed{
		Slug:        slug,
		Title:       title,
		Author:      field(m, "author", "authors", "artist", "artists").String(),
		Genres:      field(m, "genres", "genre", "tags").Strings(),
		Status:      strings.ToLower(field(m, "status").String()),
		Description: field(m, "description", "summary", "synopsis").String(),
		Year:        year,
		Covers:      imageField(m, "cover", "covers", "cover_url", "image", "images"),
		Extra:       extras(m, mangaKnown),
	}, nil
}

var chapterKnown = map[string]bool{
	"manga_slug": true, "manga": true, "series": true, "parent": true,
	"number": true, "chapter": true, "chapter_number": true,
	"title": true, "pages": true, "images": true,
}

func normalizeChapter(m map[string]any) (models.ChapterSeed, error) {
	parent := field(m, "manga_slug", "manga", "series", "parent").String()
	number, err := intField(m, "number", "chapter", "chapter_number")
	if err != nil {
		return models.ChapterSeed{}, fmt.Errorf("chapter number: %w", err)
	}

	return models.ChapterSeed{
		MangaSlug: Slugify(parent),
		Number:    number,
		Title:     field(m, "title").String(),
		Pages:     imageField(m, "pages", "images"),
		Extra:     extras(m, chapterKnown),
	}, nil
}
