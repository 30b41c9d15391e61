package seeder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"mangaseed/pkg/models"
)

// MangaRepo persists manga seed records. Natural key: slug.
type MangaRepo struct {
	DB *sql.DB
}

func NewMangaRepo(db *sql.DB) *MangaRepo {
	return &MangaRepo{DB: db}
}

// FindIDBySlug returns the existing row id, or "" when absent.
func (r *MangaRepo) FindIDBySlug(ctx context.Context, slug string) (string, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id FROM manga WHERE slug = ?
	`, slug)

	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("find manga by slug: %w", err)
	}
	return id, nil
}

func (r *MangaRepo) Insert(ctx context.Context, id string, m models.MangaSeed, coverPath string) error {
	genres, err := genresJSON(m.Genres)
	if err != nil {
		return fmt.Errorf("marshal genres for %s: %w", m.Slug, err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO manga (id, slug, title, author, genres, status, description, year, cover_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, m.Slug, m.Title, nullString(m.Author), genres, nullString(m.Status),
		nullString(m.Description), nullInt(m.Year), nullString(coverPath))
	if err != nil {
		return fmt.Errorf("insert manga %s: %w", m.Slug, err)
	}
	return nil
}

func (r *MangaRepo) Update(ctx context.Context, id string, m models.MangaSeed, coverPath string) error {
	genres, err := genresJSON(m.Genres)
	if err != nil {
		return fmt.Errorf("marshal genres for %s: %w", m.Slug, err)
	}

	_, err = r.DB.ExecContext(ctx, `
		UPDATE manga
		SET title = ?, author = ?, genres = ?, status = ?, description = ?, year = ?, cover_path = ?
		WHERE id = ?
	`, m.Title, nullString(m.Author), genres, nullString(m.Status),
		nullString(m.Description), nullInt(m.Year), nullString(coverPath), id)
	if err != nil {
		return fmt.Errorf("update manga %s: %w", m.Slug, err)
	}
	return nil
}

// genres are stored as a JSON array in a text column
func genresJSON(genres []string) (string, error) {
	if genres == nil {
		genres = []string{}
	}
	b, err := json.Marshal(genres)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
