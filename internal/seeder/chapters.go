package seeder

import (
	"context"
	"database/sql"
	"fmt"
)

// ChapterRepo persists chapter seed records and their page rows.
// Natural key: parent manga id + chapter number.
type ChapterRepo struct {
	DB *sql.DB
}

func NewChapterRepo(db *sql.DB) *ChapterRepo {
	return &ChapterRepo{DB: db}
}

// FindID returns the existing row id, or "" when absent.
func (r *ChapterRepo) FindID(ctx context.Context, mangaID string, number int) (string, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id FROM chapters WHERE manga_id = ? AND number = ?
	`, mangaID, number)

	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("find chapter: %w", err)
	}
	return id, nil
}

func (r *ChapterRepo) Insert(ctx context.Context, id, mangaID string, number int, title string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO chapters (id, manga_id, number, title)
		VALUES (?, ?, ?, ?)
	`, id, mangaID, number, nullString(title))
	if err != nil {
		return fmt.Errorf("insert chapter %d: %w", number, err)
	}
	return nil
}

func (r *ChapterRepo) Update(ctx context.Context, id, title string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE chapters SET title = ? WHERE id = ?
	`, nullString(title), id)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	return nil
}

// ReplacePages swaps the chapter's page rows for the given resolved image
// paths, so re-running the seeder never appends duplicates. Pages are
// numbered from 1 in input order.
func (r *ChapterRepo) ReplacePages(ctx context.Context, chapterID string, imagePaths []string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace pages: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chapter_pages WHERE chapter_id = ?
	`, chapterID); err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chapter_pages (chapter_id, page, image_path)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i, path := range imagePaths {
		if _, err := stmt.ExecContext(ctx, chapterID, i+1, path); err != nil {
			return fmt.Errorf("insert page %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace pages: %w", err)
	}
	return nil
}

// CountPages reports the number of stored page rows for a chapter.
func (r *ChapterRepo) CountPages(ctx context.Context, chapterID string) (int, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chapter_pages WHERE chapter_id = ?
	`, chapterID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}
