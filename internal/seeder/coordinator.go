package seeder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mangaseed/internal/download"
	"mangaseed/pkg/models"
)

// ErrMissingParent marks a chapter whose manga is not in the database.
// The record is skipped, never fatal.
var ErrMissingParent = errors.New("parent manga not found")

// Coordinator is the persistence coordinator: it resolves a record's
// images through the download pipeline and then upserts the record by its
// natural key. Database writes happen strictly after every image of the
// record has resolved.
type Coordinator struct {
	Users    *UserRepo
	Manga    *MangaRepo
	Chapters *ChapterRepo

	Downloader *download.Downloader
	Images     *ImageStats

	// DefaultPassword is bcrypt-hashed for user records without credentials.
	DefaultPassword string
	Concurrency     int
	DryRun          bool
	Verbose         bool
}

// UpsertUser persists one user record keyed by username.
func (c *Coordinator) UpsertUser(ctx context.Context, u models.UserSeed) (UpsertResult, error) {
	existingID, err := c.Users.FindIDByUsername(ctx, u.Username)
	if err != nil {
		return UpsertResult{Action: ActionError}, err
	}

	if c.DryRun {
		return c.report("user", u.Username, existingID), nil
	}

	avatarPath := ""
	if len(u.Avatars) > 0 {
		res := c.Downloader.DownloadAs(ctx, u.Avatars[0], "avatars", u.Username)
		c.Images.Record(res)
		avatarPath = res.LocalPath
	}

	if existingID != "" {
		if err := c.Users.Update(ctx, existingID, u, avatarPath); err != nil {
			return UpsertResult{Action: ActionError}, err
		}
		return UpsertResult{Action: ActionUpdated, EntityID: existingID}, nil
	}

	password := u.Password
	if password == "" {
		password = c.DefaultPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return UpsertResult{Action: ActionError}, fmt.Errorf("hash password for %s: %w", u.Username, err)
	}

	id := uuid.NewString()
	if err := c.Users.Insert(ctx, id, u, string(hash), avatarPath); err != nil {
		return UpsertResult{Action: ActionError}, err
	}
	return UpsertResult{Action: ActionCreated, EntityID: id}, nil
}

// UpsertManga persists one manga record keyed by slug.
func (c *Coordinator) UpsertManga(ctx context.Context, m models.MangaSeed) (UpsertResult, error) {
	existingID, err := c.Manga.FindIDBySlug(ctx, m.Slug)
	if err != nil {
		return UpsertResult{Action: ActionError}, err
	}

	if c.DryRun {
		return c.report("manga", m.Slug, existingID), nil
	}

	coverPath := ""
	if len(m.Covers) > 0 {
		res := c.Downloader.DownloadAs(ctx, m.Covers[0], m.Slug, "cover")
		c.Images.Record(res)
		coverPath = res.LocalPath
	}

	if existingID != "" {
		if err := c.Manga.Update(ctx, existingID, m, coverPath); err != nil {
			return UpsertResult{Action: ActionError}, err
		}
		return UpsertResult{Action: ActionUpdated, EntityID: existingID}, nil
	}

	id := uuid.NewString()
	if err := c.Manga.Insert(ctx, id, m, coverPath); err != nil {
		return UpsertResult{Action: ActionError}, err
	}
	return UpsertResult{Action: ActionCreated, EntityID: id}, nil
}

// UpsertChapter persists one chapter record keyed by parent manga + number,
// and replaces its page rows with the resolved image paths.
func (c *Coordinator) UpsertChapter(ctx context.Context, ch models.ChapterSeed) (UpsertResult, error) {
	mangaID, err := c.Manga.FindIDBySlug(ctx, ch.MangaSlug)
	if err != nil {
		return UpsertResult{Action: ActionError}, err
	}
	if mangaID == "" {
		log.Printf("[seeder] skipping chapter %d of %q: %v", ch.Number, ch.MangaSlug, ErrMissingParent)
		return UpsertResult{Action: ActionSkipped}, nil
	}

	existingID, err := c.Chapters.FindID(ctx, mangaID, ch.Number)
	if err != nil {
		return UpsertResult{Action: ActionError}, err
	}

	if c.DryRun {
		return c.report("chapter", fmt.Sprintf("%s/%d", ch.MangaSlug, ch.Number), existingID), nil
	}

	// all pages resolve (download, cache hit, or fallback) before any write
	targetDir := ch.MangaSlug + "/chapter-" + strconv.Itoa(ch.Number)
	results := c.Downloader.DownloadMany(ctx, ch.Pages, targetDir, c.Concurrency)
	c.Images.Record(results...)

	pagePaths := make([]string, len(results))
	for i, r := range results {
		pagePaths[i] = r.LocalPath
	}

	chapterID := existingID
	action := ActionUpdated
	if chapterID == "" {
		chapterID = uuid.NewString()
		action = ActionCreated
		if err := c.Chapters.Insert(ctx, chapterID, mangaID, ch.Number, ch.Title); err != nil {
			return UpsertResult{Action: ActionError}, err
		}
	} else if err := c.Chapters.Update(ctx, chapterID, ch.Title); err != nil {
		return UpsertResult{Action: ActionError}, err
	}

	if err := c.Chapters.ReplacePages(ctx, chapterID, pagePaths); err != nil {
		return UpsertResult{Action: ActionError}, err
	}

	return UpsertResult{Action: action, EntityID: chapterID}, nil
}

// report is the dry-run path: no writes, just what would happen.
func (c *Coordinator) report(entity, key, existingID string) UpsertResult {
	if existingID != "" {
		if c.Verbose {
			log.Printf("[seeder] dry-run: would update %s %q", entity, key)
		}
		return UpsertResult{Action: ActionUpdated, EntityID: existingID}
	}
	if c.Verbose {
		log.Printf("[seeder] dry-run: would create %s %q", entity, key)
	}
	return UpsertResult{Action: ActionCreated}
}
