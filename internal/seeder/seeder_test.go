package seeder

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mangaseed/internal/download"
	"mangaseed/internal/imagecache"
	"mangaseed/internal/retry"
	"mangaseed/internal/storage"
	"mangaseed/pkg/database"
	"mangaseed/pkg/models"
)

type fixture struct {
	db        *sql.DB
	coord     *Coordinator
	cache     *imagecache.Cache
	transport *httpmock.MockTransport
	root      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	transport := httpmock.NewMockTransport()
	client := &http.Client{Transport: transport}

	root := t.TempDir()
	cache := imagecache.New()
	d := download.New(storage.NewLocalDisk(root), cache, root, "assets/placeholder.jpg", download.Options{
		Client:        client,
		Policy:        retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		StoreInterval: time.Microsecond,
	})

	coord := &Coordinator{
		Users:           NewUserRepo(db),
		Manga:           NewMangaRepo(db),
		Chapters:        NewChapterRepo(db),
		Downloader:      d,
		Images:          &ImageStats{},
		DefaultPassword: "seed-default-pw",
		Concurrency:     3,
	}

	return &fixture{db: db, coord: coord, cache: cache, transport: transport, root: root}
}

func TestUpsertUserCreateThenUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := models.UserSeed{Username: "luffy", Email: "luffy@example.com"}

	res, err := f.coord.UpsertUser(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)
	assert.NotEmpty(t, res.EntityID)

	// credential omitted: the default password was hashed, never stored raw
	var hash string
	require.NoError(t, f.db.QueryRow(`SELECT password_hash FROM users WHERE username = 'luffy'`).Scan(&hash))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("seed-default-pw")))

	u.Email = "captain@example.com"
	res2, err := f.coord.UpsertUser(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res2.Action)
	assert.Equal(t, res.EntityID, res2.EntityID)

	var email, hash2 string
	require.NoError(t, f.db.QueryRow(`SELECT email, password_hash FROM users WHERE username = 'luffy'`).Scan(&email, &hash2))
	assert.Equal(t, "captain@example.com", email)
	assert.Equal(t, hash, hash2, "re-run must not rotate the stored credential")

	var count int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUpsertUserHashesProvidedPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.UpsertUser(context.Background(), models.UserSeed{
		Username: "zoro", Password: "three-swords!",
	})
	require.NoError(t, err)

	var hash string
	require.NoError(t, f.db.QueryRow(`SELECT password_hash FROM users WHERE username = 'zoro'`).Scan(&hash))
	assert.NotEqual(t, "three-swords!", hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("three-swords!")))
}

func TestUpsertMangaWithCover(t *testing.T) {
	f := newFixture(t)
	f.transport.RegisterResponder("GET", "https://img.example.com/op.jpg",
		httpmock.NewStringResponder(200, "cover bytes"))

	m := models.MangaSeed{
		Slug:   "one-piece",
		Title:  "One Piece",
		Genres: []string{"Action"},
		Covers: []string{"https://img.example.com/op.jpg"},
	}

	res, err := f.coord.UpsertManga(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)

	var coverPath string
	require.NoError(t, f.db.QueryRow(`SELECT cover_path FROM manga WHERE slug = 'one-piece'`).Scan(&coverPath))
	assert.Equal(t, filepath.Join(f.root, "one-piece", "cover.jpg"), coverPath)

	_, err = os.Stat(coverPath)
	require.NoError(t, err)
}

func TestUpsertChapterSkippedWithoutParent(t *testing.T) {
	f := newFixture(t)

	res, err := f.coord.UpsertChapter(context.Background(), models.ChapterSeed{
		MangaSlug: "never-seeded", Number: 1,
	})
	require.NoError(t, err, "missing parent must not fail the batch")
	assert.Equal(t, ActionSkipped, res.Action)
}

func TestUpsertChapterReplacesPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.UpsertManga(ctx, models.MangaSeed{Slug: "one-piece", Title: "One Piece"})
	require.NoError(t, err)

	// local-style paths pass through without network
	ch := models.ChapterSeed{
		MangaSlug: "one-piece",
		Number:    1,
		Title:     "Romance Dawn",
		Pages:     []string{"images/one-piece/chapter-1/1.jpg", "images/one-piece/chapter-1/2.jpg"},
	}

	res, err := f.coord.UpsertChapter(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)

	n, err := f.coord.Chapters.CountPages(ctx, res.EntityID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// re-run with fewer pages: rows replaced, not appended
	ch.Pages = ch.Pages[:1]
	res2, err := f.coord.UpsertChapter(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res2.Action)
	assert.Equal(t, res.EntityID, res2.EntityID)

	n, err = f.coord.Chapters.CountPages(ctx, res.EntityID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChapterPersistedWhenImageFallsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.UpsertManga(ctx, models.MangaSeed{Slug: "one-piece", Title: "One Piece"})
	require.NoError(t, err)

	f.transport.RegisterResponder("GET", "https://img.example.com/lost.jpg",
		httpmock.NewStringResponder(404, "gone"))

	res, err := f.coord.UpsertChapter(ctx, models.ChapterSeed{
		MangaSlug: "one-piece",
		Number:    2,
		Pages:     []string{"https://img.example.com/lost.jpg"},
	})
	require.NoError(t, err, "a failed image must not drop the owning record")
	assert.Equal(t, ActionCreated, res.Action)

	var path string
	require.NoError(t, f.db.QueryRow(
		`SELECT image_path FROM chapter_pages WHERE chapter_id = ? AND page = 1`, res.EntityID,
	).Scan(&path))
	assert.Equal(t, "assets/placeholder.jpg", path)
	assert.Equal(t, 1, f.coord.Images.Fallbacks)
}

func writeSeedFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func orchestratorConfig(dir string) Config {
	return Config{
		UserFiles:    []string{filepath.Join(dir, "users.json")},
		MangaFiles:   []string{filepath.Join(dir, "manga.json")},
		ChapterFiles: []string{filepath.Join(dir, "chapters.json")},
		PhasePolicy:  retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		PhaseTimeout: time.Minute,
	}
}

func seedFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeSeedFile(t, dir, "users.json", `[{"username": "luffy"}, {"username": "zoro"}]`)
	writeSeedFile(t, dir, "manga.json", `{"manga": [
		{"title": "One Piece", "genres": ["Action"]},
		{"title": "Naruto"}
	]}`)
	writeSeedFile(t, dir, "chapters.json", `{"chapters": [
		{"manga": "One Piece", "number": 1, "pages": ["images/op/1/1.jpg"]},
		{"manga": "Bleach", "number": 1}
	]}`)
	return dir
}

func TestOrchestratorFullRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	dir := seedFiles(t)

	orch := NewOrchestrator(orchestratorConfig(dir), f.coord, f.cache, f.root)
	first, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Failed())

	assert.Equal(t, 2, first.Users.Created)
	assert.Equal(t, 2, first.Manga.Created)
	assert.Equal(t, 1, first.Chapters.Created)
	assert.Equal(t, 1, first.Chapters.Skipped, "chapter without parent is skipped, not fatal")

	// second run against unchanged sources: zero net new rows
	second, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Users.Created)
	assert.Zero(t, second.Manga.Created)
	assert.Zero(t, second.Chapters.Created)
	assert.Equal(t, 2, second.Users.Updated)
	assert.Equal(t, 2, second.Manga.Updated)
	assert.Equal(t, 1, second.Chapters.Updated)

	var users, manga, chapters int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users))
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM manga`).Scan(&manga))
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM chapters`).Scan(&chapters))
	assert.Equal(t, 2, users)
	assert.Equal(t, 2, manga)
	assert.Equal(t, 1, chapters)
}

func TestOrchestratorDryRunWritesNothing(t *testing.T) {
	f := newFixture(t)
	dir := seedFiles(t)

	cfg := orchestratorConfig(dir)
	cfg.DryRun = true
	f.coord.DryRun = true

	orch := NewOrchestrator(cfg, f.coord, f.cache, f.root)
	summary, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Users.Created, "dry run still reports what would happen")

	var users, manga int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users))
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM manga`).Scan(&manga))
	assert.Zero(t, users)
	assert.Zero(t, manga)
}

func TestOrchestratorPhaseSelectors(t *testing.T) {
	f := newFixture(t)
	dir := seedFiles(t)

	cfg := orchestratorConfig(dir)
	cfg.Phases = Phases{UsersOnly: true}

	orch := NewOrchestrator(cfg, f.coord, f.cache, f.root)
	summary, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Users.Created)
	assert.Zero(t, summary.Manga.Created)

	var manga int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM manga`).Scan(&manga))
	assert.Zero(t, manga)
}

func TestOrchestratorFailedPhaseAborts(t *testing.T) {
	f := newFixture(t)
	dir := seedFiles(t)

	cfg := orchestratorConfig(dir)
	cfg.UserFiles = []string{filepath.Join(dir, "does-not-exist.json")}

	orch := NewOrchestrator(cfg, f.coord, f.cache, f.root)
	summary, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"users"}, summary.FailedPhases)
}

func TestOrchestratorContinueOnError(t *testing.T) {
	f := newFixture(t)
	dir := seedFiles(t)

	cfg := orchestratorConfig(dir)
	cfg.UserFiles = []string{filepath.Join(dir, "does-not-exist.json")}
	cfg.ContinueOnError = true

	orch := NewOrchestrator(cfg, f.coord, f.cache, f.root)
	summary, err := orch.Run(context.Background())
	require.NoError(t, err, "with continue-on-error the run finishes")
	assert.True(t, summary.Failed())
	assert.Equal(t, []string{"users"}, summary.FailedPhases)

	// later phases still ran
	assert.Equal(t, 2, summary.Manga.Created)
}
