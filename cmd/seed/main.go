package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mangaseed/internal/download"
	"mangaseed/internal/imagecache"
	"mangaseed/internal/seeder"
	"mangaseed/internal/storage"
	"mangaseed/pkg/database"
	"mangaseed/pkg/utils"
)

func main() {
	var (
		usersIn    = flag.String("users", "", "comma-separated user seed JSON files")
		mangaIn    = flag.String("manga", "", "comma-separated manga seed JSON files")
		chaptersIn = flag.String("chapters", "", "comma-separated chapter seed JSON files")

		usersOnly    = flag.Bool("users-only", false, "run only the users phase")
		mangaOnly    = flag.Bool("manga-only", false, "run only the manga phase")
		chaptersOnly = flag.Bool("chapters-only", false, "run only the chapters phase")

		dryRun          = flag.Bool("dry-run", false, "validate and report without writing anything")
		verbose         = flag.Bool("verbose", false, "log per-record actions")
		continueOnError = flag.Bool("continue-on-error", false, "record phase failures and keep going")
	)
	flag.Parse()

	cfg, err := utils.LoadSeedConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	provider, err := storage.FromConfig(cfg.StorageProvider, cfg.ImageRoot)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := imagecache.New()
	coord := &seeder.Coordinator{
		Users:    seeder.NewUserRepo(db),
		Manga:    seeder.NewMangaRepo(db),
		Chapters: seeder.NewChapterRepo(db),
		Downloader: download.New(provider, cache, cfg.ImageRoot, cfg.FallbackAsset, download.Options{
			Verbose: *verbose,
		}),
		DefaultPassword: cfg.DefaultPassword,
		Concurrency:     cfg.Concurrency,
		DryRun:          *dryRun,
		Verbose:         *verbose,
	}

	orch := seeder.NewOrchestrator(seeder.Config{
		UserFiles:    splitFiles(*usersIn),
		MangaFiles:   splitFiles(*mangaIn),
		ChapterFiles: splitFiles(*chaptersIn),
		Phases: seeder.Phases{
			UsersOnly:    *usersOnly,
			MangaOnly:    *mangaOnly,
			ChaptersOnly: *chaptersOnly,
		},
		DryRun:          *dryRun,
		Verbose:         *verbose,
		ContinueOnError: *continueOnError,
	}, coord, cache, cfg.ImageRoot)

	summary, err := orch.Run(ctx)
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	if summary.Failed() {
		os.Exit(1)
	}
}

func splitFiles(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
