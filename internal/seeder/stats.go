package seeder

import (
	"log"

	"mangaseed/internal/download"
)

// UpsertAction is the outcome of persisting one record.
type UpsertAction string

const (
	ActionCreated UpsertAction = "created"
	ActionUpdated UpsertAction = "updated"
	ActionSkipped UpsertAction = "skipped"
	ActionError   UpsertAction = "error"
)

// UpsertResult is returned per record by the coordinator.
type UpsertResult struct {
	Action   UpsertAction
	EntityID string
}

// SeedStats accumulates per-entity outcomes for the run.
type SeedStats struct {
	Created int
	Updated int
	Skipped int
	Errors  int
}

func (s *SeedStats) Record(a UpsertAction) {
	switch a {
	case ActionCreated:
		s.Created++
	case ActionUpdated:
		s.Updated++
	case ActionSkipped:
		s.Skipped++
	case ActionError:
		s.Errors++
	}
}

// ImageStats aggregates download pipeline outcomes across all phases.
type ImageStats struct {
	Downloads int
	CacheHits int
	Fallbacks int
}

func (s *ImageStats) Record(results ...download.Result) {
	for _, r := range results {
		switch {
		case r.Fallback:
			s.Fallbacks++
		case r.Cached:
			s.CacheHits++
		default:
			s.Downloads++
		}
	}
}

// Summary is the end-of-run report.
type Summary struct {
	Users        SeedStats
	Manga        SeedStats
	Chapters     SeedStats
	Images       ImageStats
	FailedPhases []string // phases that exhausted their retry budget
}

// Failed reports whether the run ended in an unrecovered error state.
func (s Summary) Failed() bool {
	return len(s.FailedPhases) > 0
}

func (s Summary) Log() {
	log.Printf("[seeder] users:    %d created, %d updated, %d skipped, %d errors",
		s.Users.Created, s.Users.Updated, s.Users.Skipped, s.Users.Errors)
	log.Printf("[seeder] manga:    %d created, %d updated, %d skipped, %d errors",
		s.Manga.Created, s.Manga.Updated, s.Manga.Skipped, s.Manga.Errors)
	log.Printf("[seeder] chapters: %d created, %d updated, %d skipped, %d errors",
		s.Chapters.Created, s.Chapters.Updated, s.Chapters.Skipped, s.Chapters.Errors)
	log.Printf("[seeder] images:   %d downloaded, %d cache hits, %d fallbacks",
		s.Images.Downloads, s.Images.CacheHits, s.Images.Fallbacks)
	if s.Failed() {
		log.Printf("[seeder] failed phases: %v", s.FailedPhases)
	}
}
