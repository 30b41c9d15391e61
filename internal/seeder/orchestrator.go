package seeder

import (
	"context"
	"fmt"
	"log"
	"time"

	"mangaseed/internal/imagecache"
	"mangaseed/internal/loader"
	"mangaseed/internal/retry"
)

// Phases selects which phases a run executes. Zero value means all.
type Phases struct {
	UsersOnly    bool
	MangaOnly    bool
	ChaptersOnly bool
}

func (p Phases) users() bool    { return !p.MangaOnly && !p.ChaptersOnly }
func (p Phases) manga() bool    { return !p.UsersOnly && !p.ChaptersOnly }
func (p Phases) chapters() bool { return !p.UsersOnly && !p.MangaOnly }

// Config drives one seed run.
type Config struct {
	UserFiles    []string
	MangaFiles   []string
	ChapterFiles []string

	Phases          Phases
	DryRun          bool
	Verbose         bool
	ContinueOnError bool

	PhaseTimeout time.Duration // wall-clock budget per phase, retries included
	PhasePolicy  retry.Policy
}

// Orchestrator sequences the phases in dependency order: users, then
// manga, then chapters. Chapters need their parent manga rows, so phases
// never overlap.
type Orchestrator struct {
	cfg       Config
	coord     *Coordinator
	cache     *imagecache.Cache
	imageRoot string
}

func NewOrchestrator(cfg Config, coord *Coordinator, cache *imagecache.Cache, imageRoot string) *Orchestrator {
	if cfg.PhasePolicy.MaxAttempts == 0 {
		cfg.PhasePolicy = retry.PhasePolicy
	}
	if cfg.PhaseTimeout == 0 {
		cfg.PhaseTimeout = 30 * time.Minute
	}
	return &Orchestrator{cfg: cfg, coord: coord, cache: cache, imageRoot: imageRoot}
}

// Run executes the selected phases and returns the aggregated summary.
// The returned error is non-nil only when a phase failed terminally and
// ContinueOnError is off.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	summary := Summary{}
	o.coord.Images = &summary.Images

	if !o.cfg.DryRun {
		n, err := o.cache.PrimeFromDirectory(o.imageRoot)
		if err != nil {
			return summary, fmt.Errorf("prime image cache: %w", err)
		}
		if o.cfg.Verbose {
			log.Printf("[seeder] primed image cache with %d existing files", n)
		}
	}

	phases := []struct {
		name    string
		enabled bool
		run     func(context.Context, *Summary) error
	}{
		{"users", o.cfg.Phases.users() && len(o.cfg.UserFiles) > 0, o.runUsers},
		{"manga", o.cfg.Phases.manga() && len(o.cfg.MangaFiles) > 0, o.runManga},
		{"chapters", o.cfg.Phases.chapters() && len(o.cfg.ChapterFiles) > 0, o.runChapters},
	}

	for _, ph := range phases {
		if !ph.enabled {
			continue
		}
		log.Printf("[seeder] phase %s starting", ph.name)

		phaseCtx, cancel := context.WithTimeout(ctx, o.cfg.PhaseTimeout)
		err := o.cfg.PhasePolicy.Do(phaseCtx, func() error {
			return ph.run(phaseCtx, &summary)
		})
		cancel()

		if err != nil {
			summary.FailedPhases = append(summary.FailedPhases, ph.name)
			if !o.cfg.ContinueOnError {
				return summary, fmt.Errorf("phase %s: %w", ph.name, err)
			}
			log.Printf("[seeder] phase %s failed, continuing: %v", ph.name, err)
			continue
		}
		log.Printf("[seeder] phase %s done", ph.name)
	}

	summary.Log()
	return summary, nil
}

func (o *Orchestrator) runUsers(ctx context.Context, summary *Summary) error {
	res, err := loader.LoadUsers(o.cfg.UserFiles)
	if err != nil {
		return err
	}
	summary.Users.Errors += res.InvalidCount

	for _, u := range res.Records {
		result, err := o.coord.UpsertUser(ctx, u)
		if err != nil {
			summary.Users.Record(ActionError)
			log.Printf("[seeder] user %q: %v", u.Username, err)
			continue
		}
		summary.Users.Record(result.Action)
		if o.cfg.Verbose {
			log.Printf("[seeder] user %q %s", u.Username, result.Action)
		}
	}
	return nil
}

func (o *Orchestrator) runManga(ctx context.Context, summary *Summary) error {
	res, err := loader.LoadManga(o.cfg.MangaFiles)
	if err != nil {
		return err
	}
	summary.Manga.Errors += res.InvalidCount

	for _, m := range res.Records {
		result, err := o.coord.UpsertManga(ctx, m)
		if err != nil {
			summary.Manga.Record(ActionError)
			log.Printf("[seeder] manga %q: %v", m.Slug, err)
			continue
		}
		summary.Manga.Record(result.Action)
		if o.cfg.Verbose {
			log.Printf("[seeder] manga %q %s", m.Slug, result.Action)
		}
	}
	return nil
}

func (o *Orchestrator) runChapters(ctx context.Context, summary *Summary) error {
	res, err := loader.LoadChapters(o.cfg.ChapterFiles)
	if err != nil {
		return err
	}
	summary.Chapters.Errors += res.InvalidCount

	for _, ch := range res.Records {
		result, err := o.coord.UpsertChapter(ctx, ch)
		if err != nil {
			summary.Chapters.Record(ActionError)
			log.Printf("[seeder] chapter %s/%d: %v", ch.MangaSlug, ch.Number, err)
			continue
		}
		summary.Chapters.Record(result.Action)
		if o.cfg.Verbose {
			log.Printf("[seeder] chapter %s/%d %s", ch.MangaSlug, ch.Number, result.Action)
		}
	}
	return nil
}
