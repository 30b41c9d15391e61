// Package loader reads seed export files, normalizes their inconsistent
// shapes, and validates the result against the entity schemas. A malformed
// record is logged and dropped; it never discards the rest of its batch.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"

	"mangaseed/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ItemError describes one rejected record.
type ItemError struct {
	Index  int // position across all input files, in input order
	Reason string
}

// Result is the outcome of loading one entity type.
// ValidCount+InvalidCount always equals the total number of input items.
type Result[T any] struct {
	Records      []T
	ValidCount   int
	InvalidCount int
	Errors       []ItemError
}

// LoadUsers reads and validates user seed records from the given files.
func LoadUsers(paths []string) (Result[models.UserSeed], error) {
	return loadAll(paths, "user", []string{"users"}, normalizeUser)
}

// LoadManga reads and validates manga seed records from the given files.
func LoadManga(paths []string) (Result[models.MangaSeed], error) {
	return loadAll(paths, "manga", []string{"manga", "mangas", "series"}, normalizeManga)
}

// LoadChapters reads and validates chapter seed records from the given files.
func LoadChapters(paths []string) (Result[models.ChapterSeed], error) {
	return loadAll(paths, "chapter", []string{"chapters"}, normalizeChapter)
}

type candidate[T any] struct {
	rec   T
	index int
}

func loadAll[T any](paths []string, entity string, wrapperKeys []string, build func(map[string]any) (T, error)) (Result[T], error) {
	var res Result[T]
	var cands []candidate[T]
	index := 0

	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Result[T]{}, fmt.Errorf("read %s: %w", path, err)
		}

		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Result[T]{}, fmt.Errorf("parse %s: %w", path, err)
		}

		for _, item := range extractItems(doc, wrapperKeys...) {
			m, ok := item.(map[string]any)
			if !ok {
				res.reject(entity, index, fmt.Sprintf("not an object (got %T)", item))
				index++
				continue
			}

			rec, err := build(m)
			if err != nil {
				res.reject(entity, index, err.Error())
				index++
				continue
			}

			cands = append(cands, candidate[T]{rec: rec, index: index})
			index++
		}
	}

	// whole-batch validation first; on failure fall back to per-item
	// salvage so one bad record does not discard the batch
	if batchValid(cands) {
		for _, c := range cands {
			res.Records = append(res.Records, c.rec)
		}
		res.ValidCount = len(cands)
		return res, nil
	}

	for _, c := range cands {
		if err := validate.Struct(c.rec); err != nil {
			res.reject(entity, c.index, validationReason(err))
			continue
		}
		res.Records = append(res.Records, c.rec)
		res.ValidCount++
	}

	// build failures and validation failures interleave; report in input order
	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Index < res.Errors[j].Index })
	return res, nil
}

func (r *Result[T]) reject(entity string, index int, reason string) {
	r.InvalidCount++
	r.Errors = append(r.Errors, ItemError{Index: index, Reason: reason})
	log.Printf("[loader] %s record %d rejected: %s", entity, index, reason)
}

// batchValid reports whether every candidate passes schema validation,
// bailing out at the first failure.
func batchValid[T any](cands []candidate[T]) bool {
	for _, c := range cands {
		if err := validate.Struct(c.rec); err != nil {
			return false
		}
	}
	return true
}

func validationReason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Sprintf("field %s failed %q validation", e.Field(), e.Tag())
	}
	return err.Error()
}
