package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/datatypes"

	"github.com/adomirror/adomirror/pkg/jobs"
)

// strategy extracts one artifact type. It reports the index size through
// r.batched (or r.setTotal) and returns an error only when the run cannot go
// on: an index fetch failed, the job was canceled or bookkeeping broke.
type strategy func(ctx context.Context, r *run) error

// metadataParts are run in order by the all-metadata job.
var metadataParts = []jobs.ArtifactType{
	jobs.ArtifactAreaPaths,
	jobs.ArtifactIterationPaths,
	jobs.ArtifactCustomFields,
	jobs.ArtifactUsers,
	jobs.ArtifactBoardColumns,
	jobs.ArtifactWikiPages,
}

func strategyFor(t jobs.ArtifactType) (strategy, bool) {
	switch t {
	case jobs.ArtifactWorkItems:
		return extractWorkItems, true
	case jobs.ArtifactRepositories:
		return extractRepositories, true
	case jobs.ArtifactPipelines:
		return extractPipelines, true
	case jobs.ArtifactTestCases:
		return extractTestCases, true
	case jobs.ArtifactClassification:
		return extractClassification(true, true), true
	case jobs.ArtifactAreaPaths:
		return extractClassification(true, false), true
	case jobs.ArtifactIterationPaths:
		return extractClassification(false, true), true
	case jobs.ArtifactCustomFields:
		return extractCustomFields, true
	case jobs.ArtifactUsers:
		return extractUsers, true
	case jobs.ArtifactBoardColumns:
		return extractBoardColumns, true
	case jobs.ArtifactWikiPages:
		return extractWikiPages, true
	case jobs.ArtifactQueries:
		return extractQueries, true
	case jobs.ArtifactAllMetadata:
		return extractAllMetadata, true
	}
	return nil, false
}

// extractAllMetadata runs every metadata part under one job. Progress moves
// in steps of one part. A failing part is logged and the rest still run.
func extractAllMetadata(ctx context.Context, r *run) error {
	n := len(metadataParts)
	if err := r.setTotal(n); err != nil {
		return err
	}

	var errs []error
	for i, part := range metadataParts {
		if err := ctx.Err(); err != nil {
			return err
		}
		extract, _ := strategyFor(part)
		r.nested = true
		err := extract(ctx, r)
		r.nested = false
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, jobs.ErrJobTerminal) {
				return err
			}
			r.errorLog(fmt.Sprintf("%s extraction failed: %v", part, err), map[string]any{"part": string(part)})
			errs = append(errs, fmt.Errorf("%s: %w", part, err))
		} else {
			r.info(fmt.Sprintf("%s extraction finished", part), map[string]any{"part": string(part)})
		}
		if err := r.progress(i+1, n); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// dedupe drops repeated values, keeping first occurrences in order.
func dedupe[T comparable](in []T) []T {
	seen := mapset.NewThreadUnsafeSetWithSize[T](len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if seen.Add(v) {
			out = append(out, v)
		}
	}
	return out
}

// dedupeBy drops rows whose key was already seen. One upsert statement may
// not touch the same natural key twice.
func dedupeBy[T any, K comparable](in []T, key func(T) K) []T {
	seen := mapset.NewThreadUnsafeSetWithSize[K](len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if seen.Add(key(v)) {
			out = append(out, v)
		}
	}
	return out
}

func jsonColumn(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
