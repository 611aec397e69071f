package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"coverage-service/internal/event"
	"coverage-service/internal/models"
	"coverage-service/internal/repository"

	"github.com/google/uuid"
)

// ImportSummary reports the per-feature outcomes of one bulk import.
type ImportSummary struct {
	BatchID            uuid.UUID `json:"batch_id"`
	Created            int       `json:"created"`
	SkippedMissingName int       `json:"skipped_missing_name"`
	SkippedDuplicate   int       `json:"skipped_duplicate"`
}

// ImportService loads GeoJSON feature collections into the region store.
//
// Two per-feature outcomes are tolerated and merely counted: a feature
// without a name (expected data-quality noise) and a feature whose region
// already exists (what makes re-imports idempotent). Everything else —
// malformed feature, invalid geometry, invalid status, an insert-time name
// race — indicates a corrupt dataset and aborts the whole batch, which is
// processed inside a single transaction so nothing partial ever persists.
type ImportService struct {
	store     repository.RegionStore
	publisher *event.ImportPublisher
}

// NewImportService wires the pipeline. publisher may be nil; import events
// are then disabled.
func NewImportService(store repository.RegionStore, publisher *event.ImportPublisher) *ImportService {
	return &ImportService{store: store, publisher: publisher}
}

// ImportFeatureCollection runs one import batch. On a batch-fatal error the
// transaction is rolled back and the partial summary is returned alongside
// the error for diagnostics.
func (s *ImportService) ImportFeatureCollection(ctx context.Context, fc *models.FeatureCollection) (*ImportSummary, error) {
	summary := &ImportSummary{BatchID: uuid.New()}

	if fc == nil {
		return summary, fmt.Errorf("%w: no feature collection", models.ErrMalformedFeature)
	}

	tx, err := s.store.Begin()
	if err != nil {
		return summary, err
	}

	for i := range fc.Features {
		feature := &fc.Features[i]

		// A feature missing its geometry or properties object entirely is a
		// corrupt dataset, not data-quality noise; only "properties present
		// but no name" gets the tolerant skip.
		if feature.Geometry == nil || feature.Properties == nil {
			return s.abort(tx, summary, fmt.Errorf("feature %d: %w: missing 'geometry' or 'properties'", i, models.ErrMalformedFeature))
		}

		name, err := feature.Name()
		if err != nil {
			slog.Warn("skipping feature without a name",
				"batch_id", summary.BatchID,
				"feature_index", i)
			summary.SkippedMissingName++
			continue
		}

		if _, err := tx.FindByName(name); err == nil {
			slog.Info("region already exists, skipping",
				"batch_id", summary.BatchID,
				"name", name)
			summary.SkippedDuplicate++
			continue
		} else if !errors.Is(err, models.ErrRegionNotFound) {
			return s.abort(tx, summary, err)
		}

		region, err := models.RegionFromFeature(feature)
		if err != nil {
			return s.abort(tx, summary, fmt.Errorf("feature %d (%s): %w", i, name, err))
		}

		if err := tx.Insert(region); err != nil {
			return s.abort(tx, summary, fmt.Errorf("feature %d (%s): %w", i, name, err))
		}

		slog.Info("added region",
			"batch_id", summary.BatchID,
			"name", region.Name,
			"status", region.FiberStatus)
		summary.Created++
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("failed to commit import batch: %w", err)
	}

	slog.Info("import batch committed",
		"batch_id", summary.BatchID,
		"created", summary.Created,
		"skipped_missing_name", summary.SkippedMissingName,
		"skipped_duplicate", summary.SkippedDuplicate)

	s.publishSummary(ctx, summary)
	return summary, nil
}

// abort rolls the batch back; the two tolerant skip outcomes never reach
// here, every other error does.
func (s *ImportService) abort(tx repository.RegionTx, summary *ImportSummary, cause error) (*ImportSummary, error) {
	if err := tx.Rollback(); err != nil {
		slog.Error("failed to roll back import batch",
			"batch_id", summary.BatchID,
			"error", err)
	}
	return summary, cause
}

// publishSummary emits the import event best-effort; a broker outage never
// fails a committed import.
func (s *ImportService) publishSummary(ctx context.Context, summary *ImportSummary) {
	if s.publisher == nil {
		return
	}
	evt := event.RegionsImportedEvent{
		BatchID:            summary.BatchID.String(),
		Created:            summary.Created,
		SkippedMissingName: summary.SkippedMissingName,
		SkippedDuplicate:   summary.SkippedDuplicate,
	}
	if err := s.publisher.PublishRegionsImported(ctx, evt); err != nil {
		slog.Error("failed to publish import event",
			"batch_id", summary.BatchID,
			"error", err)
	}
}
