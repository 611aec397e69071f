package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"coverage-service/internal/models"
	"coverage-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// IN-MEMORY STORE FAKE
// ============================================================================

// memoryRegionStore implements repository.RegionStore in memory with
// transactional staging: inserts stay pending until Commit, so aborted
// batches leave no trace.
type memoryRegionStore struct {
	regions map[string]*models.Region
	nextID  int

	// raceName simulates a concurrent writer: FindByName misses for this
	// name but the insert hits the unique constraint.
	raceName string
}

func newMemoryRegionStore() *memoryRegionStore {
	return &memoryRegionStore{regions: map[string]*models.Region{}, nextID: 1}
}

func (s *memoryRegionStore) Begin() (repository.RegionTx, error) {
	return &memoryRegionTx{store: s, pending: map[string]*models.Region{}}, nil
}

type memoryRegionTx struct {
	store      *memoryRegionStore
	pending    map[string]*models.Region
	order      []string
	rolledBack bool
}

func (tx *memoryRegionTx) FindByName(name string) (*models.Region, error) {
	if region, ok := tx.pending[name]; ok {
		return region, nil
	}
	if region, ok := tx.store.regions[name]; ok {
		return region, nil
	}
	return nil, models.ErrRegionNotFound
}

func (tx *memoryRegionTx) Insert(region *models.Region) error {
	if region.Name == tx.store.raceName {
		return fmt.Errorf("insert %q: %w", region.Name, models.ErrDuplicateName)
	}
	if _, ok := tx.pending[region.Name]; ok {
		return fmt.Errorf("insert %q: %w", region.Name, models.ErrDuplicateName)
	}
	if _, ok := tx.store.regions[region.Name]; ok {
		return fmt.Errorf("insert %q: %w", region.Name, models.ErrDuplicateName)
	}

	region.ID = tx.store.nextID
	tx.store.nextID++
	tx.pending[region.Name] = region
	tx.order = append(tx.order, region.Name)
	return nil
}

func (tx *memoryRegionTx) Commit() error {
	for _, name := range tx.order {
		tx.store.regions[name] = tx.pending[name]
	}
	return nil
}

func (tx *memoryRegionTx) Rollback() error {
	tx.rolledBack = true
	tx.pending = map[string]*models.Region{}
	tx.order = nil
	return nil
}

// ============================================================================
// TEST HELPERS
// ============================================================================

func importFeature(name string, properties map[string]any) models.Feature {
	if properties == nil {
		properties = map[string]any{}
	}
	if name != "" {
		properties["name"] = name
	}
	return models.Feature{
		Type:       models.FeatureType,
		Geometry:   json.RawMessage(`{"type":"Polygon","coordinates":[[[17.0,-22.5],[17.5,-22.5],[17.5,-22.0],[17.0,-22.5]]]}`),
		Properties: properties,
	}
}

func importCollection(features ...models.Feature) *models.FeatureCollection {
	return &models.FeatureCollection{
		Type:     models.FeatureCollectionType,
		Features: features,
	}
}

// ============================================================================
// TEST SUITE 1: HAPPY PATH AND IDEMPOTENCE
// ============================================================================

func TestImportFeatureCollection_CreatesRegions(t *testing.T) {
	store := newMemoryRegionStore()
	service := NewImportService(store, nil)

	summary, err := service.ImportFeatureCollection(context.Background(), importCollection(
		importFeature("Khomas", map[string]any{"fiber_status": "Active", "population": 494605}),
		importFeature("Erongo", map[string]any{"fiber_status": "Planned"}),
	))
	require.NoError(t, err)

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", summary.BatchID.String())
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.SkippedMissingName)
	assert.Equal(t, 0, summary.SkippedDuplicate)

	require.Len(t, store.regions, 2)
	assert.Equal(t, models.FiberActive, store.regions["Khomas"].FiberStatus)
	assert.NotZero(t, store.regions["Khomas"].ID)
	assert.NotEqual(t, store.regions["Khomas"].ID, store.regions["Erongo"].ID)
}

func TestImportFeatureCollection_ReimportIsIdempotent(t *testing.T) {
	store := newMemoryRegionStore()
	service := NewImportService(store, nil)

	dataset := importCollection(
		importFeature("Khomas", map[string]any{"fiber_status": "Active"}),
		importFeature("Erongo", map[string]any{"fiber_status": "Planned"}),
		importFeature("Oshana", nil),
	)

	first, err := service.ImportFeatureCollection(context.Background(), dataset)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)

	second, err := service.ImportFeatureCollection(context.Background(), dataset)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.SkippedDuplicate)
	assert.Len(t, store.regions, 3)
}

func TestImportFeatureCollection_DefaultsStatus(t *testing.T) {
	store := newMemoryRegionStore()
	service := NewImportService(store, nil)

	_, err := service.ImportFeatureCollection(context.Background(), importCollection(
		importFeature("Oshana", nil),
	))
	require.NoError(t, err)
	assert.Equal(t, models.FiberUnavailable, store.regions["Oshana"].FiberStatus)
}

func TestImportFeatureCollection_DuplicatesWithinBatch(t *testing.T) {
	store := newMemoryRegionStore()
	service := NewImportService(store, nil)

	// Second occurrence of the same name in one batch counts as a skip, not
	// a fatal error: the transaction sees its own uncommitted insert.
	summary, err := service.ImportFeatureCollection(context.Background(), importCollection(
		importFeature("Khomas", map[string]any{"fiber_status": "Active"}),
		importFeature("Khomas", map[string]any{"fiber_status": "Planned"}),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.SkippedDuplicate)
	assert.Equal(t, models.FiberActive, store.regions["Khomas"].FiberStatus, "first occurrence wins")
}

// ============================================================================
// TEST SUITE 2: TOLERATED SKIPS
// ============================================================================

func TestImportFeatureCollection_SkipsFeaturesWithoutName(t *testing.T) {
	store := newMemoryRegionStore()
	service := NewImportService(store, nil)

	summary, err := service.ImportFeatureCollection(context.Background(), importCollection(
		importFeature("", nil),
		importFeature("Khomas", map[string]any{"fiber_status": "Active"}),
		importFeature("", map[string]any{"name": 42}),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 2, summary.SkippedMissingName)
	assert.Len(t, store.regions, 1)
}

// ============================================================================
// TEST SUITE 3: BATCH-FATAL ERRORS ROLL EVERYTHING BACK
// ============================================================================

func TestImportFeatureCollection_InvalidStatusAbortsBatch(t *testing.T) {
	store := newMemoryRegionStore()
	service := NewImportService(store, nil)

	features := make([]models.Feature, 0, 10)
	for i := 0; i < 9; i++ {
		features = append(features, importFeature(fmt.Sprintf("Region %d", i), map[string]any{"fiber_status": "Planned"}))
	}
	features = append(features, importFeature("Broken", map[string]any{"fiber_status": "Fiber-To-The-Moon"}))

	summary, err := service.ImportFeatureCollection(context.Background(), importCollection(features...))
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
	assert.Equal(t, 9, summary.Created, "summary reports progress before the abort")
	assert.Empty(t, store.regions, "nothing persists from an aborted batch")
}

func TestImportFeatureCollection_InvalidGeometryAbortsBatch(t *testing.T) {
	store := newMemoryRegionStore()
	service := NewImportService(store, nil)

	broken := importFeature("Broken", nil)
	broken.Geometry = json.RawMessage(`{"type":"Polygon","coordinates":[[[0.0,0.0],[1.0,0.0],[1.0,1.0]]]}`)

	_, err := service.ImportFeatureCollection(context.Background(), importCollection(
		importFeature("Khomas", map[string]any{"fiber_status": "Active"}),
		broken,
	))
	assert.ErrorIs(t, err, models.ErrInvalidGeometry)
	assert.Empty(t, store.regions)
}

func TestImportFeatureCollection_MissingPropertiesAbortsBatch(t *testing.T) {
	store := newMemoryRegionStore()
	service := NewImportService(store, nil)

	// No properties object at all. Unlike a present-but-nameless properties
	// bag, this is batch-fatal, not a tolerated skip.
	broken := importFeature("", nil)
	broken.Properties = nil

	summary, err := service.ImportFeatureCollection(context.Background(), importCollection(
		importFeature("Khomas", map[string]any{"fiber_status": "Active"}),
		broken,
	))
	assert.ErrorIs(t, err, models.ErrMalformedFeature)
	assert.Equal(t, 0, summary.SkippedMissingName)
	assert.Empty(t, store.regions)
}

func TestImportFeatureCollection_MissingGeometryAbortsBatch(t *testing.T) {
	store := newMemoryRegionStore()
	service := NewImportService(store, nil)

	broken := importFeature("Omaheke", nil)
	broken.Geometry = nil

	_, err := service.ImportFeatureCollection(context.Background(), importCollection(
		importFeature("Khomas", map[string]any{"fiber_status": "Active"}),
		broken,
	))
	assert.ErrorIs(t, err, models.ErrMalformedFeature)
	assert.Empty(t, store.regions)
}

func TestImportFeatureCollection_InsertRaceAbortsBatch(t *testing.T) {
	store := newMemoryRegionStore()
	store.raceName = "Khomas"
	service := NewImportService(store, nil)

	_, err := service.ImportFeatureCollection(context.Background(), importCollection(
		importFeature("Erongo", nil),
		importFeature("Khomas", nil),
	))
	assert.ErrorIs(t, err, models.ErrDuplicateName)
	assert.Empty(t, store.regions)
}

func TestImportFeatureCollection_NilCollection(t *testing.T) {
	service := NewImportService(newMemoryRegionStore(), nil)

	_, err := service.ImportFeatureCollection(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrMalformedFeature)
}

func TestImportFeatureCollection_EmptyCollection(t *testing.T) {
	store := newMemoryRegionStore()
	service := NewImportService(store, nil)

	summary, err := service.ImportFeatureCollection(context.Background(), importCollection())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Empty(t, store.regions)
}
