package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"coverage-service/internal/models"
	"coverage-service/internal/utils"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// regionColumns reads the geometry back as EWKB so the SRID tag survives the
// round trip (geometry is written as EWKT through ST_GeomFromEWKT).
const regionColumns = `id, name, fiber_status, ST_AsEWKB(geometry) AS geometry_ewkb, properties`

type RegionRepository struct {
	db *sqlx.DB
}

func NewRegionRepository(db *sqlx.DB) *RegionRepository {
	return &RegionRepository{db: db}
}

type regionRow struct {
	ID           int                `db:"id"`
	Name         string             `db:"name"`
	FiberStatus  models.FiberStatus `db:"fiber_status"`
	GeometryEWKB []byte             `db:"geometry_ewkb"`
	Properties   utils.JSONMap      `db:"properties"`
}

func (row *regionRow) toRegion() (*models.Region, error) {
	var geometry models.Geometry
	if err := geometry.Scan(row.GeometryEWKB); err != nil {
		return nil, fmt.Errorf("unmarshal geometry for region %q: %w", row.Name, err)
	}
	return &models.Region{
		ID:          row.ID,
		Name:        row.Name,
		FiberStatus: row.FiberStatus,
		Geometry:    &geometry,
		Properties:  row.Properties,
	}, nil
}

// Insert stores a new region and assigns its ID. A name collision surfaces
// as models.ErrDuplicateName; the unique constraint is the invariant, any
// pre-check callers do is only an optimization.
func (r *RegionRepository) Insert(ctx context.Context, region *models.Region) error {
	query := `
		INSERT INTO regions (name, geometry, fiber_status, properties)
		VALUES (:name, ST_GeomFromEWKT(:geometry), :fiber_status, :properties)
		RETURNING id`

	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, region)
	if err != nil {
		return translateInsertError(region.Name, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&region.ID); err != nil {
			return fmt.Errorf("failed to scan inserted region id: %w", err)
		}
	}
	return rows.Err()
}

// GetByID retrieves a region by its store-assigned ID.
func (r *RegionRepository) GetByID(ctx context.Context, id int) (*models.Region, error) {
	var row regionRow
	query := `SELECT ` + regionColumns + ` FROM regions WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", models.ErrRegionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get region by id: %w", err)
	}
	return row.toRegion()
}

// GetByName retrieves a region by exact, case-sensitive name. Used for
// duplicate detection; a case-insensitive match here would skip rows it
// should not.
func (r *RegionRepository) GetByName(ctx context.Context, name string) (*models.Region, error) {
	var row regionRow
	query := `SELECT ` + regionColumns + ` FROM regions WHERE name = $1`

	err := r.db.GetContext(ctx, &row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: name %q", models.ErrRegionNotFound, name)
		}
		return nil, fmt.Errorf("failed to get region by name: %w", err)
	}
	return row.toRegion()
}

// GetByNameFuzzy retrieves the first region whose name contains the given
// substring, case-insensitive. First match wins; ORDER BY id keeps the
// choice stable across calls.
func (r *RegionRepository) GetByNameFuzzy(ctx context.Context, name string) (*models.Region, error) {
	var row regionRow
	query := `SELECT ` + regionColumns + ` FROM regions WHERE name ILIKE '%' || $1 || '%' ORDER BY id LIMIT 1`

	err := r.db.GetContext(ctx, &row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: name %q", models.ErrRegionNotFound, name)
		}
		return nil, fmt.Errorf("failed to search region by name: %w", err)
	}
	return row.toRegion()
}

// List returns regions in id order, optionally filtered by exact status.
func (r *RegionRepository) List(ctx context.Context, status *models.FiberStatus, offset, limit int) ([]models.Region, error) {
	query := `SELECT ` + regionColumns + ` FROM regions`
	args := []any{}

	if status != nil {
		query += ` WHERE fiber_status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY id OFFSET ` + strconv.Itoa(offset)
	if limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(limit)
	}

	var rows []regionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	regions := make([]models.Region, 0, len(rows))
	for i := range rows {
		region, err := rows[i].toRegion()
		if err != nil {
			return nil, err
		}
		regions = append(regions, *region)
	}
	return regions, nil
}

// Delete removes a region. Administrative path; exposed through the admin
// delete endpoint.
func (r *RegionRepository) Delete(id int) error {
	query := `DELETE FROM regions WHERE id = $1`

	err := utils.ExecWithCheck(r.db, query, utils.ExecDelete, id)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return fmt.Errorf("%w: id %d", models.ErrRegionNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete region %d: %w", id, err)
	}
	return nil
}

// ============================================================================
// TRANSACTION SUPPORT
// ============================================================================

// Begin opens a transaction implementing the RegionStore contract.
func (r *RegionRepository) Begin() (RegionTx, error) {
	slog.Info("Beginning database transaction for regions")
	tx, err := r.db.Beginx()
	if err != nil {
		slog.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &regionTx{tx: tx}, nil
}

type regionTx struct {
	tx *sqlx.Tx
}

func (t *regionTx) FindByName(name string) (*models.Region, error) {
	var row regionRow
	query := `SELECT ` + regionColumns + ` FROM regions WHERE name = $1`

	err := t.tx.Get(&row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: name %q", models.ErrRegionNotFound, name)
		}
		return nil, fmt.Errorf("failed to get region by name in transaction: %w", err)
	}
	return row.toRegion()
}

func (t *regionTx) Insert(region *models.Region) error {
	query := `
		INSERT INTO regions (name, geometry, fiber_status, properties)
		VALUES (:name, ST_GeomFromEWKT(:geometry), :fiber_status, :properties)
		RETURNING id`

	rows, err := t.tx.NamedQuery(query, region)
	if err != nil {
		return translateInsertError(region.Name, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&region.ID); err != nil {
			return fmt.Errorf("failed to scan inserted region id: %w", err)
		}
	}
	return rows.Err()
}

func (t *regionTx) Commit() error {
	return t.tx.Commit()
}

func (t *regionTx) Rollback() error {
	return t.tx.Rollback()
}

func translateInsertError(name string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%w: %q", models.ErrDuplicateName, name)
	}
	return fmt.Errorf("failed to insert region %q: %w", name, err)
}
