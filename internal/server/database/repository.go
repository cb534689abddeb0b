package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"chemflow/internal/core"
)

var (
	ErrDatasetNotFound = errors.New("dataset not found")
)

// Repository provides persistence operations for datasets and users.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const datasetColumns = `
	id, owner_id, filename, uploaded_at, archive_size, pdf_export_count,
	total_count,
	avg_flowrate, min_flowrate, max_flowrate,
	avg_pressure, min_pressure, max_pressure,
	avg_temperature, min_temperature, max_temperature,
	type_distribution`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*Dataset, error) {
	ds := &Dataset{}
	err := row.Scan(
		&ds.ID,
		&ds.OwnerID,
		&ds.Filename,
		&ds.UploadedAt,
		&ds.ArchiveSize,
		&ds.PDFExportCount,
		&ds.Summary.TotalCount,
		&ds.Summary.AvgFlowrate,
		&ds.Summary.MinFlowrate,
		&ds.Summary.MaxFlowrate,
		&ds.Summary.AvgPressure,
		&ds.Summary.MinPressure,
		&ds.Summary.MaxPressure,
		&ds.Summary.AvgTemperature,
		&ds.Summary.MinTemperature,
		&ds.Summary.MaxTemperature,
		&ds.Summary.TypeDistribution,
	)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// CreateDataset persists a dataset and all of its records in a single
// transaction. The dataset is not visible to reads until the transaction
// commits, so no partially-written dataset is ever observable.
func (r *Repository) CreateDataset(ctx context.Context, ds *Dataset) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO datasets (`+datasetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		ds.ID,
		ds.OwnerID,
		ds.Filename,
		ds.UploadedAt,
		ds.ArchiveSize,
		ds.PDFExportCount,
		ds.Summary.TotalCount,
		ds.Summary.AvgFlowrate,
		ds.Summary.MinFlowrate,
		ds.Summary.MaxFlowrate,
		ds.Summary.AvgPressure,
		ds.Summary.MinPressure,
		ds.Summary.MaxPressure,
		ds.Summary.AvgTemperature,
		ds.Summary.MinTemperature,
		ds.Summary.MaxTemperature,
		ds.Summary.TypeDistribution,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"equipment_records"},
		[]string{"dataset_id", "position", "name", "equipment_type", "flowrate", "pressure", "temperature"},
		pgx.CopyFromSlice(len(ds.Records), func(i int) ([]any, error) {
			rec := ds.Records[i]
			return []any{ds.ID, i, rec.Name, rec.Type, rec.Flowrate, rec.Pressure, rec.Temperature}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert equipment records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}
	return nil
}

// GetDataset retrieves a dataset with its full record sequence. When
// ownerID is non-nil the lookup is scoped to that owner; an id that
// exists but belongs to someone else reports ErrDatasetNotFound, same
// as an unknown id.
func (r *Repository) GetDataset(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) (*Dataset, error) {
	// The row and its records are read under one snapshot so a delete
	// committing between the two reads cannot yield a dataset with a
	// torn record sequence.
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := "SELECT" + datasetColumns + " FROM datasets WHERE id = $1"
	args := []any{id}
	if ownerID != nil {
		query += " AND owner_id = $2"
		args = append(args, *ownerID)
	}

	ds, err := scanDataset(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDatasetNotFound
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT name, equipment_type, flowrate, pressure, temperature
		FROM equipment_records
		WHERE dataset_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec core.EquipmentRecord
		if err := rows.Scan(&rec.Name, &rec.Type, &rec.Flowrate, &rec.Pressure, &rec.Temperature); err != nil {
			return nil, fmt.Errorf("failed to scan equipment record: %w", err)
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit read: %w", err)
	}

	// A dataset is only ever written whole, so the snapshot must hold
	// every record the summary was computed from.
	if len(ds.Records) != ds.Summary.TotalCount {
		return nil, ErrDatasetNotFound
	}
	return ds, nil
}

// ListDatasets returns dataset metadata (records omitted), most recent
// first. A limit of 0 means no limit. When ownerID is non-nil only that
// owner's datasets are returned.
func (r *Repository) ListDatasets(ctx context.Context, ownerID *uuid.UUID, limit int) ([]*Dataset, error) {
	query := "SELECT" + datasetColumns + " FROM datasets"
	var args []any
	if ownerID != nil {
		query += " WHERE owner_id = $1"
		args = append(args, *ownerID)
	}
	query += " ORDER BY uploaded_at DESC, id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	datasets := []*Dataset{}
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	return datasets, rows.Err()
}

// DeleteDataset removes a dataset and its records permanently. Deleting
// an id that does not exist, was already deleted, or belongs to another
// owner reports ErrDatasetNotFound.
func (r *Repository) DeleteDataset(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) error {
	query := "DELETE FROM datasets WHERE id = $1"
	args := []any{id}
	if ownerID != nil {
		query += " AND owner_id = $2"
		args = append(args, *ownerID)
	}

	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDatasetNotFound
	}
	return nil
}

// PruneDatasets deletes all but the keep most recent datasets for an
// owner and returns the ids removed so callers can clean the CSV archive.
func (r *Repository) PruneDatasets(ctx context.Context, ownerID *uuid.UUID, keep int) ([]uuid.UUID, error) {
	ownerCond := "owner_id IS NULL"
	args := []any{keep}
	if ownerID != nil {
		ownerCond = "owner_id = $2"
		args = append(args, *ownerID)
	}

	rows, err := r.db.Pool.Query(ctx, `
		DELETE FROM datasets WHERE id IN (
			SELECT id FROM datasets WHERE `+ownerCond+`
			ORDER BY uploaded_at DESC, id
			OFFSET $1
		)
		RETURNING id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to prune datasets: %w", err)
	}
	defer rows.Close()

	var pruned []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pruned id: %w", err)
		}
		pruned = append(pruned, id)
	}
	return pruned, rows.Err()
}

// DatasetExists reports whether a dataset row exists, ignoring ownership.
// Used by the archive janitor to detect orphaned files.
func (r *Repository) DatasetExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM datasets WHERE id = $1)", id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check dataset existence: %w", err)
	}
	return exists, nil
}

// CountDatasets returns the number of datasets visible to an owner.
func (r *Repository) CountDatasets(ctx context.Context, ownerID *uuid.UUID) (int64, error) {
	query := "SELECT COUNT(*) FROM datasets"
	var args []any
	if ownerID != nil {
		query += " WHERE owner_id = $1"
		args = append(args, *ownerID)
	}

	var n int64
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count datasets: %w", err)
	}
	return n, nil
}

// IncrementPDFExportCount atomically bumps the report export counter.
func (r *Repository) IncrementPDFExportCount(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE datasets SET pdf_export_count = pdf_export_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment pdf export count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDatasetNotFound
	}
	return nil
}

// GetStats returns aggregate service statistics.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(total_count), 0),
			COALESCE(SUM(pdf_export_count), 0),
			COALESCE(SUM(archive_size), 0)
		FROM datasets
	`).Scan(
		&stats.TotalDatasets,
		&stats.TotalRecords,
		&stats.TotalPDFExports,
		&stats.ArchiveBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
