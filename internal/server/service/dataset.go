package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"chemflow/internal/core"
	"chemflow/internal/server/config"
	"chemflow/internal/server/database"
	"chemflow/internal/server/report"
	"chemflow/internal/server/storage"
)

// Sentinel errors for the dataset service.
var (
	ErrNotFound     = errors.New("dataset not found")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
)

// DatasetService contains the business logic for dataset uploads,
// browsing, deletion and report export.
type DatasetService struct {
	repo  *database.Repository
	store storage.Store
	cfg   *config.Config
}

// NewDatasetService creates a new dataset service.
func NewDatasetService(repo *database.Repository, store storage.Store, cfg *config.Config) *DatasetService {
	return &DatasetService{
		repo:  repo,
		store: store,
		cfg:   cfg,
	}
}

// Upload handles an incoming CSV upload: parses and validates the rows,
// computes the summary, archives the raw file, and persists the dataset
// atomically. On any failure nothing is persisted.
func (s *DatasetService) Upload(ctx context.Context, filename string, data io.Reader, size int64, ownerID *uuid.UUID) (*database.Dataset, error) {
	if size > s.cfg.MaxUploadSize {
		return nil, ErrFileTooLarge
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(data, s.cfg.MaxUploadSize+1)); err != nil {
		return nil, fmt.Errorf("failed to read upload data: %w", err)
	}
	if int64(buf.Len()) > s.cfg.MaxUploadSize {
		return nil, ErrFileTooLarge
	}
	raw := buf.Bytes()

	records, err := core.ParseCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	summary, err := core.Aggregate(records)
	if err != nil {
		return nil, err
	}

	id := uuid.New()

	archiveSize, err := s.store.Save(id.String(), bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to archive csv: %w", err)
	}

	ds := &database.Dataset{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    sanitizeFilename(filename),
		UploadedAt:  time.Now().UTC(),
		ArchiveSize: archiveSize,
		Summary:     *summary,
		Records:     records,
	}

	if err := s.repo.CreateDataset(ctx, ds); err != nil {
		// Clean up archived file on DB failure
		s.store.Delete(id.String())
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}

	s.pruneHistory(ctx, ownerID)

	slog.Info("dataset created",
		"dataset_id", ds.ID,
		"filename", ds.Filename,
		"records", len(records),
		"archive_size", archiveSize,
	)

	return ds, nil
}

// pruneHistory enforces the per-owner retention limit, removing the
// oldest datasets and their archived files. Best-effort: a prune
// failure never fails the upload that triggered it.
func (s *DatasetService) pruneHistory(ctx context.Context, ownerID *uuid.UUID) {
	if s.cfg.HistoryLimit <= 0 {
		return
	}

	pruned, err := s.repo.PruneDatasets(ctx, ownerID, s.cfg.HistoryLimit)
	if err != nil {
		slog.Error("failed to prune dataset history", "error", err)
		return
	}

	for _, id := range pruned {
		if err := s.store.Delete(id.String()); err != nil {
			slog.Error("failed to delete pruned archive file", "dataset_id", id, "error", err)
		}
	}

	if len(pruned) > 0 {
		slog.Info("pruned dataset history", "removed", len(pruned))
	}
}

// List returns dataset metadata visible to an owner, most recent first.
func (s *DatasetService) List(ctx context.Context, ownerID *uuid.UUID, limit int) ([]*database.Dataset, error) {
	return s.repo.ListDatasets(ctx, ownerID, limit)
}

// History returns the most recent datasets for an owner, capped at the
// configured history limit.
func (s *DatasetService) History(ctx context.Context, ownerID *uuid.UUID) ([]*database.Dataset, error) {
	return s.repo.ListDatasets(ctx, ownerID, s.cfg.HistoryLimit)
}

// Get retrieves a dataset including its full record sequence.
func (s *DatasetService) Get(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) (*database.Dataset, error) {
	ds, err := s.repo.GetDataset(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, database.ErrDatasetNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ds, nil
}

// Delete removes a dataset, its records, and its archived CSV.
func (s *DatasetService) Delete(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) error {
	if err := s.repo.DeleteDataset(ctx, id, ownerID); err != nil {
		if errors.Is(err, database.ErrDatasetNotFound) {
			return ErrNotFound
		}
		return err
	}

	// Archive removal is best-effort; the janitor reclaims leftovers.
	if err := s.store.Delete(id.String()); err != nil {
		slog.Error("failed to delete archived csv", "dataset_id", id, "error", err)
	}

	slog.Info("dataset deleted", "dataset_id", id)
	return nil
}

// GenerateReport renders the PDF report for a dataset into w and
// returns the suggested download filename.
func (s *DatasetService) GenerateReport(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, w io.Writer) (string, error) {
	ds, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return "", err
	}

	if err := report.Generate(w, ds); err != nil {
		return "", err
	}

	// Export counter is best-effort, don't fail the download.
	if err := s.repo.IncrementPDFExportCount(ctx, id); err != nil {
		slog.Error("failed to increment pdf export count", "dataset_id", id, "error", err)
	}

	return fmt.Sprintf("chemflow_report_%s.pdf", ds.ID), nil
}

// GetStats returns aggregate service statistics.
func (s *DatasetService) GetStats(ctx context.Context) (*database.Stats, error) {
	return s.repo.GetStats(ctx)
}

// sanitizeFilename strips directory components and limits length.
func sanitizeFilename(name string) string {
	// Normalize Windows-style backslashes to forward slashes before
	// calling filepath.Base, which is platform-specific.
	name = strings.ReplaceAll(name, "\\", "/")

	// Take only the base name
	name = filepath.Base(name)

	// Limit length, keeping the extension unless it is itself
	// absurdly long.
	if len(name) > 255 {
		ext := filepath.Ext(name)
		if len(ext) >= 255 {
			name = name[:255]
		} else {
			name = name[:255-len(ext)] + ext
		}
	}

	if name == "" || name == "." {
		name = "upload.csv"
	}

	return name
}
