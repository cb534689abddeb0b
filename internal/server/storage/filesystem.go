package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store defines the interface for raw-CSV archive backends.
// This allows swapping filesystem for S3 or other backends later.
type Store interface {
	Save(datasetID string, data io.Reader) (int64, error)
	GetPath(datasetID string) (string, error)
	Delete(datasetID string) error
	List() ([]string, error)
	EnsureDir() error
}

// FileSystemStore archives uploaded CSV files on the local filesystem.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem archive backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the archive directory if it doesn't exist.
func (fs *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Save writes data from a reader to a file named {datasetID}.csv.
// Returns the number of bytes written.
func (fs *FileSystemStore) Save(datasetID string, data io.Reader) (int64, error) {
	filePath := fs.filePath(datasetID)

	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	n, err := io.Copy(file, data)
	if err != nil {
		// Clean up partial file on error
		os.Remove(filePath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return n, nil
}

// GetPath returns the absolute path to an archived CSV.
// Returns an error if the file does not exist.
func (fs *FileSystemStore) GetPath(datasetID string) (string, error) {
	filePath := fs.filePath(datasetID)

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found for dataset %s", datasetID)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	return filePath, nil
}

// Delete removes the archived CSV for a dataset.
func (fs *FileSystemStore) Delete(datasetID string) error {
	filePath := fs.filePath(datasetID)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}

// List returns the dataset ids of all archived files.
func (fs *FileSystemStore) List() ([]string, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}
		ids = append(ids, entry.Name()[:len(entry.Name())-len(".csv")])
	}
	return ids, nil
}

func (fs *FileSystemStore) filePath(datasetID string) string {
	return filepath.Join(fs.basePath, datasetID+".csv")
}
