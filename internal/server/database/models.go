package database

import (
	"time"

	"github.com/google/uuid"

	"chemflow/internal/core"
)

// User is a registered account.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Dataset is one uploaded CSV together with its parsed records and the
// summary cached at creation time. OwnerID is nil for datasets created
// through the unauthenticated surface.
type Dataset struct {
	ID             uuid.UUID
	OwnerID        *uuid.UUID
	Filename       string
	UploadedAt     time.Time
	ArchiveSize    int64
	PDFExportCount int
	Summary        core.Summary
	Records        []core.EquipmentRecord
}

// Stats holds aggregate service statistics.
type Stats struct {
	TotalDatasets   int64
	TotalRecords    int64
	TotalPDFExports int64
	ArchiveBytes    int64
}
