package api

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"chemflow/internal/core"
	"chemflow/internal/server/database"
	"chemflow/internal/server/report"
	"chemflow/internal/server/service"
)

// Handler contains the HTTP handlers for the ChemFlow API.
type Handler struct {
	datasets *service.DatasetService
	auth     *service.AuthService
	db       *database.DB
}

// NewHandler creates a new handler with the given service dependencies.
func NewHandler(datasets *service.DatasetService, auth *service.AuthService, db *database.DB) *Handler {
	return &Handler{datasets: datasets, auth: auth, db: db}
}

// datasetMeta is the list/history view of a dataset: metadata plus the
// cached summary, records omitted.
type datasetMeta struct {
	ID         uuid.UUID    `json:"id"`
	Filename   string       `json:"filename"`
	UploadedAt time.Time    `json:"uploaded_at"`
	Summary    core.Summary `json:"summary"`
}

// datasetDetail additionally carries the full record sequence.
type datasetDetail struct {
	datasetMeta
	Records []core.EquipmentRecord `json:"records"`
}

func toMeta(ds *database.Dataset) datasetMeta {
	return datasetMeta{
		ID:         ds.ID,
		Filename:   ds.Filename,
		UploadedAt: ds.UploadedAt,
		Summary:    ds.Summary,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// HandleRegister handles POST /register/.
func (h *Handler) HandleRegister(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	result, err := h.auth.Register(c.Request().Context(), req.Username, req.Password, req.Email)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// HandleLogin handles POST /login/.
func (h *Handler) HandleLogin(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	result, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// uploadDataset reads the multipart "file" field and runs it through
// the dataset service.
func (h *Handler) uploadDataset(c echo.Context) (*database.Dataset, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "file is required (use form field 'file')")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file")
	}
	defer src.Close()

	return h.datasets.Upload(
		c.Request().Context(),
		fileHeader.Filename,
		src,
		fileHeader.Size,
		currentOwner(c),
	)
}

// HandleUpload handles POST /upload/.
// Returns the parsed records together with the computed summary.
func (h *Handler) HandleUpload(c echo.Context) error {
	ds, err := h.uploadDataset(c)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return c.JSON(httpErr.Code, echo.Map{"error": httpErr.Message})
		}
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"dataset_id":  ds.ID,
		"filename":    ds.Filename,
		"uploaded_at": ds.UploadedAt,
		"data":        ds.Records,
		"summary":     ds.Summary,
	})
}

// HandleDatasetUpload handles POST /datasets/upload/.
// Returns the full created dataset object.
func (h *Handler) HandleDatasetUpload(c echo.Context) error {
	ds, err := h.uploadDataset(c)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return c.JSON(httpErr.Code, echo.Map{"error": httpErr.Message})
		}
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, datasetDetail{
		datasetMeta: toMeta(ds),
		Records:     ds.Records,
	})
}

// HandleHistory handles GET /history/.
// Returns the caller's most recent datasets, newest first.
func (h *Handler) HandleHistory(c echo.Context) error {
	datasets, err := h.datasets.History(c.Request().Context(), currentOwner(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	out := make([]datasetMeta, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, toMeta(ds))
	}
	return c.JSON(http.StatusOK, out)
}

// HandleListDatasets handles GET /datasets/.
func (h *Handler) HandleListDatasets(c echo.Context) error {
	datasets, err := h.datasets.List(c.Request().Context(), currentOwner(c), 0)
	if err != nil {
		return mapServiceError(c, err)
	}

	out := make([]datasetMeta, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, toMeta(ds))
	}
	return c.JSON(http.StatusOK, out)
}

// HandleGetDataset handles GET /datasets/:id/.
// Returns the full dataset including its record sequence.
func (h *Handler) HandleGetDataset(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		// Malformed ids are indistinguishable from unknown ones.
		return mapServiceError(c, service.ErrNotFound)
	}

	ds, err := h.datasets.Get(c.Request().Context(), id, currentOwner(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, datasetDetail{
		datasetMeta: toMeta(ds),
		Records:     ds.Records,
	})
}

// HandleDeleteDataset handles DELETE /datasets/:id/.
func (h *Handler) HandleDeleteDataset(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return mapServiceError(c, service.ErrNotFound)
	}

	if err := h.datasets.Delete(c.Request().Context(), id, currentOwner(c)); err != nil {
		return mapServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleGeneratePDF handles GET /generate-pdf/:id/ and
// GET /datasets/:id/generate_pdf/.
// Streams the rendered report as a PDF attachment.
func (h *Handler) HandleGeneratePDF(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return mapServiceError(c, service.ErrNotFound)
	}

	var buf bytes.Buffer
	filename, err := h.datasets.GenerateReport(c.Request().Context(), id, currentOwner(c), &buf)
	if err != nil {
		return mapServiceError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// HandleStats handles GET /api/stats.
// Returns aggregate service statistics.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.datasets.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_datasets":     stats.TotalDatasets,
		"total_records":      stats.TotalRecords,
		"total_pdf_exports":  stats.TotalPDFExports,
		"archive_used_bytes": stats.ArchiveBytes,
		"archive_used_human": humanizeBytes(stats.ArchiveBytes),
	})
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var parseErr *core.ParseError
	switch {
	case errors.As(err, &parseErr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": parseErr.Error()})
	case errors.Is(err, core.ErrNoRecords):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no valid data found in file"})
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "file exceeds maximum allowed size",
		})
	case errors.Is(err, service.ErrMissingCredentials):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username and password are required"})
	case errors.Is(err, service.ErrUsernameTaken):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username already exists"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "dataset not found"})
	case errors.Is(err, report.ErrNoRecords), errors.Is(err, report.ErrNoSummary):
		// The store never persists such datasets; this is an integrity problem.
		slog.Error("report generation failed on stored dataset", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate report"})
	default:
		slog.Error("internal error", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
