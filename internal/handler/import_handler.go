package handler

import (
	"errors"
	"io"
	"net/http"

	"landedcost/internal/ingest"
	"landedcost/internal/service"
	"landedcost/pkg/pagination"
	"landedcost/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ImportHandler struct {
	importService      service.ImportService
	maintenanceService service.MaintenanceService
}

func NewImportHandler(importService service.ImportService, maintenanceService service.MaintenanceService) *ImportHandler {
	return &ImportHandler{importService: importService, maintenanceService: maintenanceService}
}

func (h *ImportHandler) RegisterRoutes(router *gin.RouterGroup) {
	imports := router.Group("/api/imports")
	{
		imports.POST("", h.RunImport)
		imports.POST("/csv", h.RunCSVImport)
		imports.POST("/llm", h.RunLLMImport)
		imports.GET("", h.ListRuns)
		imports.POST("/sweep", h.SweepStale)
		imports.POST("/prune", h.Prune)
	}
}

type runImportRequest struct {
	Source    string          `json:"source" binding:"required"`
	Job       string          `json:"job" binding:"required"`
	Rows      []ingest.RawRow `json:"rows" binding:"required"`
	BatchSize int             `json:"batch_size"`
	ImportID  string          `json:"import_id"`
	DryRun    bool            `json:"dry_run"`
}

// RunImport ingests pre-normalized rows from a source adapter
func (h *ImportHandler) RunImport(c *gin.Context) {
	var req runImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	importReq := service.ImportRequest{
		Source:    req.Source,
		Job:       req.Job,
		Rows:      req.Rows,
		BatchSize: req.BatchSize,
		DryRun:    req.DryRun,
	}
	if req.ImportID != "" {
		id, err := uuid.Parse(req.ImportID)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid import_id"))
			return
		}
		importReq.ImportID = &id
	}

	h.run(c, importReq)
}

// RunCSVImport ingests a CSV feed body; the row kind comes from the query
func (h *ImportHandler) RunCSVImport(c *gin.Context) {
	source := c.Query("source")
	job := c.Query("job")
	kind := ingest.Kind(c.Query("kind"))
	if source == "" || job == "" || kind == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "source, job and kind query params are required"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "failed to read body: "+err.Error()))
		return
	}
	rows, err := ingest.DecodeCSV(kind, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	h.run(c, service.ImportRequest{
		Source: source,
		Job:    job,
		Rows:   rows,
		DryRun: c.Query("dry_run") == "true",
	})
}

// RunLLMImport ingests a schema-validated LLM extraction payload
func (h *ImportHandler) RunLLMImport(c *gin.Context) {
	source := c.Query("source")
	job := c.Query("job")
	if source == "" || job == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "source and job query params are required"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "failed to read body: "+err.Error()))
		return
	}
	rows, dropped, err := ingest.DecodeLLMRows(body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ingest.ErrBatchTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	h.run(c, service.ImportRequest{
		Source: source,
		Job:    job,
		Rows:   rows,
		DryRun: c.Query("dry_run") == "true",
	}, dropped...)
}

// run executes the import and writes the shared response mapping. Rows the
// decoder already rejected are folded into the result's dropped list so the
// caller sees one complete reject report.
func (h *ImportHandler) run(c *gin.Context, req service.ImportRequest, preDropped ...ingest.RowError) {
	result, err := h.importService.Run(c.Request.Context(), req)
	result.Dropped = append(preDropped, result.Dropped...)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptySource):
			c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, err.Error()))
		case errors.Is(err, service.ErrImportAlreadyRunning):
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListRuns returns paginated import runs, newest first
func (h *ImportHandler) ListRuns(c *gin.Context) {
	params := pagination.Parse(c)
	runs, total, err := h.importService.ListRuns(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, runs, params.Page, params.Limit, total))
}

// SweepStale force-fails import runs stuck past the staleness threshold
func (h *ImportHandler) SweepStale(c *gin.Context) {
	var req service.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.maintenanceService.SweepStaleImports(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Prune deletes provenance and finished import runs older than the cutoff
func (h *ImportHandler) Prune(c *gin.Context) {
	var req service.PruneRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.maintenanceService.PruneImports(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
