package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/logvault/logvault/internal/service"
)

type IngestHandler struct {
	svc     *service.IngestService
	tracker *service.PositionTracker
}

func NewIngestHandler(svc *service.IngestService, tracker *service.PositionTracker) *IngestHandler {
	return &IngestHandler{svc: svc, tracker: tracker}
}

type ingestRequest struct {
	Path   string `json:"path" binding:"required"`
	Resume bool   `json:"resume"`
}

// Start serves POST /v1/ingest: kicks off an ingestion run for a file
// path and returns immediately; progress is polled via Status.
func (h *IngestHandler) Start(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	runID, err := h.svc.StartPath(req.Path, req.Resume)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "started", "run_id": runID, "path": req.Path})
}

// Status serves GET /v1/ingest/:run_id.
func (h *IngestHandler) Status(c *gin.Context) {
	runID := c.Param("run_id")
	stats, ok := h.svc.RunStatus(runID)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrNotFound, "unknown run id", nil))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Position serves GET /v1/files/:file_id/position: the current
// watermark and the next line ingestion would read.
func (h *IngestHandler) Position(c *gin.Context) {
	fileID := c.Param("file_id")

	watermark, err := h.tracker.Watermark(c.Request.Context(), fileID)
	if err != nil {
		c.Error(err)
		return
	}
	next, err := h.tracker.NextExpected(c.Request.Context(), fileID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file_id":       fileID,
		"watermark":     watermark,
		"next_expected": next,
	})
}
