package handler

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logvault/logvault/internal/model"
	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/logvault/logvault/internal/repository"
	"github.com/logvault/logvault/internal/service"
)

type LogsHandler struct {
	svc *service.QueryService
}

func NewLogsHandler(svc *service.QueryService) *LogsHandler {
	return &LogsHandler{svc: svc}
}

// List serves GET /v1/logs: a filtered scan over all files (or the
// files named by repeated file_id params), ordered by ts.
func (h *LogsHandler) List(c *gin.Context) {
	f := model.Filter{To: math.MaxFloat64}

	if raw := c.Query("from"); raw != "" {
		ts, err := parseTS(raw)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
		f.From = ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := parseTS(raw)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
		f.To = ts
	}
	if raw := c.Query("user_id"); raw != "" {
		f.UserID = &raw
	}
	if raw := c.Query("status"); raw != "" {
		status, err := strconv.Atoi(raw)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("invalid status code"))
			return
		}
		f.StatusCode = &status
	}
	f.FileIDs = c.QueryArray("file_id")

	limit := parseLimit(c)

	cur, err := h.svc.Filtered(c.Request.Context(), f)
	if err != nil {
		c.Error(err)
		return
	}
	records, err := collect(cur, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// FileRecords serves GET /v1/files/:file_id/records: an ordered range
// scan over one file's line numbers.
func (h *LogsHandler) FileRecords(c *gin.Context) {
	fileID := c.Param("file_id")

	fromLine := int64(1)
	toLine := int64(math.MaxInt64)
	if raw := c.Query("from_line"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("invalid from_line"))
			return
		}
		fromLine = n
	}
	if raw := c.Query("to_line"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("invalid to_line"))
			return
		}
		toLine = n
	}

	limit := parseLimit(c)

	cur, err := h.svc.File(c.Request.Context(), fileID, fromLine, toLine)
	if err != nil {
		c.Error(err)
		return
	}
	records, err := collect(cur, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Record serves GET /v1/files/:file_id/records/:line_no.
func (h *LogsHandler) Record(c *gin.Context) {
	fileID := c.Param("file_id")
	lineNo, err := strconv.ParseInt(c.Param("line_no"), 10, 64)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid line_no"))
		return
	}

	rec, err := h.svc.Record(c.Request.Context(), fileID, lineNo)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// collect drains up to limit records from a cursor and closes it.
func collect(cur repository.Cursor, limit int) ([]*model.LogRecord, error) {
	defer cur.Close()

	records := make([]*model.LogRecord, 0, limit)
	for len(records) < limit && cur.Next() {
		records = append(records, cur.Record())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func parseLimit(c *gin.Context) int {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 10000 {
		limit = 10000
	}
	return limit
}

// parseTS accepts either fractional epoch seconds or RFC3339.
func parseTS(raw string) (float64, error) {
	if ts, err := strconv.ParseFloat(raw, 64); err == nil {
		return ts, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return float64(t.UnixNano()) / float64(time.Second), nil
	}
	return 0, fmt.Errorf("invalid time format")
}
