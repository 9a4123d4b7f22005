package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/findings-exporter/internal/aggregator"
	"github.com/kurihiro0119/findings-exporter/internal/domain"
	apperrors "github.com/kurihiro0119/findings-exporter/internal/errors"
	"github.com/kurihiro0119/findings-exporter/internal/export"
)

// Handler handles API requests
type Handler struct {
	aggregator aggregator.Aggregator
}

// NewHandler creates a new API handler
func NewHandler(agg aggregator.Aggregator) *Handler {
	return &Handler{
		aggregator: agg,
	}
}

// ListRuns returns archived runs, most recent first
// GET /api/v1/runs
func (h *Handler) ListRuns(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50)

	runs, err := h.aggregator.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	data := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		data = append(data, newRunResponse(r))
	}

	c.JSON(http.StatusOK, gin.H{
		"data": data,
	})
}

// GetRun returns a run with its report jobs
// GET /api/v1/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	run, jobs, err := h.aggregator.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := newRunResponse(run)
	resp.Jobs = make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, JobResponse{
			Interval:     j.IntervalIndex + 1,
			Start:        j.Start.Format(domain.ReportTimeLayout),
			End:          j.End.Format(domain.ReportTimeLayout),
			ReportID:     j.ReportID,
			Status:       j.Status,
			Polls:        j.Polls,
			FindingCount: j.FindingCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": resp,
	})
}

// GetFindings returns the findings of a run, optionally filtered by field value
// GET /api/v1/runs/:id/findings?field=app_name&value=billing
func (h *Handler) GetFindings(c *gin.Context) {
	filter := export.Filter{Field: c.Query("field"), Value: c.Query("value")}
	if filter.Field == "" && filter.Value != "" {
		respondError(c, apperrors.NewBadRequestError("value requires field"))
		return
	}

	findings, err := h.aggregator.GetFindings(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if findings == nil {
		findings = []domain.Record{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  findings,
		"count": len(findings),
	})
}

// GetSummary returns finding counts of a run grouped by a field
// GET /api/v1/runs/:id/summary?group_by=app_name
func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.aggregator.SummarizeRun(c.Request.Context(), c.Param("id"), c.DefaultQuery("group_by", "app_name"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": summary,
	})
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// parseIntQuery parses an integer query parameter with a default value
func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		},
	})
}
