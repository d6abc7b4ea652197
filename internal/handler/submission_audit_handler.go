package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/response"
)

type submissionAuditLister interface {
	List(ctx context.Context, filter models.SubmissionAuditFilter) ([]models.SubmissionAudit, error)
}

// SubmissionAuditHandler exposes the submission audit trail.
type SubmissionAuditHandler struct {
	audits submissionAuditLister
}

// NewSubmissionAuditHandler builds a new handler.
func NewSubmissionAuditHandler(audits submissionAuditLister) *SubmissionAuditHandler {
	return &SubmissionAuditHandler{audits: audits}
}

// List godoc
// @Summary List schedule submission attempts
// @Tags JadwalSubmissions
// @Produce json
// @Param classId query string false "Class ID filter"
// @Param userId query string false "Submitting user filter"
// @Param limit query int false "Maximum rows (default 50, max 200)"
// @Success 200 {object} response.Envelope
// @Router /jadwal-submissions [get]
func (h *SubmissionAuditHandler) List(c *gin.Context) {
	filter := models.SubmissionAuditFilter{
		ClassID: c.Query("classId"),
		UserID:  c.Query("userId"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}
	items, err := h.audits.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"count": len(items)})
}
