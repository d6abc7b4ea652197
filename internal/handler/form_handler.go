package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-jadwal-mapel/internal/dto"
	"github.com/noah-isme/sma-jadwal-mapel/internal/jadwal"
	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	"github.com/noah-isme/sma-jadwal-mapel/internal/service"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/response"
)

type formService interface {
	Open(ctx context.Context, principal models.Principal, req dto.OpenFormRequest) (*dto.FormView, error)
	Get(ctx context.Context, principal models.Principal, id string) (*dto.FormView, error)
	Discard(ctx context.Context, principal models.Principal, id string) error
	SelectClass(ctx context.Context, principal models.Principal, id string, req dto.SelectClassRequest) (*dto.FormView, error)
	AddRow(ctx context.Context, principal models.Principal, id string, day models.ID) (*dto.FormView, error)
	RemoveRow(ctx context.Context, principal models.Principal, id string, day models.ID, index int) (*dto.FormView, error)
	SetField(ctx context.Context, principal models.Principal, id string, day models.ID, index int, req dto.SetFieldRequest) (*dto.FormView, error)
	RowOptions(ctx context.Context, principal models.Principal, id string, day models.ID, index int) (*dto.RowOptionsView, error)
	Preview(ctx context.Context, principal models.Principal, id string) (*dto.PreviewView, error)
	Export(ctx context.Context, principal models.Principal, id, format string) (*dto.ExportFile, error)
	Submit(ctx context.Context, principal models.Principal, id string) (*dto.SubmitView, error)
}

// FormHandler exposes schedule form session endpoints.
type FormHandler struct {
	service formService
}

// NewFormHandler builds a new handler.
func NewFormHandler(service formService) *FormHandler {
	return &FormHandler{service: service}
}

// Open godoc
// @Summary Open a schedule form session
// @Tags JadwalForms
// @Accept json
// @Produce json
// @Param payload body dto.OpenFormRequest true "Form mode and, for edit, the stored entry"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /jadwal-forms [post]
func (h *FormHandler) Open(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.OpenFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid form payload"))
		return
	}
	view, err := h.service.Open(c.Request.Context(), principal, req)
	if err != nil {
		formError(c, err)
		return
	}
	response.Created(c, view)
}

// Get godoc
// @Summary Get a schedule form session
// @Tags JadwalForms
// @Produce json
// @Param id path string true "Form session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /jadwal-forms/{id} [get]
func (h *FormHandler) Get(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		formError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Discard godoc
// @Summary Discard a schedule form session
// @Tags JadwalForms
// @Param id path string true "Form session ID"
// @Success 204
// @Router /jadwal-forms/{id} [delete]
func (h *FormHandler) Discard(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Discard(c.Request.Context(), principal, c.Param("id")); err != nil {
		formError(c, err)
		return
	}
	response.NoContent(c)
}

// SelectClass godoc
// @Summary Select the class and load its catalog and occupancy
// @Tags JadwalForms
// @Accept json
// @Produce json
// @Param id path string true "Form session ID"
// @Param payload body dto.SelectClassRequest true "Class selection"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /jadwal-forms/{id}/class [put]
func (h *FormHandler) SelectClass(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SelectClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid class payload"))
		return
	}
	view, err := h.service.SelectClass(c.Request.Context(), principal, c.Param("id"), req)
	if err != nil {
		formError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// AddRow godoc
// @Summary Add an empty row to a day
// @Tags JadwalForms
// @Produce json
// @Param id path string true "Form session ID"
// @Param dayId path string true "Day ID"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /jadwal-forms/{id}/days/{dayId}/rows [post]
func (h *FormHandler) AddRow(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.AddRow(c.Request.Context(), principal, c.Param("id"), models.ID(c.Param("dayId")))
	if err != nil {
		formError(c, err)
		return
	}
	response.Created(c, view)
}

// RemoveRow godoc
// @Summary Remove a row from a day
// @Tags JadwalForms
// @Produce json
// @Param id path string true "Form session ID"
// @Param dayId path string true "Day ID"
// @Param index path int true "Row index"
// @Success 200 {object} response.Envelope
// @Router /jadwal-forms/{id}/days/{dayId}/rows/{index} [delete]
func (h *FormHandler) RemoveRow(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	index, err := rowIndexParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.RemoveRow(c.Request.Context(), principal, c.Param("id"), models.ID(c.Param("dayId")), index)
	if err != nil {
		formError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// SetField godoc
// @Summary Set the slot, offering or teacher of a row
// @Tags JadwalForms
// @Accept json
// @Produce json
// @Param id path string true "Form session ID"
// @Param dayId path string true "Day ID"
// @Param index path int true "Row index"
// @Param payload body dto.SetFieldRequest true "Field update"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /jadwal-forms/{id}/days/{dayId}/rows/{index} [patch]
func (h *FormHandler) SetField(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	index, err := rowIndexParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SetFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid field payload"))
		return
	}
	view, err := h.service.SetField(c.Request.Context(), principal, c.Param("id"), models.ID(c.Param("dayId")), index, req)
	if err != nil {
		formError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// RowOptions godoc
// @Summary List selectable slots, offerings and teachers for a row
// @Tags JadwalForms
// @Produce json
// @Param id path string true "Form session ID"
// @Param dayId path string true "Day ID"
// @Param index path int true "Row index"
// @Success 200 {object} response.Envelope
// @Router /jadwal-forms/{id}/days/{dayId}/rows/{index}/options [get]
func (h *FormHandler) RowOptions(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	index, err := rowIndexParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.RowOptions(c.Request.Context(), principal, c.Param("id"), models.ID(c.Param("dayId")), index)
	if err != nil {
		formError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Preview godoc
// @Summary Preview the assembled submission
// @Tags JadwalForms
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Form session ID"
// @Param format query string false "json (default), csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /jadwal-forms/{id}/preview [get]
func (h *FormHandler) Preview(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", service.FormatJSON))
	if format != service.FormatJSON {
		file, err := h.service.Export(c.Request.Context(), principal, c.Param("id"), format)
		if err != nil {
			formError(c, err)
			return
		}
		response.File(c, file.ContentType, file.Filename, file.Body)
		return
	}

	view, err := h.service.Preview(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		formError(c, err)
		return
	}
	var meta map[string]interface{}
	if len(view.Dropped) > 0 {
		meta = map[string]interface{}{"dropped": view.Dropped}
	}
	response.JSON(c, http.StatusOK, view, meta)
}

// Submit godoc
// @Summary Submit the form to the schedule backend
// @Tags JadwalForms
// @Produce json
// @Param id path string true "Form session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /jadwal-forms/{id}/submit [post]
func (h *FormHandler) Submit(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.Submit(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		formError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// formError attaches the display lines the form should show for err.
func formError(c *gin.Context, err error) {
	response.Error(c, err, map[string]interface{}{"messages": jadwal.Messages(err)})
}
