package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/response"
)

type classLister interface {
	ListClasses(ctx context.Context, principal models.Principal) ([]models.Class, error)
}

// DropdownHandler serves selector lists outside a form session.
type DropdownHandler struct {
	classes classLister
}

// NewDropdownHandler builds a new handler.
func NewDropdownHandler(classes classLister) *DropdownHandler {
	return &DropdownHandler{classes: classes}
}

// Classes godoc
// @Summary List classes for the class selector
// @Tags Dropdown
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /dropdown/kelas [get]
func (h *DropdownHandler) Classes(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.classes.ListClasses(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.Class{}
	}
	response.JSON(c, http.StatusOK, items)
}
