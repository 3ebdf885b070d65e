package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/agrilink/internal/server/http/dto"
)

// ValidationHandler lets extension officers review submitted orders.
type ValidationHandler struct {
	facade ValidationFacade
}

// NewValidationHandler constructs ValidationHandler.
func NewValidationHandler(facade ValidationFacade) *ValidationHandler {
	return &ValidationHandler{facade: facade}
}

// Queue handles GET /api/validations.
func (h *ValidationHandler) Queue(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	orders, err := h.facade.ValidationQueue(c.Request.Context(), CurrentUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponses(orders))
}

// Decide handles POST /api/validations/:id.
func (h *ValidationHandler) Decide(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("malformed request"))
		return
	}
	order, err := h.facade.DecideValidation(c.Request.Context(), CurrentUserID(c), c.Param("id"), req.Approved, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}
