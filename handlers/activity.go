package handlers

import (
	"net/http"
	"splitledger/utils"

	"github.com/gin-gonic/gin"
)

// GET /api/activity — ledger activity feed, newest first
func (h *Handler) GetActivity(c *gin.Context) {
	var pagination utils.PaginationQuery
	c.ShouldBindQuery(&pagination)
	pagination.Normalize()

	activities, err := h.ledger.Activity(c.Request.Context(), pagination.Limit, pagination.Offset())
	if err != nil {
		respondError(c, err, "Failed to load activity")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", activities)
}
