package handlers

import (
	"net/http"
	"splitledger/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// POST /api/shares/:id/pay
func (h *Handler) PayShare(c *gin.Context) {
	shareID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid share ID")
		return
	}

	status, err := h.ledger.PayShare(c.Request.Context(), utils.GetCurrentUserID(c), shareID)
	if err != nil {
		respondError(c, err, "Failed to pay share")
		return
	}

	message := "Share paid"
	if status.AlreadyPaid {
		message = "Share was already paid"
	}
	utils.SuccessResponse(c, http.StatusOK, message, status)
}
