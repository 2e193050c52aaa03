package handlers

import (
	"net/http"
	"splitledger/models"
	"splitledger/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// POST /api/settlements
func (h *Handler) CreateSettlement(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req models.CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	paidTo, err := uuid.Parse(req.PaidTo)
	if err != nil {
		utils.BadRequest(c, "Invalid paid_to user ID")
		return
	}

	settlement, err := h.ledger.RecordSettlement(c.Request.Context(), userID, paidTo, req.Amount, req.Notes)
	if err != nil {
		respondError(c, err, "Failed to create settlement")
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Payment recorded", settlement.ToResponse())
}

// GET /api/settlements/history
func (h *Handler) GetSettlementHistory(c *gin.Context) {
	var pagination utils.PaginationQuery
	c.ShouldBindQuery(&pagination)
	pagination.Normalize()

	settlements, err := h.ledger.SettlementHistory(c.Request.Context(), pagination.Limit, pagination.Offset())
	if err != nil {
		respondError(c, err, "Failed to load settlements")
		return
	}

	responses := make([]models.SettlementResponse, 0, len(settlements))
	for i := range settlements {
		responses = append(responses, settlements[i].ToResponse())
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}
