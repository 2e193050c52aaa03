package handlers

import (
	"net/http"
	"splitledger/utils"

	"github.com/gin-gonic/gin"
)

// GET /api/dashboard
func (h *Handler) GetDashboard(c *gin.Context) {
	dashboard, err := h.ledger.Dashboard(c.Request.Context(), utils.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "Failed to load dashboard")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", dashboard)
}

// GET /api/balances
func (h *Handler) GetBalances(c *gin.Context) {
	summary, err := h.ledger.ComputeBalances(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to compute balances")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", summary)
}

// GET /api/settlement-plan
func (h *Handler) GetSettlementPlan(c *gin.Context) {
	plan, err := h.ledger.ComputeSettlementPlan(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to compute settlement plan")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", plan)
}
