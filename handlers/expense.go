package handlers

import (
	"net/http"
	"splitledger/models"
	"splitledger/services"
	"splitledger/utils"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// POST /api/expenses
func (h *Handler) CreateExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	var expenseDate time.Time
	if req.ExpenseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpenseDate)
		if err != nil {
			utils.BadRequest(c, "expense_date must be YYYY-MM-DD")
			return
		}
		expenseDate = parsed
	}

	expense, err := h.ledger.CreateExpenseWithSplit(c.Request.Context(), userID, services.NewExpense{
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Notes:       req.Notes,
		Date:        expenseDate,
	})
	if err != nil {
		respondError(c, err, "Failed to create expense")
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Expense added", expense.ToResponse(userID, h.ledger.Currency()))
}

// GET /api/expenses?filter=mine|all
func (h *Handler) GetExpenses(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var query models.ExpenseListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	pagination := utils.PaginationQuery{Page: query.Page, Limit: query.Limit}
	pagination.Normalize()

	expenses, err := h.ledger.ListExpenses(c.Request.Context(), userID, query.Filter == "mine", pagination.Limit, pagination.Offset())
	if err != nil {
		respondError(c, err, "Failed to load expenses")
		return
	}

	responses := make([]models.ExpenseResponse, 0, len(expenses))
	for i := range expenses {
		responses = append(responses, expenses[i].ToResponse(userID, h.ledger.Currency()))
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// GET /api/expenses/:id
func (h *Handler) GetExpense(c *gin.Context) {
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	expense, err := h.ledger.GetExpense(c.Request.Context(), expenseID)
	if err != nil {
		respondError(c, err, "Failed to load expense")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", expense.ToResponse(utils.GetCurrentUserID(c), h.ledger.Currency()))
}

// DELETE /api/expenses/:id
func (h *Handler) DeleteExpense(c *gin.Context) {
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	if err := h.ledger.DeleteExpense(c.Request.Context(), utils.GetCurrentUserID(c), expenseID); err != nil {
		respondError(c, err, "Failed to delete expense")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Expense deleted", nil)
}
