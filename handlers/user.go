package handlers

import (
	"net/http"
	"splitledger/models"
	"splitledger/utils"

	"github.com/gin-gonic/gin"
)

type UpdateFCMTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// GET /api/users/me
func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.store.GetUser(c.Request.Context(), utils.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "Failed to load profile")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", user.ToResponse())
}

// GET /api/users — everyone who shares the ledger, in ledger order
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.ledger.Users(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load users")
		return
	}

	responses := make([]models.UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, users[i].ToResponse())
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// PUT /api/users/me/fcm-token
func (h *Handler) UpdateFCMToken(c *gin.Context) {
	var req UpdateFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.store.UpdateFCMToken(c.Request.Context(), utils.GetCurrentUserID(c), req.Token); err != nil {
		respondError(c, err, "Failed to update FCM token")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "FCM token updated", nil)
}
