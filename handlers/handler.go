package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"splitledger/database"
	"splitledger/ledger"
	"splitledger/middleware"
	"splitledger/services"
	"splitledger/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the HTTP API on top of the ledger service.
type Handler struct {
	ledger  *services.LedgerService
	store   *database.Store
	tokens  *utils.TokenIssuer
	appName string
}

func New(ledgerSvc *services.LedgerService, store *database.Store, tokens *utils.TokenIssuer, appName string) *Handler {
	return &Handler{ledger: ledgerSvc, store: store, tokens: tokens, appName: appName}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics(), middleware.CORSMiddleware())

	// Health check
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==========================================
	// AUTH ROUTES (public)
	// ==========================================
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}

	// ==========================================
	// API ROUTES (authenticated)
	// ==========================================
	api := r.Group("/api")
	api.Use(middleware.AuthRequired(h.tokens))
	{
		// Users
		api.GET("/users", h.ListUsers)
		api.GET("/users/me", h.GetProfile)
		api.PUT("/users/me/fcm-token", h.UpdateFCMToken)

		// Balances
		api.GET("/dashboard", h.GetDashboard)
		api.GET("/balances", h.GetBalances)
		api.GET("/settlement-plan", h.GetSettlementPlan)

		// Expenses
		api.POST("/expenses", h.CreateExpense)
		api.GET("/expenses", h.GetExpenses)
		api.GET("/expenses/:id", h.GetExpense)
		api.DELETE("/expenses/:id", h.DeleteExpense)

		// Shares
		api.POST("/shares/:id/pay", h.PayShare)

		// Settlements
		api.POST("/settlements", h.CreateSettlement)
		api.GET("/settlements/history", h.GetSettlementHistory)

		// Activity
		api.GET("/activity", h.GetActivity)
	}

	return r
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if sqlDB, err := h.store.DB().DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"service": h.appName,
		"mode":    h.ledger.Mode(),
	})
}

// respondError maps ledger errors onto HTTP status codes.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		utils.NotFound(c, err.Error())
	case errors.Is(err, ledger.ErrForbidden):
		utils.Forbidden(c, err.Error())
	case errors.Is(err, ledger.ErrInvalidSplit),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSelfSettlement):
		utils.BadRequest(c, err.Error())
	default:
		slog.Error(fallback, "error", err, "path", c.Request.URL.Path)
		c.Error(err)
		utils.InternalError(c, fallback)
	}
}
