package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserBalance is one user's net position.
// Positive = the group owes them, negative = they owe the group.
type UserBalance struct {
	UserID uuid.UUID       `json:"user_id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Transfer represents a suggested payment between two users
type Transfer struct {
	From     uuid.UUID       `json:"payer_id"`
	FromName string          `json:"from"`
	To       uuid.UUID       `json:"receiver_id"`
	ToName   string          `json:"to"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// BalanceSummary is returned for GET /api/balances
type BalanceSummary struct {
	Mode       string          `json:"mode"`
	Currency   string          `json:"currency"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	Balances   []UserBalance   `json:"balances"`
}

// DashboardResponse is returned for GET /api/dashboard
type DashboardResponse struct {
	MyBalance         decimal.Decimal   `json:"my_balance"`
	Currency          string            `json:"currency"`
	SuggestedPayments []Transfer        `json:"suggested_payments"`
	Expenses          []ExpenseResponse `json:"expenses"`
}
