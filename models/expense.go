package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// Amounts go out as JSON numbers, the way clients already read them.
	decimal.MarshalJSONWithoutQuotes = true
}

type Expense struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PaidBy         uuid.UUID       `gorm:"type:uuid;index;not null" json:"paid_by"`
	Payer          User            `gorm:"foreignKey:PaidBy" json:"-"`
	Description    string          `gorm:"not null;size:255" json:"description"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Notes          string          `json:"notes,omitempty"`
	IsFullySettled bool            `gorm:"not null;default:false" json:"is_fully_settled"`
	ExpenseDate    time.Time       `gorm:"index" json:"expense_date"`
	Shares         []ExpenseShare  `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"shares,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ExpenseShare is one debtor's portion of an expense. Position keeps the
// shares in the order they were split.
type ExpenseShare struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ExpenseID  uuid.UUID       `gorm:"type:uuid;index;not null" json:"expense_id"`
	DebtorID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"debtor_id"`
	Debtor     User            `gorm:"foreignKey:DebtorID" json:"-"`
	Position   int             `gorm:"not null;default:0" json:"position"`
	AmountOwed decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_owed"`
	IsPaid     bool            `gorm:"not null;default:false;index" json:"is_paid"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (es *ExpenseShare) BeforeCreate(tx *gorm.DB) error {
	if es.ID == uuid.Nil {
		es.ID = uuid.New()
	}
	return nil
}

// Request structs
type CreateExpenseRequest struct {
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes"`
	ExpenseDate string          `json:"expense_date"` // YYYY-MM-DD
}

type ExpenseListQuery struct {
	Filter string `form:"filter"` // mine, all
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
}

// Response
type ExpenseResponse struct {
	ID             uuid.UUID       `json:"id"`
	PaidBy         uuid.UUID       `json:"paid_by"`
	PayerName      string          `json:"payer_name"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Notes          string          `json:"notes,omitempty"`
	IsFullySettled bool            `json:"is_fully_settled"`
	IsMine         bool            `json:"is_mine"`
	ExpenseDate    time.Time       `json:"expense_date"`
	Shares         []ShareResponse `json:"shares"`
	CreatedAt      time.Time       `json:"created_at"`
}

type ShareResponse struct {
	ID         uuid.UUID       `json:"id"`
	DebtorID   uuid.UUID       `json:"debtor_id"`
	DebtorName string          `json:"debtor_name"`
	AmountOwed decimal.Decimal `json:"amount_owed"`
	IsPaid     bool            `json:"is_paid"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
}

// ShareStatus is returned after a share payment.
type ShareStatus struct {
	ShareID             uuid.UUID `json:"share_id"`
	ExpenseID           uuid.UUID `json:"expense_id"`
	IsPaid              bool      `json:"is_paid"`
	AlreadyPaid         bool      `json:"already_paid"`
	UnpaidShares        int64     `json:"unpaid_shares"`
	ExpenseFullySettled bool      `json:"expense_fully_settled"`
}

func (e *Expense) ToResponse(viewer uuid.UUID, currency string) ExpenseResponse {
	shares := make([]ShareResponse, 0, len(e.Shares))
	for _, s := range e.Shares {
		shares = append(shares, ShareResponse{
			ID:         s.ID,
			DebtorID:   s.DebtorID,
			DebtorName: s.Debtor.Name,
			AmountOwed: s.AmountOwed,
			IsPaid:     s.IsPaid,
			PaidAt:     s.PaidAt,
		})
	}

	return ExpenseResponse{
		ID:             e.ID,
		PaidBy:         e.PaidBy,
		PayerName:      e.Payer.Name,
		Description:    e.Description,
		Amount:         e.Amount,
		Currency:       currency,
		Notes:          e.Notes,
		IsFullySettled: e.IsFullySettled,
		IsMine:         e.PaidBy == viewer,
		ExpenseDate:    e.ExpenseDate,
		Shares:         shares,
		CreatedAt:      e.CreatedAt,
	}
}
