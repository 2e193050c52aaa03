package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Settlement struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PaidBy    uuid.UUID       `gorm:"type:uuid;index;not null" json:"paid_by"`
	Payer     User            `gorm:"foreignKey:PaidBy" json:"-"`
	PaidTo    uuid.UUID       `gorm:"type:uuid;index;not null" json:"paid_to"`
	Payee     User            `gorm:"foreignKey:PaidTo" json:"-"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}

func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type CreateSettlementRequest struct {
	PaidTo string          `json:"paid_to" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes"`
}

type SettlementResponse struct {
	ID        uuid.UUID       `json:"id"`
	PaidBy    uuid.UUID       `json:"paid_by"`
	Payer     string          `json:"payer"`
	PaidTo    uuid.UUID       `json:"paid_to"`
	Receiver  string          `json:"receiver"`
	Amount    decimal.Decimal `json:"amount"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *Settlement) ToResponse() SettlementResponse {
	return SettlementResponse{
		ID:        s.ID,
		PaidBy:    s.PaidBy,
		Payer:     s.Payer.Name,
		PaidTo:    s.PaidTo,
		Receiver:  s.Payee.Name,
		Amount:    s.Amount,
		Notes:     s.Notes,
		CreatedAt: s.CreatedAt,
	}
}
