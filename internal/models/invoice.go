package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	TenantID      uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	OrderID       uuid.UUID       `json:"order_id" db:"order_id"`
	InvoiceNumber string          `json:"invoice_number" db:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	DocumentKey   *string         `json:"document_key" db:"document_key"`
	DocumentURL   string          `json:"document_url,omitempty" db:"-"`
	Status        string          `json:"status" db:"status"`
	IssuedAt      time.Time       `json:"issued_at" db:"issued_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
