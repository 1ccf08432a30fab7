package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/random"
	"github.com/shopspring/decimal"
)

// OrderNumberPrefix is the fixed prefix of every generated order number.
const OrderNumberPrefix = "ORD"

var (
	// ErrInvalidLineItem is returned when a line item carries values that
	// slipped past request validation (quantity < 1 or negative unit price).
	ErrInvalidLineItem = errors.New("invalid line item")

	// ErrNoLineItems is returned when an order without any line items is
	// about to be persisted. Such an order must never be durably committed.
	ErrNoLineItems = errors.New("order has no line items")
)

type Order struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	TenantID    uuid.UUID        `json:"tenant_id" db:"tenant_id"`
	CreatedBy   uuid.UUID        `json:"created_by" db:"created_by"`
	OrderNumber string           `json:"order_number" db:"order_number"`
	Subtotal    decimal.Decimal  `json:"subtotal" db:"subtotal"`
	TaxAmount   decimal.Decimal  `json:"tax_amount" db:"tax_amount"`
	Total       decimal.Decimal  `json:"total" db:"total"`
	Notes       *string          `json:"notes" db:"notes"`
	Items       []*OrderLineItem `json:"items"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

type OrderLineItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderID     uuid.UUID       `json:"order_id" db:"order_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal" db:"subtotal"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// NewOrder initializes an order scoped to tenantID and audited to the
// creating user. Subtotal starts at zero and total at taxAmount; both are
// recomputed as line items are added. The order number is generated here
// and is expected to be unique (the orders table enforces it).
func NewOrder(tenantID, createdBy uuid.UUID, taxAmount decimal.Decimal, notes *string) *Order {
	return &Order{
		ID:          uuid.New(),
		TenantID:    tenantID,
		CreatedBy:   createdBy,
		OrderNumber: GenerateOrderNumber(),
		Subtotal:    decimal.Zero,
		TaxAmount:   taxAmount.Round(2),
		Total:       taxAmount.Round(2),
		Notes:       notes,
	}
}

// GenerateOrderNumber produces a human-readable order number of the form
// ORD-YYYYMMDD-XXXX. The random suffix keeps collisions unlikely, not
// impossible; callers retry on a unique-constraint violation.
func GenerateOrderNumber() string {
	suffix := random.String(4, random.Uppercase, random.Numeric)
	return fmt.Sprintf("%s-%s-%s", OrderNumberPrefix, time.Now().UTC().Format("20060102"), suffix)
}

// AddLineItem appends a line item and eagerly recomputes the order's
// subtotal and total. Values out of bounds are rejected with
// ErrInvalidLineItem; request validation should have caught them earlier.
func (o *Order) AddLineItem(productName string, quantity int, unitPrice decimal.Decimal) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidLineItem, quantity)
	}
	if unitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price must not be negative, got %s", ErrInvalidLineItem, unitPrice)
	}

	item := &OrderLineItem{
		ID:          uuid.New(),
		OrderID:     o.ID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice.Round(2),
		Subtotal:    unitPrice.Round(2).Mul(decimal.NewFromInt(int64(quantity))).Round(2),
	}
	o.Items = append(o.Items, item)
	o.recomputeTotals()
	return nil
}

// recomputeTotals restores the aggregate invariants:
// subtotal is the sum of all line subtotals, total is subtotal plus tax.
func (o *Order) recomputeTotals() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.Subtotal)
	}
	o.Subtotal = subtotal.Round(2)
	o.Total = subtotal.Add(o.TaxAmount).Round(2)
}

// Validate checks the ready-to-persist precondition.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrNoLineItems
	}
	return nil
}
