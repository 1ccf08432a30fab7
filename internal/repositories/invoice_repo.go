package repositories

import (
	"context"
	"fmt"
	"time"

	"ordermart/internal/models"

	"github.com/google/uuid"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	ListByOrderID(ctx context.Context, tenantID, orderID uuid.UUID) ([]*models.Invoice, error)
	GenerateInvoiceNumber(ctx context.Context, tenantID uuid.UUID, issuedAt time.Time) (string, error)
}

type invoiceRepo struct {
	db Database
}

func NewInvoiceRepo(db Database) InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, tenant_id, order_id, invoice_number, total_amount, document_key, status, issued_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, invoice.ID, invoice.TenantID, invoice.OrderID, invoice.InvoiceNumber, invoice.TotalAmount, invoice.DocumentKey, invoice.Status, invoice.IssuedAt)
	return err
}

func (r *invoiceRepo) ListByOrderID(ctx context.Context, tenantID, orderID uuid.UUID) ([]*models.Invoice, error) {
	query := `
		SELECT id, tenant_id, order_id, invoice_number, total_amount, document_key, status, issued_at, created_at, updated_at
		FROM invoices
		WHERE tenant_id = $1 AND order_id = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice := &models.Invoice{}
		if err := rows.Scan(&invoice.ID, &invoice.TenantID, &invoice.OrderID, &invoice.InvoiceNumber, &invoice.TotalAmount, &invoice.DocumentKey, &invoice.Status, &invoice.IssuedAt, &invoice.CreatedAt, &invoice.UpdatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// GenerateInvoiceNumber hands out the next number in a per-tenant,
// per-month sequence kept in the invoice_sequences table.
func (r *invoiceRepo) GenerateInvoiceNumber(ctx context.Context, tenantID uuid.UUID, issuedAt time.Time) (string, error) {
	yearMonth := issuedAt.Format("2006-01")

	query := `
		WITH upsert AS (
			INSERT INTO invoice_sequences (tenant_id, year_month, last_number)
			VALUES ($1, $2, 1)
			ON CONFLICT (tenant_id, year_month)
			DO UPDATE SET
				last_number = invoice_sequences.last_number + 1,
				updated_at = NOW()
			RETURNING last_number
		)
		SELECT last_number FROM upsert;
	`

	var sequenceNum int
	if err := r.db.QueryRow(ctx, query, tenantID, yearMonth).Scan(&sequenceNum); err != nil {
		return "", fmt.Errorf("failed to generate invoice sequence: %w", err)
	}

	// Format: INV-TENANTSUFFIX-YYYY-MM-NNNNNN, tenant UUID suffix for brevity.
	tenantSuffix := tenantID.String()[len(tenantID.String())-8:]
	return fmt.Sprintf("INV-%s-%s-%06d", tenantSuffix, yearMonth, sequenceNum), nil
}
