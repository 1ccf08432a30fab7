package repositories

import (
	"context"
	"time"

	"ordermart/internal/models"

	"github.com/google/uuid"
)

// OrderNumberConstraint is the unique index on orders.order_number.
const OrderNumberConstraint = "orders_order_number_key"

type OrderRepository interface {
	CreateWithItems(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Order, error)
	ListUnbilledBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error)
}

type orderRepo struct {
	db Database
}

func NewOrderRepo(db Database) OrderRepository {
	return &orderRepo{db: db}
}

// CreateWithItems persists the order row and every line-item row inside a
// single transaction. Either everything commits or nothing does; a partial
// order is never visible.
func (r *orderRepo) CreateWithItems(ctx context.Context, order *models.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	orderQuery := `
		INSERT INTO orders (id, tenant_id, created_by, order_number, subtotal, tax_amount, total, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	if _, err := tx.Exec(ctx, orderQuery, order.ID, order.TenantID, order.CreatedBy, order.OrderNumber, order.Subtotal, order.TaxAmount, order.Total, order.Notes); err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO order_line_items (id, order_id, product_name, quantity, unit_price, subtotal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	for _, item := range order.Items {
		if _, err := tx.Exec(ctx, itemQuery, item.ID, item.OrderID, item.ProductName, item.Quantity, item.UnitPrice, item.Subtotal); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *orderRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	order := &models.Order{}
	query := `
		SELECT id, tenant_id, created_by, order_number, subtotal, tax_amount, total, notes, created_at, updated_at
		FROM orders
		WHERE tenant_id = $1 AND id = $2
	`
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(&order.ID, &order.TenantID, &order.CreatedBy, &order.OrderNumber, &order.Subtotal, &order.TaxAmount, &order.Total, &order.Notes, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepo) listItems(ctx context.Context, orderID uuid.UUID) ([]*models.OrderLineItem, error) {
	query := `
		SELECT id, order_id, product_name, quantity, unit_price, subtotal, created_at, updated_at
		FROM order_line_items
		WHERE order_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.OrderLineItem
	for rows.Next() {
		item := &models.OrderLineItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.Subtotal, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *orderRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Order, error) {
	query := `
		SELECT id, tenant_id, created_by, order_number, subtotal, tax_amount, total, notes, created_at, updated_at
		FROM orders
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(&order.ID, &order.TenantID, &order.CreatedBy, &order.OrderNumber, &order.Subtotal, &order.TaxAmount, &order.Total, &order.Notes, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// ListUnbilledBefore finds committed orders older than cutoff that still
// have no invoice row. The reconciliation sweep re-enqueues their invoice
// tasks; invoice generation is at-least-once, so duplicates are tolerable.
func (r *orderRepo) ListUnbilledBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error) {
	query := `
		SELECT o.id, o.tenant_id, o.created_by, o.order_number, o.subtotal, o.tax_amount, o.total, o.notes, o.created_at, o.updated_at
		FROM orders o
		WHERE o.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM invoices i WHERE i.order_id = o.id)
		ORDER BY o.created_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(&order.ID, &order.TenantID, &order.CreatedBy, &order.OrderNumber, &order.Subtotal, &order.TaxAmount, &order.Total, &order.Notes, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
