package repositories

import (
	"context"

	"ordermart/internal/models"

	"github.com/google/uuid"
)

type TenantRepository interface {
	CreateWithOwner(ctx context.Context, tenant *models.Tenant, owner *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type tenantRepo struct {
	db Database
}

func NewTenantRepo(db Database) TenantRepository {
	return &tenantRepo{db: db}
}

// CreateWithOwner creates the tenant together with its first owner actor
// in one transaction. A tenant without an administrative actor is useless,
// so the two rows commit together.
func (r *tenantRepo) CreateWithOwner(ctx context.Context, tenant *models.Tenant, owner *models.User) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tenantQuery := `
		INSERT INTO tenants (id, name, contact_email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	if _, err := tx.Exec(ctx, tenantQuery, tenant.ID, tenant.Name, tenant.ContactEmail, tenant.Status); err != nil {
		return err
	}

	userQuery := `
		INSERT INTO users (id, tenant_id, email, role, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	if _, err := tx.Exec(ctx, userQuery, owner.ID, owner.TenantID, owner.Email, owner.Role, owner.FirstName, owner.LastName); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	query := `
		SELECT id, name, contact_email, status, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&tenant.ID, &tenant.Name, &tenant.ContactEmail, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tenant, nil
}
