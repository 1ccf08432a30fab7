package services

import (
	"context"
	"errors"

	"ordermart/internal/common"
	"ordermart/internal/models"
	"ordermart/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrEmailInUse is returned when tenant onboarding names an owner email
	// that already belongs to an existing actor.
	ErrEmailInUse = errors.New("email already in use")
)

// CreateTenantInput carries the validated inputs of tenant onboarding.
type CreateTenantInput struct {
	Name         string
	ContactEmail string
	OwnerEmail   string
	OwnerFirst   string
	OwnerLast    string
}

type TenantService interface {
	CreateTenant(ctx context.Context, input CreateTenantInput) (*models.Tenant, *models.User, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type tenantService struct {
	tenantRepo repositories.TenantRepository
	userRepo   repositories.UserRepository
	logger     zerolog.Logger
}

func NewTenantService(tenantRepo repositories.TenantRepository, userRepo repositories.UserRepository, logger zerolog.Logger) TenantService {
	return &tenantService{tenantRepo: tenantRepo, userRepo: userRepo, logger: logger}
}

// CreateTenant creates a tenant together with its first owner actor. The
// owner's own ID doubles as the tenant ID, so the tenant row is keyed by
// the owner's identifier and both rows commit in one transaction.
func (s *tenantService) CreateTenant(ctx context.Context, input CreateTenantInput) (*models.Tenant, *models.User, error) {
	existing, err := s.userRepo.GetByEmail(ctx, input.OwnerEmail)
	if err == nil && existing != nil {
		return nil, nil, ErrEmailInUse
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error().Err(err).Str("owner_email", input.OwnerEmail).Msg("owner email lookup failed")
		return nil, nil, common.SecureErrorMessage("create tenant", err)
	}

	owner := &models.User{
		ID:        uuid.New(),
		Email:     input.OwnerEmail,
		Role:      models.RoleOwner,
		FirstName: input.OwnerFirst,
		LastName:  input.OwnerLast,
	}
	owner.TenantID = owner.EffectiveTenantID()

	tenant := &models.Tenant{
		ID:           owner.TenantID,
		Name:         input.Name,
		ContactEmail: input.ContactEmail,
		Status:       "active",
	}

	if err := s.tenantRepo.CreateWithOwner(ctx, tenant, owner); err != nil {
		s.logger.Error().Err(err).Str("tenant_name", input.Name).Msg("tenant onboarding failed")
		return nil, nil, common.SecureErrorMessage("create tenant", err)
	}
	return tenant, owner, nil
}

func (s *tenantService) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		s.logger.Error().Err(err).Str("tenant_id", id.String()).Msg("tenant lookup failed")
		return nil, common.SecureErrorMessage("retrieve tenant", err)
	}
	return tenant, nil
}
