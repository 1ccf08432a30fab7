package handlers

import (
	"errors"
	"net/http"
	"strings"

	"ordermart/internal/common"
	"ordermart/internal/models"
	"ordermart/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers handles tenant onboarding and lookup
type TenantHandlers struct {
	tenantService services.TenantService
}

func NewTenantHandlers(tenantService services.TenantService) *TenantHandlers {
	return &TenantHandlers{tenantService: tenantService}
}

type createTenantRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
	OwnerEmail   string `json:"owner_email"`
	OwnerFirst   string `json:"owner_first_name"`
	OwnerLast    string `json:"owner_last_name"`
}

type createTenantResponse struct {
	Tenant *models.Tenant `json:"tenant"`
	Owner  *models.User   `json:"owner"`
}

// CreateTenant handles POST /tenants
func (h *TenantHandlers) CreateTenant(c echo.Context) error {
	var req createTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return common.SendValidationError(c, "name", err.Error())
	}
	if err := common.ValidateRequiredString(req.OwnerEmail, "owner_email"); err != nil {
		return common.SendValidationError(c, "owner_email", err.Error())
	}
	if !strings.Contains(req.OwnerEmail, "@") {
		return common.SendValidationError(c, "owner_email", "owner_email must be a valid email address")
	}

	tenant, owner, err := h.tenantService.CreateTenant(c.Request().Context(), services.CreateTenantInput{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		OwnerEmail:   req.OwnerEmail,
		OwnerFirst:   req.OwnerFirst,
		OwnerLast:    req.OwnerLast,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailInUse) {
			return common.SendClientError(c, "Owner email is already in use")
		}
		return common.SendServerError(c, "Failed to create tenant")
	}

	return c.JSON(http.StatusCreated, createTenantResponse{Tenant: tenant, Owner: owner})
}

// GetTenant handles GET /tenants/:id
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := common.GetActorFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	tenantID, err := common.ValidateUUID(c.Param("id"), "tenant id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	// The same scoping rule as order reads: a foreign tenant's record is
	// simply not there.
	if tenantID != actor.EffectiveTenantID() {
		return common.SendNotFoundError(c, "Tenant")
	}

	tenant, err := h.tenantService.GetTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, services.ErrTenantNotFound) {
			return common.SendNotFoundError(c, "Tenant")
		}
		return common.SendServerError(c, "Failed to retrieve tenant")
	}

	return c.JSON(http.StatusOK, tenant)
}
