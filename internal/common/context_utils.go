package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ordermart/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type contextKey string

const ActorKey contextKey = "actor"

// WithActor stores the authenticated actor in the request context.
func WithActor(ctx context.Context, actor *models.User) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActorFromContext extracts the authenticated actor from the request
// context. Every core operation receives the actor explicitly; this helper
// is only used at the HTTP boundary.
func GetActorFromContext(ctx context.Context) (*models.User, bool) {
	actor, ok := ctx.Value(ActorKey).(*models.User)
	return actor, ok
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendNotFoundError sends a not found error response
func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", fmt.Sprintf("%s not found", resource), nil))
}

// SendForbiddenError sends a forbidden error response
func SendForbiddenError(c echo.Context, message string) error {
	return c.JSON(http.StatusForbidden, CreateErrorResponse("FORBIDDEN", message, nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

// ValidateUUID validates UUID format
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s has invalid UUID format", fieldName)
	}
	return id, nil
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateQuantity validates line item quantities with an upper bound
func ValidateQuantity(quantity int, fieldName string, maxValue int) error {
	if quantity < 1 {
		return fmt.Errorf("%s must be at least 1", fieldName)
	}
	if quantity > maxValue {
		return fmt.Errorf("%s cannot exceed %d", fieldName, maxValue)
	}
	return nil
}

// ValidateAmount validates non-negative monetary amounts with an upper bound
func ValidateAmount(value decimal.Decimal, fieldName string, maxValue decimal.Decimal) error {
	if value.IsNegative() {
		return fmt.Errorf("%s must not be negative", fieldName)
	}
	if value.GreaterThan(maxValue) {
		return fmt.Errorf("%s cannot exceed %s", fieldName, maxValue)
	}
	return nil
}

// ValidatePaginationParams validates pagination parameters
func ValidatePaginationParams(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50 // Default
	}
	if limit > 1000 {
		limit = 1000 // Maximum
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// SecureErrorMessage creates standardized error messages to prevent information leakage
func SecureErrorMessage(operation string, err error) error {
	if err == nil {
		return nil
	}
	// The full error is logged by the caller; the user sees a generic message.
	return fmt.Errorf("failed to %s: operation could not be completed", operation)
}
