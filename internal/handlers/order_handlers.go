package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"ordermart/internal/common"
	"ordermart/internal/models"
	"ordermart/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const (
	maxLineItemQuantity  = 10000
	maxLineItemsPerOrder = 100
)

var maxAmount = decimal.RequireFromString("10000000.00")

// OrderHandlers handles HTTP requests for orders
type OrderHandlers struct {
	orderService services.OrderServiceInterface
}

// NewOrderHandlers creates a new order handlers instance
func NewOrderHandlers(orderService services.OrderServiceInterface) *OrderHandlers {
	return &OrderHandlers{
		orderService: orderService,
	}
}

type lineItemRequest struct {
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	TaxAmount decimal.Decimal   `json:"tax_amount"`
	Notes     *string           `json:"notes"`
	Items     []lineItemRequest `json:"items"`
}

// CreateOrder handles POST /orders
func (h *OrderHandlers) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := common.GetActorFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	if len(req.Items) == 0 {
		return common.SendValidationError(c, "items", "at least one line item is required")
	}
	if len(req.Items) > maxLineItemsPerOrder {
		return common.SendValidationError(c, "items", "too many line items")
	}
	if err := common.ValidateAmount(req.TaxAmount, "tax_amount", maxAmount); err != nil {
		return common.SendValidationError(c, "tax_amount", err.Error())
	}

	input := services.CreateOrderInput{
		TaxAmount: req.TaxAmount,
		Notes:     req.Notes,
	}
	for _, item := range req.Items {
		if err := common.ValidateRequiredString(item.ProductName, "product_name"); err != nil {
			return common.SendValidationError(c, "product_name", err.Error())
		}
		if err := common.ValidateQuantity(item.Quantity, "quantity", maxLineItemQuantity); err != nil {
			return common.SendValidationError(c, "quantity", err.Error())
		}
		if err := common.ValidateAmount(item.UnitPrice, "unit_price", maxAmount); err != nil {
			return common.SendValidationError(c, "unit_price", err.Error())
		}
		input.Items = append(input.Items, services.LineItemInput{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	order, err := h.orderService.CreateOrder(ctx, actor, input)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidLineItem), errors.Is(err, models.ErrNoLineItems):
			return common.SendClientError(c, err.Error())
		default:
			return common.SendServerError(c, "Failed to create order")
		}
	}

	return c.JSON(http.StatusCreated, order)
}

// GetOrder handles GET /orders/:id
func (h *OrderHandlers) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := common.GetActorFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	orderID, err := common.ValidateUUID(c.Param("id"), "order id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	order, err := h.orderService.GetOrder(ctx, actor, orderID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			return common.SendNotFoundError(c, "Order")
		}
		return common.SendServerError(c, "Failed to retrieve order")
	}

	return c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /orders
func (h *OrderHandlers) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := common.GetActorFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	limit, offset := paginationParams(c)
	orders, err := h.orderService.ListOrders(ctx, actor, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list orders")
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	return c.JSON(http.StatusOK, orders)
}

// ListTenantOrders handles GET /tenants/:id/orders
func (h *OrderHandlers) ListTenantOrders(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := common.GetActorFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	tenantID, err := common.ValidateUUID(c.Param("id"), "tenant id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	limit, offset := paginationParams(c)
	orders, err := h.orderService.ListOrdersForTenant(ctx, actor, tenantID, limit, offset)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			return common.SendForbiddenError(c, "Orders of another tenant are not accessible")
		}
		return common.SendServerError(c, "Failed to list orders")
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	return c.JSON(http.StatusOK, orders)
}

// ListOrderInvoices handles GET /orders/:id/invoices
func (h *OrderHandlers) ListOrderInvoices(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := common.GetActorFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	orderID, err := common.ValidateUUID(c.Param("id"), "order id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	invoices, err := h.orderService.ListOrderInvoices(ctx, actor, orderID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			return common.SendNotFoundError(c, "Order")
		}
		return common.SendServerError(c, "Failed to list invoices")
	}
	if invoices == nil {
		invoices = []*models.Invoice{}
	}

	return c.JSON(http.StatusOK, invoices)
}

func paginationParams(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return common.ValidatePaginationParams(limit, offset)
}
