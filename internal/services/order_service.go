package services

import (
	"context"
	"errors"
	"time"

	"ordermart/internal/caching"
	"ordermart/internal/common"
	"ordermart/internal/jobs"
	"ordermart/internal/models"
	"ordermart/internal/repositories"
	"ordermart/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// ErrOrderNotFound covers both a genuinely missing order and an order
	// owned by another tenant; the two are indistinguishable to the caller.
	ErrOrderNotFound = errors.New("order not found")

	// ErrForbidden is returned when an explicitly tenant-addressed
	// operation names a tenant the actor is not scoped to.
	ErrForbidden = errors.New("forbidden")

	// ErrCreationFailed is the generic persistence failure surfaced by
	// CreateOrder; the underlying cause is logged, never returned.
	ErrCreationFailed = errors.New("order creation failed")
)

// maxOrderNumberAttempts bounds regeneration when a generated order number
// collides with an existing one.
const maxOrderNumberAttempts = 3

const orderCacheTTL = 10 * time.Minute

// documentURLTTL bounds the lifetime of presigned invoice document links.
const documentURLTTL = 15 * time.Minute

// LineItemInput is one already-validated line item of a creation request.
type LineItemInput struct {
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// CreateOrderInput carries the validated inputs of CreateOrder.
type CreateOrderInput struct {
	TaxAmount decimal.Decimal
	Notes     *string
	Items     []LineItemInput
}

// OrderServiceInterface defines the order management core. Every operation
// takes the acting user explicitly; nothing is read from ambient state.
type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, actor *models.User, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, actor *models.User, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, actor *models.User, limit, offset int) ([]*models.Order, error)
	ListOrdersForTenant(ctx context.Context, actor *models.User, tenantID uuid.UUID, limit, offset int) ([]*models.Order, error)
	ListOrderInvoices(ctx context.Context, actor *models.User, orderID uuid.UUID) ([]*models.Invoice, error)
}

type orderService struct {
	orderRepo   repositories.OrderRepository
	invoiceRepo repositories.InvoiceRepository
	queue       jobs.Enqueuer
	cache       caching.CacheService
	docStore    storage.DocumentStore
	docBucket   string
	logger      zerolog.Logger
}

// NewOrderService creates the order service. cache and docStore may be nil
// in queueless development and test setups; invoice listings then carry no
// presigned document links.
func NewOrderService(orderRepo repositories.OrderRepository, invoiceRepo repositories.InvoiceRepository, queue jobs.Enqueuer, cache caching.CacheService, docStore storage.DocumentStore, docBucket string, logger zerolog.Logger) OrderServiceInterface {
	return &orderService{
		orderRepo:   orderRepo,
		invoiceRepo: invoiceRepo,
		queue:       queue,
		cache:       cache,
		docStore:    docStore,
		docBucket:   docBucket,
		logger:      logger,
	}
}

// CreateOrder builds the order aggregate for the actor's effective tenant,
// persists it atomically and, once committed, enqueues exactly one invoice
// task for it. On any persistence failure nothing is visible and no task
// is enqueued.
func (s *orderService) CreateOrder(ctx context.Context, actor *models.User, input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, models.ErrNoLineItems
	}

	tenantID := actor.EffectiveTenantID()
	order := models.NewOrder(tenantID, actor.ID, input.TaxAmount, input.Notes)
	for _, item := range input.Items {
		if err := order.AddLineItem(item.ProductName, item.Quantity, item.UnitPrice); err != nil {
			return nil, err
		}
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		err := s.orderRepo.CreateWithItems(ctx, order)
		if err == nil {
			break
		}
		if repositories.IsUniqueViolation(err, repositories.OrderNumberConstraint) && attempt < maxOrderNumberAttempts {
			s.logger.Debug().
				Str("order_number", order.OrderNumber).
				Int("attempt", attempt).
				Msg("order number collision, regenerating")
			order.OrderNumber = models.GenerateOrderNumber()
			continue
		}
		s.logger.Error().
			Err(err).
			Str("tenant_id", tenantID.String()).
			Str("actor_id", actor.ID.String()).
			Msg("order creation failed")
		return nil, ErrCreationFailed
	}

	s.dispatchInvoiceTask(ctx, order, actor.ID)
	s.primeCache(ctx, order)
	return order, nil
}

// dispatchInvoiceTask enqueues the invoice task for a committed order.
// Failure to enqueue leaves the order untouched; the reconciliation sweep
// picks such orders up later.
func (s *orderService) dispatchInvoiceTask(ctx context.Context, order *models.Order, actorID uuid.UUID) {
	task, err := jobs.NewInvoiceTask(order, actorID)
	if err == nil {
		_, err = s.queue.EnqueueContext(ctx, task)
	}
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("order_number", order.OrderNumber).
			Msg("invoice task dispatch failed")
	}
}

func (s *orderService) primeCache(ctx context.Context, order *models.Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetOrder(ctx, order.TenantID, order, orderCacheTTL); err != nil {
		s.logger.Debug().Err(err).Str("order_id", order.ID.String()).Msg("order cache prime failed")
	}
}

// GetOrder returns the order only when it belongs to the actor's effective
// tenant. A cross-tenant lookup is answered exactly like a missing order.
func (s *orderService) GetOrder(ctx context.Context, actor *models.User, orderID uuid.UUID) (*models.Order, error) {
	tenantID := actor.EffectiveTenantID()

	if s.cache != nil {
		if cached, err := s.cache.GetOrder(ctx, tenantID, orderID); err == nil && cached != nil {
			return cached, nil
		}
	}

	order, err := s.orderRepo.GetByID(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("order lookup failed")
		return nil, common.SecureErrorMessage("retrieve order", err)
	}

	s.primeCache(ctx, order)
	return order, nil
}

// ListOrders returns the actor's tenant's orders, newest first. Owners and
// members with the same effective tenant see the identical result set.
func (s *orderService) ListOrders(ctx context.Context, actor *models.User, limit, offset int) ([]*models.Order, error) {
	orders, err := s.orderRepo.List(ctx, actor.EffectiveTenantID(), limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("order listing failed")
		return nil, common.SecureErrorMessage("list orders", err)
	}
	return orders, nil
}

// ListOrdersForTenant lists orders of an explicitly named tenant. Unlike
// GetOrder, a tenant mismatch is reported as forbidden rather than hidden.
func (s *orderService) ListOrdersForTenant(ctx context.Context, actor *models.User, tenantID uuid.UUID, limit, offset int) ([]*models.Order, error) {
	if tenantID != actor.EffectiveTenantID() {
		return nil, ErrForbidden
	}
	orders, err := s.orderRepo.List(ctx, tenantID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("order listing failed")
		return nil, common.SecureErrorMessage("list orders", err)
	}
	return orders, nil
}

// ListOrderInvoices returns invoices generated for one of the actor's
// tenant's orders, applying the same visibility rule as GetOrder.
func (s *orderService) ListOrderInvoices(ctx context.Context, actor *models.User, orderID uuid.UUID) ([]*models.Invoice, error) {
	tenantID := actor.EffectiveTenantID()
	if _, err := s.orderRepo.GetByID(ctx, tenantID, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("order lookup failed")
		return nil, common.SecureErrorMessage("list invoices", err)
	}

	invoices, err := s.invoiceRepo.ListByOrderID(ctx, tenantID, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("invoice listing failed")
		return nil, common.SecureErrorMessage("list invoices", err)
	}
	s.attachDocumentURLs(invoices)
	return invoices, nil
}

// attachDocumentURLs turns stored document keys into short-lived presigned
// links. A failed presign leaves the key-only invoice in the response.
func (s *orderService) attachDocumentURLs(invoices []*models.Invoice) {
	if s.docStore == nil {
		return
	}
	for _, invoice := range invoices {
		if invoice.DocumentKey == nil {
			continue
		}
		url, err := s.docStore.GetPresignedURL(s.docBucket, *invoice.DocumentKey, documentURLTTL)
		if err != nil {
			s.logger.Debug().Err(err).Str("invoice_id", invoice.ID.String()).Msg("invoice document presign failed")
			continue
		}
		invoice.DocumentURL = url
	}
}
