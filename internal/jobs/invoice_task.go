package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ordermart/internal/models"
	"ordermart/internal/repositories"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TypeInvoiceGenerate is the task type for asynchronous invoice generation.
const TypeInvoiceGenerate = "invoice:generate"

const (
	// InvoiceMaxAttempts is the total attempt ceiling for one invoice task.
	InvoiceMaxAttempts = 3
	// InvoiceAttemptTimeout bounds a single generation attempt. Exceeding
	// it counts as a recoverable failure toward the ceiling.
	InvoiceAttemptTimeout = 60 * time.Second
)

// InvoicePayload carries everything the worker needs to generate an
// invoice for a committed order. The order is never loaded again on the
// worker side; it was durable before the task was enqueued.
type InvoicePayload struct {
	OrderID     uuid.UUID       `json:"order_id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	ActorID     uuid.UUID       `json:"actor_id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
}

// Enqueuer is the slice of asynq.Client the order service depends on.
// Keeping it an interface lets tests substitute an in-process queue.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewInvoiceTask builds the invoice-generation task for a persisted order,
// carrying the retry ceiling and per-attempt timeout as task options.
func NewInvoiceTask(order *models.Order, actorID uuid.UUID) (*asynq.Task, error) {
	payload := InvoicePayload{
		OrderID:     order.ID,
		TenantID:    order.TenantID,
		ActorID:     actorID,
		OrderNumber: order.OrderNumber,
		Total:       order.Total,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvoiceGenerate, data,
		asynq.MaxRetry(InvoiceMaxAttempts-1),
		asynq.Timeout(InvoiceAttemptTimeout),
	), nil
}

// InvoiceGenerator performs the external invoice-generation action and
// returns the storage key of the produced document. It may fail or hang;
// the task machinery bounds and retries it.
type InvoiceGenerator interface {
	Generate(ctx context.Context, payload InvoicePayload) (documentKey string, err error)
}

// InvoiceProcessor handles invoice:generate tasks.
type InvoiceProcessor struct {
	generator   InvoiceGenerator
	invoiceRepo repositories.InvoiceRepository
	logger      zerolog.Logger
}

func NewInvoiceProcessor(generator InvoiceGenerator, invoiceRepo repositories.InvoiceRepository, logger zerolog.Logger) *InvoiceProcessor {
	return &InvoiceProcessor{
		generator:   generator,
		invoiceRepo: invoiceRepo,
		logger:      logger,
	}
}

// HandleInvoiceGenerate runs one generation attempt. Returning an error
// makes the queue re-deliver the task until the attempt ceiling is
// exhausted; the order itself is never touched on failure.
func (p *InvoiceProcessor) HandleInvoiceGenerate(ctx context.Context, t *asynq.Task) error {
	var payload InvoicePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// A malformed payload will never succeed; skip retrying it.
		return fmt.Errorf("unmarshal invoice payload: %v: %w", err, asynq.SkipRetry)
	}

	documentKey, err := p.generator.Generate(ctx, payload)
	if err != nil {
		return p.recordFailure(ctx, payload, fmt.Errorf("generate invoice document: %w", err))
	}

	issuedAt := time.Now().UTC()
	invoiceNumber, err := p.invoiceRepo.GenerateInvoiceNumber(ctx, payload.TenantID, issuedAt)
	if err != nil {
		return p.recordFailure(ctx, payload, err)
	}

	invoice := &models.Invoice{
		ID:            uuid.New(),
		TenantID:      payload.TenantID,
		OrderID:       payload.OrderID,
		InvoiceNumber: invoiceNumber,
		TotalAmount:   payload.Total,
		DocumentKey:   &documentKey,
		Status:        "issued",
		IssuedAt:      issuedAt,
	}
	if err := p.invoiceRepo.Create(ctx, invoice); err != nil {
		return p.recordFailure(ctx, payload, fmt.Errorf("persist invoice: %w", err))
	}

	p.logger.Info().
		Str("event", "invoice_generated").
		Str("order_id", payload.OrderID.String()).
		Str("order_number", payload.OrderNumber).
		Str("tenant_id", payload.TenantID.String()).
		Str("actor_id", payload.ActorID.String()).
		Str("invoice_number", invoiceNumber).
		Str("total", payload.Total.String()).
		Msg("invoice generated")
	return nil
}

// recordFailure emits the structured failure record for this attempt and
// returns the error so the queue re-delivers or archives the task. Whether
// the failure is terminal depends on how many deliveries the queue has
// already made.
func (p *InvoiceProcessor) recordFailure(ctx context.Context, payload InvoicePayload, cause error) error {
	event := p.logger.Warn().Str("event", "invoice_generation_failed")
	if retried, maxRetry, ok := attemptCounts(ctx); ok {
		if retried >= maxRetry {
			event = p.logger.Error().Str("event", "invoice_generation_failed_permanently")
		}
		event = event.Int("attempt", retried+1).Int("max_attempts", maxRetry+1)
	}
	event.
		Str("order_id", payload.OrderID.String()).
		Str("order_number", payload.OrderNumber).
		Str("tenant_id", payload.TenantID.String()).
		Err(cause).
		Msg("invoice generation attempt failed")
	return cause
}
