package background

import (
	"context"
	"sync"
	"time"

	"ordermart/internal/jobs"
	"ordermart/internal/repositories"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

const (
	reconcileInterval = 10 * time.Minute
	// reconcileGrace keeps freshly committed orders out of the sweep while
	// their first invoice task is still in flight.
	reconcileGrace = 15 * time.Minute
	reconcileBatch = 100
)

// JobScheduler runs the periodic maintenance jobs. Its one real duty is
// the invoice reconciliation sweep: invoice generation is best-effort on
// the request path, so orders whose task dispatch was lost get re-enqueued
// here. Delivery is at-least-once either way.
type JobScheduler struct {
	scheduler gocron.Scheduler
	orderRepo repositories.OrderRepository
	queue     jobs.Enqueuer
	logger    zerolog.Logger
	jobJobs   map[string]gocron.Job
	mu        sync.RWMutex
}

func NewJobScheduler(orderRepo repositories.OrderRepository, queue jobs.Enqueuer, logger zerolog.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler: scheduler,
		orderRepo: orderRepo,
		queue:     queue,
		logger:    logger,
		jobJobs:   make(map[string]gocron.Job),
	}
	js.registerJobs()
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.Info().Msg("starting background job scheduler")
	js.scheduler.Start()
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	js.logger.Info().Msg("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() {
	reconcileJob, err := js.scheduler.NewJob(
		gocron.DurationJob(reconcileInterval),
		gocron.NewTask(js.reconcileInvoices, context.Background()),
		gocron.WithName("invoice-reconciliation"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		js.logger.Error().Err(err).Msg("failed to create invoice reconciliation job")
	} else {
		js.mu.Lock()
		js.jobJobs["invoice-reconciliation"] = reconcileJob
		js.mu.Unlock()
	}
}

// reconcileInvoices re-enqueues invoice tasks for committed orders that
// still have no invoice after the grace period.
func (js *JobScheduler) reconcileInvoices(ctx context.Context) {
	cutoff := time.Now().Add(-reconcileGrace)
	orders, err := js.orderRepo.ListUnbilledBefore(ctx, cutoff, reconcileBatch)
	if err != nil {
		js.logger.Error().Err(err).Msg("unbilled order sweep failed")
		return
	}
	if len(orders) == 0 {
		return
	}

	requeued := 0
	for _, order := range orders {
		task, err := jobs.NewInvoiceTask(order, order.CreatedBy)
		if err == nil {
			_, err = js.queue.EnqueueContext(ctx, task)
		}
		if err != nil {
			js.logger.Warn().
				Err(err).
				Str("order_id", order.ID.String()).
				Msg("invoice task re-enqueue failed")
			continue
		}
		requeued++
	}

	js.logger.Info().
		Int("unbilled", len(orders)).
		Int("requeued", requeued).
		Msg("invoice reconciliation sweep completed")
}
