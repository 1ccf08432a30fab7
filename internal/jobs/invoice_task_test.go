package jobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ordermart/internal/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) ListByOrderID(ctx context.Context, tenantID, orderID uuid.UUID) ([]*models.Invoice, error) {
	args := m.Called(ctx, tenantID, orderID)
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GenerateInvoiceNumber(ctx context.Context, tenantID uuid.UUID, issuedAt time.Time) (string, error) {
	args := m.Called(ctx, tenantID, issuedAt)
	return args.String(0), args.Error(1)
}

// flakyGenerator fails a configured number of times before succeeding.
type flakyGenerator struct {
	mu        sync.Mutex
	failures  int
	calls     int
	sleep     time.Duration
	documents []string
}

func (g *flakyGenerator) Generate(ctx context.Context, payload InvoicePayload) (string, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()

	if g.sleep > 0 {
		select {
		case <-time.After(g.sleep):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if call <= g.failures {
		return "", errors.New("invoice backend unavailable")
	}

	key := "invoices/" + payload.TenantID.String() + "/" + payload.OrderID.String() + ".txt"
	g.mu.Lock()
	g.documents = append(g.documents, key)
	g.mu.Unlock()
	return key, nil
}

type InvoiceTaskTestSuite struct {
	suite.Suite
	invoiceRepo *MockInvoiceRepository
	ctx         context.Context
	order       *models.Order
	actorID     uuid.UUID
}

func (suite *InvoiceTaskTestSuite) SetupTest() {
	suite.invoiceRepo = &MockInvoiceRepository{}
	suite.invoiceRepo.Test(suite.T())
	suite.ctx = context.Background()
	suite.actorID = uuid.New()

	suite.order = models.NewOrder(uuid.New(), suite.actorID, decimal.RequireFromString("15.50"), nil)
	require.NoError(suite.T(), suite.order.AddLineItem("Laptop", 2, decimal.RequireFromString("1200.00")))
}

func (suite *InvoiceTaskTestSuite) TearDownTest() {
	suite.invoiceRepo.AssertExpectations(suite.T())
}

func TestInvoiceTaskTestSuite(t *testing.T) {
	suite.Run(t, new(InvoiceTaskTestSuite))
}

func (suite *InvoiceTaskTestSuite) newQueue(generator InvoiceGenerator) *InlineQueue {
	processor := NewInvoiceProcessor(generator, suite.invoiceRepo, zerolog.Nop())
	queue := NewInlineQueue()
	queue.HandleFunc(TypeInvoiceGenerate, processor.HandleInvoiceGenerate)
	return queue
}

func (suite *InvoiceTaskTestSuite) enqueue(queue *InlineQueue) error {
	task, err := NewInvoiceTask(suite.order, suite.actorID)
	require.NoError(suite.T(), err)
	_, err = queue.EnqueueContext(suite.ctx, task)
	return err
}

func (suite *InvoiceTaskTestSuite) TestSucceedsOnThirdAttempt() {
	generator := &flakyGenerator{failures: 2}
	queue := suite.newQueue(generator)

	suite.invoiceRepo.On("GenerateInvoiceNumber", mock.Anything, suite.order.TenantID, mock.AnythingOfType("time.Time")).
		Return("INV-12345678-2026-08-000001", nil).Once()
	suite.invoiceRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Invoice")).
		Return(nil).Once()

	err := suite.enqueue(queue)
	assert.NoError(suite.T(), err)

	attempts := queue.Attempts()
	require.Len(suite.T(), attempts, 3)
	assert.Error(suite.T(), attempts[0].Err)
	assert.Error(suite.T(), attempts[1].Err)
	assert.NoError(suite.T(), attempts[2].Err)
	assert.Equal(suite.T(), 3, generator.calls)
}

func (suite *InvoiceTaskTestSuite) TestPermanentFailureAfterCeiling() {
	generator := &flakyGenerator{failures: 5}
	queue := suite.newQueue(generator)

	err := suite.enqueue(queue)
	assert.Error(suite.T(), err)

	attempts := queue.Attempts()
	assert.Len(suite.T(), attempts, InvoiceMaxAttempts)
	for _, attempt := range attempts {
		assert.Error(suite.T(), attempt.Err)
	}
	// The backing order was committed before the task ever ran and no
	// compensating action touches it: no invoice row, nothing else.
	suite.invoiceRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *InvoiceTaskTestSuite) TestPermanentFailureEmitsTerminalRecord() {
	var logs bytes.Buffer
	processor := NewInvoiceProcessor(&flakyGenerator{failures: 5}, suite.invoiceRepo, zerolog.New(&logs))
	queue := NewInlineQueue()
	queue.HandleFunc(TypeInvoiceGenerate, processor.HandleInvoiceGenerate)

	err := suite.enqueue(queue)
	assert.Error(suite.T(), err)

	out := logs.String()
	// Two recoverable failures, then the terminal record on the last attempt.
	assert.Equal(suite.T(), 2, strings.Count(out, `"event":"invoice_generation_failed"`))
	assert.Equal(suite.T(), 1, strings.Count(out, `"event":"invoice_generation_failed_permanently"`))
	assert.Contains(suite.T(), out, `"attempt":3`)
	assert.Contains(suite.T(), out, `"max_attempts":3`)
	assert.Contains(suite.T(), out, suite.order.OrderNumber)
}

func (suite *InvoiceTaskTestSuite) TestPersistFailureCountsTowardCeiling() {
	generator := &flakyGenerator{failures: 0}
	queue := suite.newQueue(generator)

	suite.invoiceRepo.On("GenerateInvoiceNumber", mock.Anything, suite.order.TenantID, mock.AnythingOfType("time.Time")).
		Return("INV-12345678-2026-08-000002", nil).Times(3)
	suite.invoiceRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Invoice")).
		Return(errors.New("invoices table unavailable")).Times(3)

	err := suite.enqueue(queue)
	assert.Error(suite.T(), err)
	assert.Len(suite.T(), queue.Attempts(), InvoiceMaxAttempts)
}

func (suite *InvoiceTaskTestSuite) TestAttemptTimeoutIsRecoverable() {
	generator := &flakyGenerator{failures: 0, sleep: 200 * time.Millisecond}
	queue := suite.newQueue(generator)

	task, err := NewInvoiceTask(suite.order, suite.actorID)
	require.NoError(suite.T(), err)

	_, err = queue.EnqueueContext(suite.ctx, task,
		asynq.MaxRetry(1), asynq.Timeout(20*time.Millisecond))
	assert.ErrorIs(suite.T(), err, context.DeadlineExceeded)
	assert.Len(suite.T(), queue.Attempts(), 2)
}

func (suite *InvoiceTaskTestSuite) TestMalformedPayloadIsNotRetried() {
	generator := &flakyGenerator{}
	queue := suite.newQueue(generator)

	task := asynq.NewTask(TypeInvoiceGenerate, []byte("{not json"))
	_, err := queue.EnqueueContext(suite.ctx, task)

	assert.Error(suite.T(), err)
	assert.Len(suite.T(), queue.Attempts(), 1)
	assert.Equal(suite.T(), 0, generator.calls)
}

func (suite *InvoiceTaskTestSuite) TestSuccessPersistsInvoiceWithDocumentKey() {
	generator := &flakyGenerator{}
	queue := suite.newQueue(generator)

	var created *models.Invoice
	suite.invoiceRepo.On("GenerateInvoiceNumber", mock.Anything, suite.order.TenantID, mock.AnythingOfType("time.Time")).
		Return("INV-12345678-2026-08-000003", nil).Once()
	suite.invoiceRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Invoice")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*models.Invoice)
		}).
		Return(nil).Once()

	err := suite.enqueue(queue)
	require.NoError(suite.T(), err)

	require.NotNil(suite.T(), created)
	assert.Equal(suite.T(), suite.order.ID, created.OrderID)
	assert.Equal(suite.T(), suite.order.TenantID, created.TenantID)
	assert.Equal(suite.T(), "INV-12345678-2026-08-000003", created.InvoiceNumber)
	assert.True(suite.T(), created.TotalAmount.Equal(suite.order.Total))
	require.NotNil(suite.T(), created.DocumentKey)
	assert.Contains(suite.T(), *created.DocumentKey, suite.order.ID.String())
	assert.Equal(suite.T(), "issued", created.Status)
}
