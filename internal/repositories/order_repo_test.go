package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"ordermart/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type OrderRepoTestSuite struct {
	suite.Suite
	mock     pgxmock.PgxPoolIface
	repo     OrderRepository
	tenantID uuid.UUID
	actorID  uuid.UUID
	context  context.Context
}

func (suite *OrderRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewOrderRepo(mock)
	suite.tenantID = uuid.New()
	suite.actorID = uuid.New()
	suite.context = context.Background()
}

func (suite *OrderRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestOrderRepoTestSuite(t *testing.T) {
	suite.Run(t, new(OrderRepoTestSuite))
}

func (suite *OrderRepoTestSuite) buildOrder(itemCount int) *models.Order {
	order := models.NewOrder(suite.tenantID, suite.actorID, decimal.RequireFromString("15.50"), nil)
	for i := 0; i < itemCount; i++ {
		require.NoError(suite.T(), order.AddLineItem("Laptop", 2, decimal.RequireFromString("1200.00")))
	}
	return order
}

func (suite *OrderRepoTestSuite) TestCreateWithItems_Success() {
	order := suite.buildOrder(2)

	suite.mock.ExpectBegin()
	suite.mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, order.TenantID, order.CreatedBy, order.OrderNumber,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), order.Notes).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for _, item := range order.Items {
		suite.mock.ExpectExec("INSERT INTO order_line_items").
			WithArgs(item.ID, item.OrderID, item.ProductName, item.Quantity,
				pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	suite.mock.ExpectCommit()

	err := suite.repo.CreateWithItems(suite.context, order)
	assert.NoError(suite.T(), err)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestCreateWithItems_SecondItemFailureRollsBack() {
	order := suite.buildOrder(3)

	suite.mock.ExpectBegin()
	suite.mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, order.TenantID, order.CreatedBy, order.OrderNumber,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), order.Notes).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectExec("INSERT INTO order_line_items").
		WithArgs(order.Items[0].ID, order.Items[0].OrderID, order.Items[0].ProductName,
			order.Items[0].Quantity, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectExec("INSERT INTO order_line_items").
		WithArgs(order.Items[1].ID, order.Items[1].OrderID, order.Items[1].ProductName,
			order.Items[1].Quantity, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	suite.mock.ExpectRollback()

	err := suite.repo.CreateWithItems(suite.context, order)
	assert.Error(suite.T(), err)
	// No third item insert and no commit were expected; the transaction
	// rolled back, so neither the order nor any item is visible.
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestCreateWithItems_OrderInsertFailureRollsBack() {
	order := suite.buildOrder(1)

	suite.mock.ExpectBegin()
	suite.mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, order.TenantID, order.CreatedBy, order.OrderNumber,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), order.Notes).
		WillReturnError(errors.New("unique violation"))
	suite.mock.ExpectRollback()

	err := suite.repo.CreateWithItems(suite.context, order)
	assert.Error(suite.T(), err)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestGetByID_Success() {
	orderID := uuid.New()
	itemID := uuid.New()
	now := time.Now()

	suite.mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs(suite.tenantID, orderID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tenant_id", "created_by", "order_number", "subtotal", "tax_amount", "total", "notes", "created_at", "updated_at",
		}).AddRow(orderID, suite.tenantID, suite.actorID, "ORD-20260830-A1B2",
			decimal.RequireFromString("2425.00"), decimal.RequireFromString("15.50"),
			decimal.RequireFromString("2440.50"), (*string)(nil), now, now))
	suite.mock.ExpectQuery("SELECT (.+) FROM order_line_items").
		WithArgs(orderID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "order_id", "product_name", "quantity", "unit_price", "subtotal", "created_at", "updated_at",
		}).AddRow(itemID, orderID, "Laptop", 2,
			decimal.RequireFromString("1200.00"), decimal.RequireFromString("2400.00"), now, now))

	order, err := suite.repo.GetByID(suite.context, suite.tenantID, orderID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), orderID, order.ID)
	assert.Equal(suite.T(), "ORD-20260830-A1B2", order.OrderNumber)
	require.Len(suite.T(), order.Items, 1)
	assert.Equal(suite.T(), "Laptop", order.Items[0].ProductName)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestGetByID_NotFound() {
	orderID := uuid.New()

	suite.mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs(suite.tenantID, orderID).
		WillReturnError(pgx.ErrNoRows)

	order, err := suite.repo.GetByID(suite.context, suite.tenantID, orderID)
	assert.Nil(suite.T(), order)
	assert.ErrorIs(suite.T(), err, pgx.ErrNoRows)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestList_ScopedToTenant() {
	now := time.Now()
	first := uuid.New()
	second := uuid.New()

	suite.mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs(suite.tenantID, 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tenant_id", "created_by", "order_number", "subtotal", "tax_amount", "total", "notes", "created_at", "updated_at",
		}).AddRow(first, suite.tenantID, suite.actorID, "ORD-20260830-C3D4",
			decimal.RequireFromString("100.00"), decimal.Zero, decimal.RequireFromString("100.00"), (*string)(nil), now, now).
			AddRow(second, suite.tenantID, suite.actorID, "ORD-20260829-E5F6",
				decimal.RequireFromString("50.00"), decimal.Zero, decimal.RequireFromString("50.00"), (*string)(nil), now.Add(-time.Hour), now))

	orders, err := suite.repo.List(suite.context, suite.tenantID, 50, 0)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), orders, 2)
	assert.Equal(suite.T(), first, orders[0].ID)
	assert.Equal(suite.T(), second, orders[1].ID)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}
