package store

import (
	"testing"

	"github.com/edumart/order-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func item(orderID int64, status string, total string) models.OrderItem {
	return models.OrderItem{
		OrderID:    orderID,
		Status:     status,
		TotalPrice: decimal.RequireFromString(total),
	}
}

func TestCountActiveOrders(t *testing.T) {
	// three orders: initialized, shipped, delivered; only the first two
	// count as active
	items := []models.OrderItem{
		item(1, models.StatusInitialized, "10.00"),
		item(2, models.StatusShipped, "20.00"),
		item(3, models.StatusDelivered, "30.00"),
	}
	assert.Equal(t, 2, CountActiveOrders(items))
}

func TestCountActiveOrdersExcludesAllTerminalOrders(t *testing.T) {
	items := []models.OrderItem{
		item(1, models.StatusDelivered, "10.00"),
		item(1, models.StatusCancelled, "5.00"),
		item(2, models.StatusRefunded, "7.00"),
	}
	assert.Equal(t, 0, CountActiveOrders(items))
}

func TestCountActiveOrdersOneActiveItemIsEnough(t *testing.T) {
	items := []models.OrderItem{
		item(1, models.StatusDelivered, "10.00"),
		item(1, models.StatusOutForDelivery, "5.00"),
	}
	assert.Equal(t, 1, CountActiveOrders(items))
}

func TestAggregateByStatus(t *testing.T) {
	items := []models.OrderItem{
		item(1, models.StatusInitialized, "10.00"),
		item(2, models.StatusShipped, "20.00"),
		item(3, models.StatusDelivered, "30.00"),
	}

	byStatus := AggregateByStatus(items)
	assert.Len(t, byStatus, 3)
	assert.Equal(t, 1, byStatus[models.StatusInitialized].Count)
	assert.Equal(t, 1, byStatus[models.StatusShipped].Count)
	assert.Equal(t, 1, byStatus[models.StatusDelivered].Count)
	assert.True(t, byStatus[models.StatusShipped].Revenue.Equal(decimal.RequireFromString("20.00")))
}

func TestAggregateByStatusSumsRevenuePerStatus(t *testing.T) {
	items := []models.OrderItem{
		item(1, models.StatusShipped, "10.005"),
		item(2, models.StatusShipped, "20.004"),
	}

	byStatus := AggregateByStatus(items)
	assert.Equal(t, 2, byStatus[models.StatusShipped].Count)
	// rounding happens once, at the aggregate boundary
	assert.True(t, byStatus[models.StatusShipped].Revenue.Equal(decimal.RequireFromString("30.01")),
		"got %s", byStatus[models.StatusShipped].Revenue)
}

func TestAggregateByPaymentStatus(t *testing.T) {
	orders := []models.Order{
		{ID: 1, PaymentStatus: models.PaymentStatusPaid},
		{ID: 2, PaymentStatus: models.PaymentStatusPaid},
		{ID: 3, PaymentStatus: models.PaymentStatusPending},
	}

	byPayment := AggregateByPaymentStatus(orders)
	assert.Equal(t, map[string]int{
		models.PaymentStatusPaid:    2,
		models.PaymentStatusPending: 1,
	}, byPayment)
}

func TestSumRevenue(t *testing.T) {
	items := []models.OrderItem{
		item(1, models.StatusShipped, "19.99"),
		item(2, models.StatusDelivered, "5.01"),
	}
	assert.True(t, SumRevenue(items).Equal(decimal.RequireFromString("25.00")))
	assert.True(t, SumRevenue(nil).Equal(decimal.Zero))
}

func TestEffectiveWarehouseID(t *testing.T) {
	w1, w2 := int64(1), int64(2)

	// item-level assignment wins
	got := EffectiveWarehouseID(models.OrderItem{WarehouseID: &w1}, models.Order{WarehouseID: &w2})
	assert.Equal(t, &w1, got)

	// legacy order-level assignment is inherited
	got = EffectiveWarehouseID(models.OrderItem{}, models.Order{WarehouseID: &w2})
	assert.Equal(t, &w2, got)

	// neither: not attributable to any warehouse
	got = EffectiveWarehouseID(models.OrderItem{}, models.Order{})
	assert.Nil(t, got)
}
