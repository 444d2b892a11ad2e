package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/edumart/order-backend/internal/database"
	"github.com/edumart/order-backend/internal/models"
	"github.com/edumart/order-backend/internal/store"
	"github.com/shopspring/decimal"
)

func TestCreateOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	wh := createWarehouse(t, db, "Central")
	p1 := createProduct(t, db, "UNI-001", "Blazer", "100.00", &wh)
	p2 := createProduct(t, db, "UNI-002", "Jumper", "40.00", &wh)

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: 7,
		Items: []store.OrderItemRequest{
			{ProductID: p1, WarehouseID: &wh, Quantity: 2},
			{ProductID: p2, WarehouseID: &wh, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if order.ID == 0 {
		t.Error("Order ID should not be 0")
	}
	if order.OrderNumber == "" {
		t.Error("Order number should be set")
	}
	if order.Status != models.StatusInitialized {
		t.Errorf("Expected status initialized, got %s", order.Status)
	}

	expectedTotal := decimal.RequireFromString("320.00")
	if !order.TotalAmount.Equal(expectedTotal) {
		t.Errorf("Expected total %s, got %s", expectedTotal, order.TotalAmount)
	}

	if len(order.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(order.Items))
	}
	for _, it := range order.Items {
		if it.Status != models.StatusInitialized {
			t.Errorf("Item %d: expected status initialized, got %s", it.ID, it.Status)
		}
		if !it.TotalPrice.Equal(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))) {
			t.Errorf("Item %d: total %s != unit %s * qty %d", it.ID, it.TotalPrice, it.UnitPrice, it.Quantity)
		}
		if it.Snapshot.Title == "" {
			t.Errorf("Item %d: product snapshot should be frozen at creation", it.ID)
		}
	}

	if len(order.Events) != 1 {
		t.Fatalf("Expected 1 initial event, got %d", len(order.Events))
	}
	if order.Events[0].NewStatus != models.StatusInitialized {
		t.Errorf("Initial event status: got %s", order.Events[0].NewStatus)
	}
}

func TestCreateOrderRollbackOnMissingProduct(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	wh := createWarehouse(t, db, "Central")
	p1 := createProduct(t, db, "UNI-003", "Shirt", "25.00", &wh)

	_, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: 7,
		Items: []store.OrderItemRequest{
			{ProductID: p1, Quantity: 1},
			{ProductID: 999999, Quantity: 1},
		},
	})
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Fatalf("Expected product not found, got: %v", err)
	}

	// the compensating delete must leave no trace of the attempt
	if n := countRows(t, db, "orders"); n != 0 {
		t.Errorf("Expected 0 orders after rollback, got %d", n)
	}
	if n := countRows(t, db, "order_items"); n != 0 {
		t.Errorf("Expected 0 order items after rollback, got %d", n)
	}
	if n := countRows(t, db, "order_events"); n != 0 {
		t.Errorf("Expected 0 order events after rollback, got %d", n)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{UserID: 7})
	if !errors.Is(err, database.ErrMissingField) {
		t.Errorf("Expected missing field for empty items, got: %v", err)
	}

	wh := createWarehouse(t, db, "Central")
	p1 := createProduct(t, db, "UNI-004", "Tie", "10.00", &wh)

	_, err = store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: 7,
		Items:  []store.OrderItemRequest{{ProductID: p1, Quantity: 0}},
	})
	if !errors.Is(err, database.ErrMissingField) {
		t.Errorf("Expected missing field for zero quantity, got: %v", err)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.GetOrder(context.Background(), db, 424242)
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected order not found, got: %v", err)
	}
}

func TestUpdateItemStatusAppendsEvent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	wh := createWarehouse(t, db, "Central")
	p1 := createProduct(t, db, "UNI-005", "Skirt", "30.00", &wh)

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: 7,
		Items:  []store.OrderItemRequest{{ProductID: p1, WarehouseID: &wh, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	item, err := store.UpdateItemStatus(ctx, db, order.ID, order.Items[0].ID, models.StatusShipped, "ops", "left depot")
	if err != nil {
		t.Fatalf("Update item status: %v", err)
	}
	if item.Status != models.StatusShipped {
		t.Errorf("Expected shipped, got %s", item.Status)
	}

	events, err := store.ListEvents(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("List events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	last := events[len(events)-1]
	if last.PreviousStatus != models.StatusInitialized || last.NewStatus != models.StatusShipped {
		t.Errorf("Event transition %s -> %s, want initialized -> shipped", last.PreviousStatus, last.NewStatus)
	}
	if last.ItemID == nil || *last.ItemID != item.ID {
		t.Error("Event should be linked to the item")
	}

	// the coarse order-level status is maintained independently and may lag
	updated, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if updated.Status != models.StatusInitialized {
		t.Errorf("Order-level status should not move with item status, got %s", updated.Status)
	}
}

func TestUpdateItemStatusRejectsUnknownStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.UpdateItemStatus(context.Background(), db, 1, 1, "teleported", "ops", "")
	if !errors.Is(err, database.ErrInvalidStatus) {
		t.Errorf("Expected invalid status, got: %v", err)
	}
}

func TestUpdatePaymentStatusWritesLedger(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	wh := createWarehouse(t, db, "Central")
	linkRetailerWarehouse(t, db, 77, wh)
	p1 := createProduct(t, db, "UNI-006", "Coat", "60.00", &wh)

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: 7,
		Items:  []store.OrderItemRequest{{ProductID: p1, WarehouseID: &wh, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if err := store.UpdatePaymentStatus(ctx, db, order.ID, models.PaymentStatusPaid, "card", nil); err != nil {
		t.Fatalf("Update payment status: %v", err)
	}

	var amount decimal.Decimal
	err = db.QueryRow(
		`SELECT amount FROM retailer_ledger WHERE retailer_id = 77 AND order_id = $1 AND entry_type = 'order_revenue'`,
		order.ID).Scan(&amount)
	if err != nil {
		t.Fatalf("Fetch ledger entry: %v", err)
	}
	if !amount.Equal(decimal.RequireFromString("120.00")) {
		t.Errorf("Expected ledger amount 120.00, got %s", amount)
	}

	// paying again must not double-book revenue
	if err := store.UpdatePaymentStatus(ctx, db, order.ID, models.PaymentStatusPaid, "card", nil); err != nil {
		t.Fatalf("Repeat payment update: %v", err)
	}
	if n := countRows(t, db, "retailer_ledger"); n != 1 {
		t.Errorf("Expected 1 ledger entry, got %d", n)
	}
}

func TestSearchOrdersPaginationIsStable(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	wh := createWarehouse(t, db, "Central")
	p1 := createProduct(t, db, "UNI-007", "Socks", "5.00", &wh)

	for i := 0; i < 25; i++ {
		_, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
			UserID: 7,
			Items:  []store.OrderItemRequest{{ProductID: p1, WarehouseID: &wh, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("Create order %d: %v", i, err)
		}
	}

	seen := make(map[int64]bool)
	var total int64

	for page := 1; page <= 3; page++ {
		result, err := store.SearchOrders(ctx, db, store.SearchFilter{}, store.PageParams{Page: page, Limit: 10})
		if err != nil {
			t.Fatalf("Search page %d: %v", page, err)
		}

		if page == 1 {
			total = result.Pagination.Total
		} else if result.Pagination.Total != total {
			t.Errorf("Total changed between pages: %d vs %d", total, result.Pagination.Total)
		}

		wantNext := page < result.Pagination.TotalPages
		if result.Pagination.HasNext != wantNext {
			t.Errorf("Page %d: hasNext = %v, want %v", page, result.Pagination.HasNext, wantNext)
		}

		for _, order := range result.Orders {
			if seen[order.ID] {
				t.Errorf("Order %d appeared on more than one page", order.ID)
			}
			seen[order.ID] = true
		}
	}

	if total != 25 {
		t.Errorf("Expected total 25, got %d", total)
	}
	if len(seen) != 25 {
		t.Errorf("Expected 25 distinct orders across pages, got %d", len(seen))
	}
}

func TestSearchOrdersStatusFilter(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	wh := createWarehouse(t, db, "Central")
	p1 := createProduct(t, db, "UNI-008", "Hat", "12.00", &wh)

	first, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: 7,
		Items:  []store.OrderItemRequest{{ProductID: p1, WarehouseID: &wh, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}
	if _, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID: 7,
		Items:  []store.OrderItemRequest{{ProductID: p1, WarehouseID: &wh, Quantity: 1}},
	}); err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if _, err := store.UpdateItemStatus(ctx, db, first.ID, first.Items[0].ID, models.StatusShipped, "ops", ""); err != nil {
		t.Fatalf("Update item status: %v", err)
	}

	result, err := store.SearchOrders(ctx, db,
		store.SearchFilter{Statuses: []string{models.StatusShipped}},
		store.PageParams{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Pagination.Total != 1 {
		t.Fatalf("Expected 1 shipped order, got %d", result.Pagination.Total)
	}
	if result.Orders[0].ID != first.ID {
		t.Errorf("Expected order %d, got %d", first.ID, result.Orders[0].ID)
	}
}
