package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/edumart/order-backend/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type StatusBucket struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// CountActiveOrders counts distinct orders with at least one item still in
// an active status. An order whose attributed items are all terminal does
// not count.
func CountActiveOrders(items []models.OrderItem) int {
	active := make(map[int64]bool)
	for _, item := range items {
		if models.IsActiveStatus(item.Status) {
			active[item.OrderID] = true
		}
	}
	return len(active)
}

// AggregateByStatus buckets items by their own status. This is the
// item-granularity view and is the source of truth for fulfillment
// reporting; it must never be merged with the order-granularity payment
// view below. Revenue is rounded to 2 digits at this boundary.
func AggregateByStatus(items []models.OrderItem) map[string]StatusBucket {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	for _, item := range items {
		counts[item.Status]++
		sums[item.Status] = sums[item.Status].Add(item.TotalPrice)
	}

	out := make(map[string]StatusBucket, len(counts))
	for status, count := range counts {
		out[status] = StatusBucket{Count: count, Revenue: sums[status].Round(2)}
	}
	return out
}

// AggregateByPaymentStatus buckets orders by payment status. Payment state
// exists only at order granularity; there is no item-level analogue.
func AggregateByPaymentStatus(orders []models.Order) map[string]int {
	out := make(map[string]int)
	for _, order := range orders {
		out[order.PaymentStatus]++
	}
	return out
}

// SumRevenue totals item prices, rounded to 2 digits at the boundary.
func SumRevenue(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice)
	}
	return total.Round(2)
}

type WarehouseStats struct {
	WarehouseIDs    []int64                 `json:"warehouse_ids"`
	ActiveOrders    int                     `json:"active_orders"`
	Revenue         decimal.Decimal         `json:"revenue"`
	ByStatus        map[string]StatusBucket `json:"by_status"`
	ByPaymentStatus map[string]int          `json:"by_payment_status"`
}

// ComputeWarehouseStats builds the warehouse statistics object: orders are
// resolved through the attribution rule, an optional date window applies at
// the order level, and items are then narrowed to the ones the given
// warehouses actually fulfill before aggregation.
func ComputeWarehouseStats(ctx context.Context, db *sql.DB, warehouseIDs []int64, from, to *time.Time) (*WarehouseStats, error) {
	stats := &WarehouseStats{
		WarehouseIDs:    warehouseIDs,
		Revenue:         decimal.Zero,
		ByStatus:        map[string]StatusBucket{},
		ByPaymentStatus: map[string]int{},
	}

	orderIDs, err := ResolveOrderIDs(ctx, db, warehouseIDs, "")
	if err != nil {
		return nil, fmt.Errorf("warehouse stats: %w", err)
	}
	if len(orderIDs) == 0 {
		return stats, nil
	}

	orders, err := fetchOrdersByIDs(ctx, db, orderIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("warehouse stats: %w", err)
	}
	if len(orders) == 0 {
		return stats, nil
	}

	byID := make(map[int64]models.Order, len(orders))
	inWindow := make([]int64, 0, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
		inWindow = append(inWindow, order.ID)
	}

	items, err := FetchItemsByOrderIDs(ctx, db, inWindow)
	if err != nil {
		return nil, fmt.Errorf("warehouse stats: %w", err)
	}

	scope := make(map[int64]bool, len(warehouseIDs))
	for _, id := range warehouseIDs {
		scope[id] = true
	}

	var attributed []models.OrderItem
	for _, item := range items {
		wh := EffectiveWarehouseID(item, byID[item.OrderID])
		if wh != nil && scope[*wh] {
			attributed = append(attributed, item)
		}
	}

	attributedOrders := make(map[int64]bool)
	for _, item := range attributed {
		attributedOrders[item.OrderID] = true
	}
	var scopedOrders []models.Order
	for id := range attributedOrders {
		scopedOrders = append(scopedOrders, byID[id])
	}

	stats.ActiveOrders = CountActiveOrders(attributed)
	stats.Revenue = SumRevenue(attributed)
	stats.ByStatus = AggregateByStatus(attributed)
	stats.ByPaymentStatus = AggregateByPaymentStatus(scopedOrders)

	return stats, nil
}

func fetchOrdersByIDs(ctx context.Context, db *sql.DB, ids []int64, from, to *time.Time) ([]models.Order, error) {
	preds := &predicates{}
	preds.add("o.id = ANY(%s)", pq.Array(ids))
	if from != nil {
		preds.add("o.created_at >= %s", *from)
	}
	if to != nil {
		preds.add("o.created_at <= %s", *to)
	}

	query := `SELECT ` + orderColumns + ` FROM orders o ` + preds.where() + ` ORDER BY o.id`

	rows, err := db.QueryContext(ctx, query, preds.args...)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
