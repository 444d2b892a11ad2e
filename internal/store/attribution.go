package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/edumart/order-backend/internal/database"
	"github.com/edumart/order-backend/internal/models"
	"github.com/lib/pq"
)

// ResolveOrderIDs finds every order for which one of the given warehouses
// holds fulfillment responsibility. Attribution lives on order_items since
// the schema moved to item granularity, but legacy orders carry only an
// order-level warehouse_id, so both generations are queried and unioned.
// When statusFilter is set, the order-level fallback is narrowed to orders
// with at least one item in that status: status never lives on the order
// row, so the fallback cannot satisfy the filter by itself. Items with no
// warehouse on either the item or its order are attributed to nothing.
func ResolveOrderIDs(ctx context.Context, db *sql.DB, warehouseIDs []int64, statusFilter string) ([]int64, error) {
	if len(warehouseIDs) == 0 {
		return nil, nil
	}
	if statusFilter != "" && !models.IsValidStatus(statusFilter) {
		return nil, fmt.Errorf("status %q: %w", statusFilter, database.ErrInvalidStatus)
	}

	seen := make(map[int64]bool)

	itemQuery := `SELECT DISTINCT i.order_id FROM order_items i WHERE i.warehouse_id = ANY($1)`
	itemArgs := []interface{}{pq.Array(warehouseIDs)}
	if statusFilter != "" {
		itemQuery += ` AND i.status = $2`
		itemArgs = append(itemArgs, statusFilter)
	}

	if err := collectIDs(ctx, db, itemQuery, itemArgs, seen); err != nil {
		return nil, fmt.Errorf("resolve item-level attribution: %w", err)
	}

	fallbackQuery := `SELECT o.id FROM orders o WHERE o.warehouse_id = ANY($1)`
	fallbackArgs := []interface{}{pq.Array(warehouseIDs)}
	if statusFilter != "" {
		fallbackQuery += ` AND EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.status = $2)`
		fallbackArgs = append(fallbackArgs, statusFilter)
	}

	if err := collectIDs(ctx, db, fallbackQuery, fallbackArgs, seen); err != nil {
		return nil, fmt.Errorf("resolve order-level fallback: %w", err)
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

func collectIDs(ctx context.Context, db *sql.DB, query string, args []interface{}, seen map[int64]bool) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan order id: %w", err)
		}
		seen[id] = true
	}
	return rows.Err()
}

// EffectiveWarehouseID applies the attribution rule for one item: the item's
// own warehouse wins, a legacy order-level warehouse is inherited, and an
// item with neither belongs to no warehouse.
func EffectiveWarehouseID(item models.OrderItem, order models.Order) *int64 {
	if item.WarehouseID != nil {
		return item.WarehouseID
	}
	return order.WarehouseID
}

func GetWarehouse(ctx context.Context, db *sql.DB, id int64) (*models.Warehouse, error) {
	wh := &models.Warehouse{}

	query := `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''),
		       COALESCE(address, '{}'), verified, COALESCE(metadata, '{}'), created_at
		FROM warehouses
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&wh.ID,
		&wh.Name,
		&wh.Phone,
		&wh.Email,
		&wh.Address,
		&wh.Verified,
		&wh.Metadata,
		&wh.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrWarehouseNotFound
		}
		return nil, fmt.Errorf("get warehouse %d: %w", id, err)
	}

	return wh, nil
}

// WarehouseIDsForRetailer returns the warehouses linked to a retailer.
func WarehouseIDsForRetailer(ctx context.Context, db *sql.DB, retailerID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT warehouse_id FROM retailer_warehouses WHERE retailer_id = $1 ORDER BY warehouse_id`,
		retailerID)
	if err != nil {
		return nil, fmt.Errorf("list retailer warehouses: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan warehouse id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

// LinkRetailerWarehouse creates the retailer-warehouse association. A
// duplicate link surfaces as a Conflict.
func LinkRetailerWarehouse(ctx context.Context, db *sql.DB, retailerID, warehouseID int64) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO retailer_warehouses (retailer_id, warehouse_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (retailer_id, warehouse_id) DO NOTHING`,
		retailerID, warehouseID)
	if err != nil {
		return fmt.Errorf("link retailer warehouse: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrDuplicateLink
	}

	return nil
}
