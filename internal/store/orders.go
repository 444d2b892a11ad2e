package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/edumart/order-backend/internal/database"
	"github.com/edumart/order-backend/internal/models"
	"github.com/lib/pq"
)

const orderColumns = `o.id, o.order_number, o.user_id, o.status, o.total_amount, o.currency,
	o.payment_status, o.payment_method,
	COALESCE(o.payment_data, '{}'), COALESCE(o.shipping_address, '{}'),
	COALESCE(o.billing_address, '{}'), o.warehouse_id, COALESCE(o.metadata, '{}'),
	o.created_at, o.updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.Currency,
		&order.PaymentStatus,
		&order.PaymentMethod,
		&order.PaymentData,
		&order.ShippingAddress,
		&order.BillingAddress,
		&order.WarehouseID,
		&order.Metadata,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	order, err := scanOrder(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}

	order.Items, err = FetchItemsByOrderIDs(ctx, db, []int64{id})
	if err != nil {
		return nil, fmt.Errorf("get order %d items: %w", id, err)
	}

	order.Events, err = ListEvents(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("get order %d events: %w", id, err)
	}

	return order, nil
}

func GetOrderByNumber(ctx context.Context, db *sql.DB, orderNumber string) (*models.Order, error) {
	query := `SELECT o.id FROM orders o WHERE o.order_number = $1`

	var id int64
	err := db.QueryRowContext(ctx, query, orderNumber).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by number %s: %w", orderNumber, err)
	}

	return GetOrder(ctx, db, id)
}

const itemColumns = `i.id, i.order_id, i.product_id, i.variant_id, i.warehouse_id, i.sku, i.title,
	i.quantity, i.unit_price, i.total_price, i.product_snapshot, i.status, i.created_at, i.updated_at`

// FetchItemsByOrderIDs returns the items of every listed order in one round
// trip, ordered by order then item id.
func FetchItemsByOrderIDs(ctx context.Context, db *sql.DB, orderIDs []int64) ([]models.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + itemColumns + `
		FROM order_items i
		WHERE i.order_id = ANY($1)
		ORDER BY i.order_id, i.id`

	rows, err := db.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		var snapshot []byte
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.VariantID,
			&item.WarehouseID,
			&item.SKU,
			&item.Title,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
			&snapshot,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if err := json.Unmarshal(snapshot, &item.Snapshot); err != nil {
			return nil, fmt.Errorf("decode product snapshot: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func ListEvents(ctx context.Context, db *sql.DB, orderID int64) ([]models.OrderEvent, error) {
	query := `
		SELECT id, order_id, item_id, previous_status, new_status, actor, note, COALESCE(metadata, '{}'), created_at
		FROM order_events
		WHERE order_id = $1
		ORDER BY created_at, id`

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	var events []models.OrderEvent
	for rows.Next() {
		var ev models.OrderEvent
		err := rows.Scan(
			&ev.ID,
			&ev.OrderID,
			&ev.ItemID,
			&ev.PreviousStatus,
			&ev.NewStatus,
			&ev.Actor,
			&ev.Note,
			&ev.Metadata,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

type OrderPage struct {
	Orders     []models.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

// SearchOrders lists orders matching filter. A warehouse scope in the filter
// goes through the attribution resolver first so both generations of
// warehouse assignment match.
func SearchOrders(ctx context.Context, db *sql.DB, filter SearchFilter, page PageParams) (*OrderPage, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	page = page.Normalize()

	var orderIDs []int64
	if len(filter.WarehouseIDs) > 0 {
		ids, err := ResolveOrderIDs(ctx, db, filter.WarehouseIDs, "")
		if err != nil {
			return nil, fmt.Errorf("search orders: %w", err)
		}
		if ids == nil {
			ids = []int64{}
		}
		orderIDs = ids
	}

	preds := filter.compile(orderIDs)
	where := preds.where()

	var total int64
	countQuery := `SELECT COUNT(*) FROM orders o ` + where
	if err := db.QueryRowContext(ctx, countQuery, preds.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders o %s %s LIMIT %s OFFSET %s`,
		orderColumns, where, orderByClause(page), preds.bind(page.Limit), preds.bind(page.Offset()))

	rows, err := db.QueryContext(ctx, query, preds.args...)
	if err != nil {
		return nil, fmt.Errorf("search orders: %w", err)
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

	return &OrderPage{
		Orders:     orders,
		Pagination: NewPagination(page.Page, page.Limit, total),
	}, nil
}

// UpdateItemStatus moves one line item to a new fulfillment status and
// appends the audit event in the same transaction. There is no lock against
// concurrent writers; the last writer wins and the event log records every
// transition that was applied.
func UpdateItemStatus(ctx context.Context, db *sql.DB, orderID, itemID int64, newStatus, actor, note string) (*models.OrderItem, error) {
	if !models.IsValidStatus(newStatus) {
		return nil, fmt.Errorf("status %q: %w", newStatus, database.ErrInvalidStatus)
	}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var previous string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM order_items WHERE id = $1 AND order_id = $2`,
			itemID, orderID).Scan(&previous)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrItemNotFound
			}
			return fmt.Errorf("fetch item status: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE order_items SET status = $1, updated_at = NOW() WHERE id = $2`,
			newStatus, itemID)
		if err != nil {
			return fmt.Errorf("update item status: %w", err)
		}

		return appendEvent(ctx, tx, orderID, &itemID, previous, newStatus, actor, note)
	})
	if err != nil {
		return nil, err
	}

	items, err := FetchItemsByOrderIDs(ctx, db, []int64{orderID})
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == itemID {
			return &items[i], nil
		}
	}
	return nil, database.ErrItemNotFound
}

// UpdateOrderStatus moves the coarse order-level status. It is maintained
// independently of item statuses and may lag them.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID int64, newStatus, actor, note string) error {
	if !models.IsValidStatus(newStatus) {
		return fmt.Errorf("status %q: %w", newStatus, database.ErrInvalidStatus)
	}

	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var previous string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = $1`, orderID).Scan(&previous)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("fetch order status: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
			newStatus, orderID)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		return appendEvent(ctx, tx, orderID, nil, previous, newStatus, actor, note)
	})
}

// UpdatePaymentStatus changes the order-level payment state. A transition to
// paid writes one order_revenue ledger entry per retailer whose warehouses
// fulfilled items of the order, split by the items' effective warehouse.
func UpdatePaymentStatus(ctx context.Context, db *sql.DB, orderID int64, newStatus, method string, data json.RawMessage) error {
	if !models.IsValidPaymentStatus(newStatus) {
		return fmt.Errorf("payment status %q: %w", newStatus, database.ErrInvalidPaymentStatus)
	}

	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var previous string
		err := tx.QueryRowContext(ctx,
			`SELECT payment_status FROM orders WHERE id = $1`, orderID).Scan(&previous)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("fetch payment status: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET payment_status = $1, payment_method = $2, payment_data = $3, updated_at = NOW()
			 WHERE id = $4`,
			newStatus, method, nullableJSON(data), orderID)
		if err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}

		if newStatus == models.PaymentStatusPaid && previous != models.PaymentStatusPaid {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO retailer_ledger (retailer_id, order_id, entry_type, amount, created_at)
				 SELECT rw.retailer_id, $1, 'order_revenue', SUM(i.total_price), NOW()
				 FROM order_items i
				 JOIN retailer_warehouses rw
				   ON rw.warehouse_id = COALESCE(i.warehouse_id, (SELECT warehouse_id FROM orders WHERE id = $1))
				 WHERE i.order_id = $1
				 GROUP BY rw.retailer_id`,
				orderID)
			if err != nil {
				return fmt.Errorf("record order revenue: %w", err)
			}
		}

		return nil
	})
}

func appendEvent(ctx context.Context, tx *sql.Tx, orderID int64, itemID *int64, previous, next, actor, note string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_events (order_id, item_id, previous_status, new_status, actor, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		orderID, itemID, previous, next, actor, note)
	if err != nil {
		return fmt.Errorf("append order event: %w", err)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
