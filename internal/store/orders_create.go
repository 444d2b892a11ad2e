package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/edumart/order-backend/internal/database"
	"github.com/edumart/order-backend/internal/models"
	"github.com/edumart/order-backend/internal/saga"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	UserID          int64
	Currency        string
	PaymentMethod   string
	ShippingAddress json.RawMessage
	BillingAddress  json.RawMessage
	Metadata        json.RawMessage
	Items           []OrderItemRequest
}

type OrderItemRequest struct {
	ProductID   int64
	VariantID   *int64
	WarehouseID *int64
	Quantity    int
}

func (r CreateOrderRequest) validate() error {
	if r.UserID == 0 {
		return fmt.Errorf("user_id: %w", database.ErrMissingField)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("items: %w", database.ErrMissingField)
	}
	for _, item := range r.Items {
		if item.ProductID == 0 {
			return fmt.Errorf("item product_id: %w", database.ErrMissingField)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item quantity must be positive: %w", database.ErrMissingField)
		}
	}
	return nil
}

func generateOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

// CreateOrder inserts the order row, its items, and the initial audit event
// as a compensating sequence rather than a transaction: if any step fails,
// the already-inserted rows are explicitly deleted before the error
// surfaces. A crash between a failed step and its compensation can leave an
// orphaned order row; that risk is accepted here.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	orderStep := &insertOrderStep{db: db, req: req, orderNumber: generateOrderNumber()}
	itemsStep := &insertItemsStep{db: db, req: req, order: orderStep}
	eventStep := &insertEventStep{db: db, order: orderStep}

	seq := saga.NewSequence("create_order", []saga.Step{orderStep, itemsStep, eventStep})
	if err := seq.Run(ctx); err != nil {
		return nil, err
	}

	return GetOrder(ctx, db, orderStep.orderID)
}

type insertOrderStep struct {
	db          *sql.DB
	req         CreateOrderRequest
	orderNumber string
	orderID     int64
}

func (s *insertOrderStep) Name() string { return "insert_order" }

func (s *insertOrderStep) Execute(ctx context.Context) error {
	currency := s.req.Currency
	if currency == "" {
		currency = "USD"
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO orders (order_number, user_id, status, total_amount, currency,
		                     payment_status, payment_method, shipping_address, billing_address,
		                     metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING id`,
		s.orderNumber, s.req.UserID, models.StatusInitialized, currency,
		models.PaymentStatusPending, s.req.PaymentMethod,
		nullableJSON(s.req.ShippingAddress), nullableJSON(s.req.BillingAddress),
		nullableJSON(s.req.Metadata)).Scan(&s.orderID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *insertOrderStep) Compensate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, s.orderID)
	if err != nil {
		return fmt.Errorf("delete order %d: %w", s.orderID, err)
	}
	return nil
}

type insertItemsStep struct {
	db    *sql.DB
	req   CreateOrderRequest
	order *insertOrderStep
}

func (s *insertItemsStep) Name() string { return "insert_items" }

// Execute resolves each item against the product catalog, freezes the
// product snapshot, and inserts the item rows. The order total is written
// last, once every item priced successfully.
func (s *insertItemsStep) Execute(ctx context.Context) error {
	total := decimal.Zero

	for _, req := range s.req.Items {
		var sku, title, description string
		var price decimal.Decimal

		err := s.db.QueryRowContext(ctx,
			`SELECT sku, title, COALESCE(description, ''), price FROM products WHERE id = $1`,
			req.ProductID).Scan(&sku, &title, &description, &price)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("product %d: %w", req.ProductID, database.ErrProductNotFound)
			}
			return fmt.Errorf("fetch product %d: %w", req.ProductID, err)
		}

		if req.VariantID != nil {
			err := s.db.QueryRowContext(ctx,
				`SELECT price FROM product_variants WHERE id = $1 AND product_id = $2`,
				*req.VariantID, req.ProductID).Scan(&price)
			if err != nil {
				if err == sql.ErrNoRows {
					return fmt.Errorf("variant %d: %w", *req.VariantID, database.ErrVariantNotFound)
				}
				return fmt.Errorf("fetch variant %d: %w", *req.VariantID, err)
			}
		}

		snapshot, err := json.Marshal(models.ProductSnapshot{
			Title:       title,
			Description: description,
			Price:       price,
		})
		if err != nil {
			return fmt.Errorf("encode product snapshot: %w", err)
		}

		lineTotal := price.Mul(decimal.NewFromInt(int64(req.Quantity)))

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, variant_id, warehouse_id, sku, title,
			                          quantity, unit_price, total_price, product_snapshot, status,
			                          created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
			s.order.orderID, req.ProductID, req.VariantID, req.WarehouseID, sku, title,
			req.Quantity, price, lineTotal, snapshot, models.StatusInitialized)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		total = total.Add(lineTotal)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET total_amount = $1, updated_at = NOW() WHERE id = $2`,
		total, s.order.orderID)
	if err != nil {
		return fmt.Errorf("update order total: %w", err)
	}

	return nil
}

func (s *insertItemsStep) Compensate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, s.order.orderID)
	if err != nil {
		return fmt.Errorf("delete order items for order %d: %w", s.order.orderID, err)
	}
	return nil
}

type insertEventStep struct {
	db    *sql.DB
	order *insertOrderStep
}

func (s *insertEventStep) Name() string { return "insert_initial_event" }

func (s *insertEventStep) Execute(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO order_events (order_id, previous_status, new_status, actor, note, created_at)
		 VALUES ($1, '', $2, 'system', 'order created', NOW())`,
		s.order.orderID, models.StatusInitialized)
	if err != nil {
		return fmt.Errorf("insert initial event: %w", err)
	}
	return nil
}

func (s *insertEventStep) Compensate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM order_events WHERE order_id = $1`, s.order.orderID)
	if err != nil {
		return fmt.Errorf("delete order events for order %d: %w", s.order.orderID, err)
	}
	return nil
}
