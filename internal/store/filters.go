package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/edumart/order-backend/internal/database"
	"github.com/edumart/order-backend/internal/models"
	"github.com/lib/pq"
)

// SearchFilter narrows an order listing. Statuses are matched against item
// rows (item status is authoritative); WarehouseIDs scope the listing
// through the attribution resolver before the SQL filter is applied.
type SearchFilter struct {
	UserID        *int64
	Statuses      []string
	WarehouseIDs  []int64
	OrderNumberQ  string
	PaymentStatus string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

func (f SearchFilter) Validate() error {
	for _, s := range f.Statuses {
		if !models.IsValidStatus(s) {
			return fmt.Errorf("status %q: %w", s, database.ErrInvalidStatus)
		}
	}
	if f.PaymentStatus != "" && !models.IsValidPaymentStatus(f.PaymentStatus) {
		return fmt.Errorf("payment status %q: %w", f.PaymentStatus, database.ErrInvalidPaymentStatus)
	}
	return nil
}

// predicates collects parameterized WHERE conditions. Every value travels as
// a positional argument; no filter value is ever interpolated into SQL text.
type predicates struct {
	conds []string
	args  []interface{}
}

// bind registers v as the next positional argument and returns its
// placeholder.
func (p *predicates) bind(v interface{}) string {
	p.args = append(p.args, v)
	return fmt.Sprintf("$%d", len(p.args))
}

func (p *predicates) add(format string, vals ...interface{}) {
	placeholders := make([]interface{}, len(vals))
	for i, v := range vals {
		placeholders[i] = p.bind(v)
	}
	p.conds = append(p.conds, fmt.Sprintf(format, placeholders...))
}

func (p *predicates) where() string {
	if len(p.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(p.conds, " AND ")
}

// compile translates the filter into WHERE conditions over the orders table
// (aliased o). orderIDs, when non-nil, is the warehouse scope already
// produced by the resolver; an empty non-nil slice matches nothing.
func (f SearchFilter) compile(orderIDs []int64) *predicates {
	p := &predicates{}

	if f.UserID != nil {
		p.add("o.user_id = %s", *f.UserID)
	}
	if orderIDs != nil {
		p.add("o.id = ANY(%s)", pq.Array(orderIDs))
	}
	if len(f.Statuses) > 0 {
		p.add("EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.status = ANY(%s))",
			pq.Array(f.Statuses))
	}
	if f.OrderNumberQ != "" {
		p.add("o.order_number ILIKE %s", "%"+f.OrderNumberQ+"%")
	}
	if f.PaymentStatus != "" {
		p.add("o.payment_status = %s", f.PaymentStatus)
	}
	if f.CreatedFrom != nil {
		p.add("o.created_at >= %s", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		p.add("o.created_at <= %s", *f.CreatedTo)
	}

	return p
}
