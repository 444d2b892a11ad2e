// Package dashboard composes the retailer-facing overview. Every sub-metric
// is best-effort: a failure degrades that metric to its zero value and is
// logged, never failing the whole overview.
package dashboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/edumart/order-backend/internal/cache"
	"github.com/edumart/order-backend/internal/config"
	"github.com/edumart/order-backend/internal/enrich"
	"github.com/edumart/order-backend/internal/store"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type RecentOrder struct {
	ID          int64                 `json:"id"`
	OrderNumber string                `json:"order_number"`
	Status      string                `json:"status"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
	Currency    string                `json:"currency"`
	CreatedAt   time.Time             `json:"created_at"`
	Items       []enrich.EnrichedItem `json:"items"`
}

type Summary struct {
	RetailerID       int64           `json:"retailer_id"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	ActiveOrders     int             `json:"active_orders"`
	LowStockVariants int             `json:"low_stock_variants"`
	SchoolLinks      map[string]int  `json:"school_links"`
	RecentOrders     []RecentOrder   `json:"recent_orders"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

type Aggregator struct {
	db       *sql.DB
	cache    cache.Cache
	enricher *enrich.Enricher
	cfg      config.DashboardConfig
	cacheTTL time.Duration
	logger   *slog.Logger
}

// New wires the aggregator. cache may be nil, in which case every overview
// is computed fresh.
func New(db *sql.DB, c cache.Cache, enricher *enrich.Enricher, cfg config.DashboardConfig, cacheTTL time.Duration, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{db: db, cache: c, enricher: enricher, cfg: cfg, cacheTTL: cacheTTL, logger: logger}
}

// Overview fans the five sub-metrics out concurrently and joins them into
// one summary. The only ordering guarantee between them is that all complete
// before the summary is assembled.
func (a *Aggregator) Overview(ctx context.Context, retailerID int64) *Summary {
	if cached := a.fromCache(ctx, retailerID); cached != nil {
		return cached
	}

	summary := &Summary{
		RetailerID:   retailerID,
		TotalSales:   decimal.Zero,
		SchoolLinks:  map[string]int{},
		RecentOrders: []RecentOrder{},
		GeneratedAt:  time.Now().UTC(),
	}

	warehouseIDs, err := store.WarehouseIDsForRetailer(ctx, a.db, retailerID)
	if err != nil {
		a.logger.WarnContext(ctx, "dashboard warehouse resolution failed, metrics degrade to defaults",
			"retailer_id", retailerID, "error", err)
		warehouseIDs = nil
	}

	var wg sync.WaitGroup
	run := func(metric string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				a.logger.WarnContext(ctx, "dashboard metric failed, using default",
					"metric", metric, "retailer_id", retailerID, "error", err)
			}
		}()
	}

	run("total_sales", func() error {
		total, err := a.totalSales(ctx, retailerID)
		if err != nil {
			return err
		}
		summary.TotalSales = total
		return nil
	})

	run("active_orders", func() error {
		count, err := a.activeOrders(ctx, warehouseIDs)
		if err != nil {
			return err
		}
		summary.ActiveOrders = count
		return nil
	})

	run("low_stock_variants", func() error {
		count, err := a.lowStockVariants(ctx, warehouseIDs)
		if err != nil {
			return err
		}
		summary.LowStockVariants = count
		return nil
	})

	run("school_links", func() error {
		links, err := a.schoolLinks(ctx, warehouseIDs)
		if err != nil {
			return err
		}
		summary.SchoolLinks = links
		return nil
	})

	run("recent_orders", func() error {
		recent, err := a.recentOrders(ctx, warehouseIDs)
		if err != nil {
			return err
		}
		summary.RecentOrders = recent
		return nil
	})

	wg.Wait()

	a.toCache(ctx, retailerID, summary)

	return summary
}

func (a *Aggregator) totalSales(ctx context.Context, retailerID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := a.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0)
		 FROM retailer_ledger
		 WHERE retailer_id = $1 AND entry_type = 'order_revenue'`,
		retailerID).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Round(2), nil
}

func (a *Aggregator) activeOrders(ctx context.Context, warehouseIDs []int64) (int, error) {
	if len(warehouseIDs) == 0 {
		return 0, nil
	}
	stats, err := store.ComputeWarehouseStats(ctx, a.db, warehouseIDs, nil, nil)
	if err != nil {
		return 0, err
	}
	return stats.ActiveOrders, nil
}

func (a *Aggregator) lowStockVariants(ctx context.Context, warehouseIDs []int64) (int, error) {
	if len(warehouseIDs) == 0 {
		return 0, nil
	}
	var count int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM product_variants pv
		 JOIN products p ON p.id = pv.product_id
		 WHERE p.warehouse_id = ANY($1) AND pv.stock < $2`,
		pq.Array(warehouseIDs), a.cfg.LowStockThreshold).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (a *Aggregator) schoolLinks(ctx context.Context, warehouseIDs []int64) (map[string]int, error) {
	out := map[string]int{}
	if len(warehouseIDs) == 0 {
		return out, nil
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT ps.status, COUNT(*)
		 FROM product_schools ps
		 JOIN products p ON p.id = ps.product_id
		 WHERE p.warehouse_id = ANY($1)
		 GROUP BY ps.status`,
		pq.Array(warehouseIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[status] = count
	}
	return out, rows.Err()
}

func (a *Aggregator) recentOrders(ctx context.Context, warehouseIDs []int64) ([]RecentOrder, error) {
	if len(warehouseIDs) == 0 {
		return []RecentOrder{}, nil
	}

	page, err := store.SearchOrders(ctx, a.db,
		store.SearchFilter{WarehouseIDs: warehouseIDs},
		store.PageParams{Page: 1, Limit: a.cfg.RecentOrderCount, SortBy: "created_at", SortOrder: "desc"})
	if err != nil {
		return nil, err
	}

	orderIDs := make([]int64, 0, len(page.Orders))
	for _, order := range page.Orders {
		orderIDs = append(orderIDs, order.ID)
	}
	items, err := store.FetchItemsByOrderIDs(ctx, a.db, orderIDs)
	if err != nil {
		return nil, err
	}
	enriched := a.enricher.Enrich(ctx, items)

	byOrder := make(map[int64][]enrich.EnrichedItem)
	for _, item := range enriched {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	out := make([]RecentOrder, 0, len(page.Orders))
	for _, order := range page.Orders {
		out = append(out, RecentOrder{
			ID:          order.ID,
			OrderNumber: order.OrderNumber,
			Status:      order.Status,
			TotalAmount: order.TotalAmount,
			Currency:    order.Currency,
			CreatedAt:   order.CreatedAt,
			Items:       byOrder[order.ID],
		})
	}

	return out, nil
}

func (a *Aggregator) fromCache(ctx context.Context, retailerID int64) *Summary {
	if a.cache == nil {
		return nil
	}

	key := a.cache.GenerateKey("dashboard", strconv.FormatInt(retailerID, 10))
	raw, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.WarnContext(ctx, "dashboard cache read failed", "error", err)
		return nil
	}
	if raw == "" {
		return nil
	}

	var summary Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		a.logger.WarnContext(ctx, "dashboard cache entry unreadable", "error", err)
		return nil
	}
	return &summary
}

func (a *Aggregator) toCache(ctx context.Context, retailerID int64, summary *Summary) {
	if a.cache == nil {
		return
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		a.logger.WarnContext(ctx, "dashboard cache encode failed", "error", err)
		return
	}

	key := a.cache.GenerateKey("dashboard", strconv.FormatInt(retailerID, 10))
	if err := a.cache.Set(ctx, key, raw, a.cacheTTL); err != nil {
		a.logger.WarnContext(ctx, "dashboard cache write failed", "error", err)
	}
}
