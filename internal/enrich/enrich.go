// Package enrich attaches variant and school display data to already-fetched
// order items using a fixed number of batch lookups, regardless of how many
// items are passed in.
package enrich

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"

	"github.com/edumart/order-backend/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Option struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

type VariantDetail struct {
	ID      int64           `json:"id"`
	Price   decimal.Decimal `json:"price"`
	Stock   int             `json:"stock"`
	Options []Option        `json:"options"`
}

type EnrichedItem struct {
	models.OrderItem
	Variant    *VariantDetail `json:"variant"`
	SchoolName *string        `json:"school_name"`
}

type Enricher struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{db: db, logger: logger}
}

// Enrich returns one enriched item per input item, in order. Variant and
// SchoolName stay nil when the referenced row is missing or a batch lookup
// fails; lookup failures are logged and never propagated, so callers always
// get a usable result.
func (e *Enricher) Enrich(ctx context.Context, items []models.OrderItem) []EnrichedItem {
	variantIDs := distinctVariantIDs(items)
	productIDs := distinctProductIDs(items)

	variants := e.fetchVariants(ctx, variantIDs)
	schools := e.fetchSchoolNames(ctx, productIDs)

	return merge(items, variants, schools)
}

// merge is pure: running it twice over the same maps yields the same result.
func merge(items []models.OrderItem, variants map[int64]*VariantDetail, schools map[int64]string) []EnrichedItem {
	out := make([]EnrichedItem, len(items))
	for i, item := range items {
		enriched := EnrichedItem{OrderItem: item}
		if item.VariantID != nil {
			enriched.Variant = variants[*item.VariantID]
		}
		if name, ok := schools[item.ProductID]; ok {
			enriched.SchoolName = &name
		}
		out[i] = enriched
	}
	return out
}

func distinctVariantIDs(items []models.OrderItem) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, item := range items {
		if item.VariantID != nil && !seen[*item.VariantID] {
			seen[*item.VariantID] = true
			ids = append(ids, *item.VariantID)
		}
	}
	return ids
}

func distinctProductIDs(items []models.OrderItem) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// fetchVariants runs the two variant-side batch lookups: variant rows, then
// the option values those variants reference together with their parent
// attribute. Option order follows the fixed 3-slot layout on the variant
// row.
func (e *Enricher) fetchVariants(ctx context.Context, variantIDs []int64) map[int64]*VariantDetail {
	out := make(map[int64]*VariantDetail)
	if len(variantIDs) == 0 {
		return out
	}

	rows, err := e.db.QueryContext(ctx,
		`SELECT id, price, stock, option_value_1, option_value_2, option_value_3
		 FROM product_variants
		 WHERE id = ANY($1)`,
		pq.Array(variantIDs))
	if err != nil {
		e.logger.WarnContext(ctx, "variant lookup failed, items stay unenriched", "error", err)
		return map[int64]*VariantDetail{}
	}
	defer rows.Close()

	slots := make(map[int64][3]*int64)
	for rows.Next() {
		detail := &VariantDetail{}
		var optionIDs [3]*int64
		err := rows.Scan(&detail.ID, &detail.Price, &detail.Stock,
			&optionIDs[0], &optionIDs[1], &optionIDs[2])
		if err != nil {
			e.logger.WarnContext(ctx, "variant scan failed, items stay unenriched", "error", err)
			return map[int64]*VariantDetail{}
		}
		out[detail.ID] = detail
		slots[detail.ID] = optionIDs
	}
	if err := rows.Err(); err != nil {
		e.logger.WarnContext(ctx, "variant lookup failed, items stay unenriched", "error", err)
		return map[int64]*VariantDetail{}
	}

	options := e.fetchOptionValues(ctx, slots)

	for id, detail := range out {
		for _, optionID := range slots[id] {
			if optionID == nil {
				continue
			}
			if opt, ok := options[*optionID]; ok {
				detail.Options = append(detail.Options, opt)
			}
		}
	}

	return out
}

func (e *Enricher) fetchOptionValues(ctx context.Context, slots map[int64][3]*int64) map[int64]Option {
	seen := make(map[int64]bool)
	var ids []int64
	for _, optionIDs := range slots {
		for _, id := range optionIDs {
			if id != nil && !seen[*id] {
				seen[*id] = true
				ids = append(ids, *id)
			}
		}
	}
	if len(ids) == 0 {
		return map[int64]Option{}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows, err := e.db.QueryContext(ctx,
		`SELECT ov.id, ov.value, a.name
		 FROM option_values ov
		 JOIN attributes a ON a.id = ov.attribute_id
		 WHERE ov.id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		e.logger.WarnContext(ctx, "option value lookup failed, variant options dropped", "error", err)
		return map[int64]Option{}
	}
	defer rows.Close()

	out := make(map[int64]Option)
	for rows.Next() {
		var id int64
		var opt Option
		if err := rows.Scan(&id, &opt.Value, &opt.Attribute); err != nil {
			e.logger.WarnContext(ctx, "option value scan failed, variant options dropped", "error", err)
			return map[int64]Option{}
		}
		out[id] = opt
	}
	if err := rows.Err(); err != nil {
		e.logger.WarnContext(ctx, "option value lookup failed, variant options dropped", "error", err)
		return map[int64]Option{}
	}

	return out
}

func (e *Enricher) fetchSchoolNames(ctx context.Context, productIDs []int64) map[int64]string {
	if len(productIDs) == 0 {
		return map[int64]string{}
	}

	rows, err := e.db.QueryContext(ctx,
		`SELECT ps.product_id, s.name
		 FROM product_schools ps
		 JOIN schools s ON s.id = ps.school_id
		 WHERE ps.product_id = ANY($1)
		 ORDER BY ps.product_id, ps.school_id`,
		pq.Array(productIDs))
	if err != nil {
		e.logger.WarnContext(ctx, "school lookup failed, items stay unenriched", "error", err)
		return map[int64]string{}
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var productID int64
		var name string
		if err := rows.Scan(&productID, &name); err != nil {
			e.logger.WarnContext(ctx, "school scan failed, items stay unenriched", "error", err)
			return map[int64]string{}
		}
		if _, ok := out[productID]; !ok {
			out[productID] = name
		}
	}
	if err := rows.Err(); err != nil {
		e.logger.WarnContext(ctx, "school lookup failed, items stay unenriched", "error", err)
		return map[int64]string{}
	}

	return out
}
