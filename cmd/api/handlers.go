package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edumart/order-backend/internal/dashboard"
	"github.com/edumart/order-backend/internal/enrich"
	"github.com/edumart/order-backend/internal/models"
	"github.com/edumart/order-backend/internal/store"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	db        *sql.DB
	enricher  *enrich.Enricher
	dashboard *dashboard.Aggregator
}

func NewHandler(db *sql.DB, enricher *enrich.Enricher, dash *dashboard.Aggregator) *Handler {
	return &Handler{db: db, enricher: enricher, dashboard: dash}
}

type createOrderRequest struct {
	UserID          int64           `json:"user_id"`
	Currency        string          `json:"currency"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingAddress json.RawMessage `json:"shipping_address"`
	BillingAddress  json.RawMessage `json:"billing_address"`
	Metadata        json.RawMessage `json:"metadata"`
	Items           []struct {
		ProductID   int64  `json:"product_id"`
		VariantID   *int64 `json:"variant_id"`
		WarehouseID *int64 `json:"warehouse_id"`
		Quantity    int    `json:"quantity"`
	} `json:"items"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	storeReq := store.CreateOrderRequest{
		UserID:          req.UserID,
		Currency:        req.Currency,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Metadata:        req.Metadata,
	}
	for _, item := range req.Items {
		storeReq.Items = append(storeReq.Items, store.OrderItemRequest{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			WarehouseID: item.WarehouseID,
			Quantity:    item.Quantity,
		})
	}

	order, err := store.CreateOrder(r.Context(), h.db, storeReq)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// orderDetail presents an order with its items enriched for display.
type orderDetail struct {
	*models.Order
	Items []enrich.EnrichedItem `json:"items"`
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid order id")
		return
	}

	order, err := store.GetOrder(r.Context(), h.db, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orderDetail{
		Order: order,
		Items: h.enricher.Enrich(r.Context(), order.Items),
	})
}

func (h *Handler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := store.GetOrderByNumber(r.Context(), h.db, chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orderDetail{
		Order: order,
		Items: h.enricher.Enrich(r.Context(), order.Items),
	})
}

func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.SearchFilter{
		OrderNumberQ:  q.Get("q"),
		PaymentStatus: q.Get("payment_status"),
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid user_id")
			return
		}
		filter.UserID = &id
	}
	if v := q.Get("status"); v != "" {
		filter.Statuses = strings.Split(v, ",")
	}
	if v := q.Get("warehouse_id"); v != "" {
		ids, err := parseInt64List(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid warehouse_id")
			return
		}
		filter.WarehouseIDs = ids
	}
	var badTime bool
	filter.CreatedFrom, badTime = parseTimeParam(q.Get("from"))
	if badTime {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid from timestamp")
		return
	}
	filter.CreatedTo, badTime = parseTimeParam(q.Get("to"))
	if badTime {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid to timestamp")
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	params := store.PageParams{
		Page:      page,
		Limit:     limit,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	result, err := store.SearchOrders(r.Context(), h.db, filter, params)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
	Note   string `json:"note"`
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid order id")
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if err := store.UpdateOrderStatus(r.Context(), h.db, id, req.Status, req.Actor, req.Note); err != nil {
		writeStoreError(w, err)
		return
	}

	order, err := store.GetOrder(r.Context(), h.db, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid order id")
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid item id")
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	item, err := store.UpdateItemStatus(r.Context(), h.db, orderID, itemID, req.Status, req.Actor, req.Note)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

type paymentUpdateRequest struct {
	Status string          `json:"status"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid order id")
		return
	}

	var req paymentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if err := store.UpdatePaymentStatus(r.Context(), h.db, id, req.Status, req.Method, req.Data); err != nil {
		writeStoreError(w, err)
		return
	}

	order, err := store.GetOrder(r.Context(), h.db, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) WarehouseStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid warehouse id")
		return
	}

	if _, err := store.GetWarehouse(r.Context(), h.db, id); err != nil {
		writeStoreError(w, err)
		return
	}

	q := r.URL.Query()
	from, badTime := parseTimeParam(q.Get("from"))
	if badTime {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid from timestamp")
		return
	}
	to, badTime := parseTimeParam(q.Get("to"))
	if badTime {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid to timestamp")
		return
	}

	stats, err := store.ComputeWarehouseStats(r.Context(), h.db, []int64{id}, from, to)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) LinkWarehouse(w http.ResponseWriter, r *http.Request) {
	retailerID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid retailer id")
		return
	}
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid warehouse id")
		return
	}

	if _, err := store.GetWarehouse(r.Context(), h.db, warehouseID); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := store.LinkRetailerWarehouse(r.Context(), h.db, retailerID, warehouseID); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{
		"retailer_id":  retailerID,
		"warehouse_id": warehouseID,
	})
}

func (h *Handler) RetailerDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid retailer id")
		return
	}

	writeJSON(w, http.StatusOK, h.dashboard.Overview(r.Context(), id))
}

func parseInt64List(v string) ([]int64, error) {
	parts := strings.Split(v, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseTimeParam(v string) (*time.Time, bool) {
	if v == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, true
	}
	return &t, false
}
