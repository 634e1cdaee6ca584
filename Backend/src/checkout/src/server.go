package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

type Server struct {
	repo      *Repository
	rabbit    *Rabbit
	cfg       *Config
	itemCache *expirable.LRU[string, *CatalogItem]
}

func NewServer(repo *Repository, rb *Rabbit, cfg *Config) *Server {
	return &Server{
		repo:   repo,
		rabbit: rb,
		cfg:    cfg,
		// cache de lectura para las vistas de catálogo; el snapshot del
		// checkout nunca pasa por aquí, siempre lee precios vigentes
		itemCache: expirable.NewLRU[string, *CatalogItem](512, nil, time.Minute),
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/catalog/{type}", s.handleCatalogList)
	mux.HandleFunc("GET /api/catalog/{type}/{id}", s.handleCatalogGet)
	mux.HandleFunc("GET /api/cart", s.handleCartView)
	mux.HandleFunc("POST /api/cart/items", s.handleCartAdd)
	mux.HandleFunc("PATCH /api/cart/items", s.handleCartUpdate)
	mux.HandleFunc("DELETE /api/cart/items", s.handleCartRemove)
	mux.HandleFunc("POST /api/coupons/validate", s.handleCouponValidate)
	mux.HandleFunc("POST /api/checkout", s.handleCheckout)
	mux.HandleFunc("GET /api/orders", s.handleOrderList)
	mux.HandleFunc("GET /api/orders/{id}", s.handleOrderGet)
	mux.HandleFunc("POST /api/orders/{id}/status", s.handleOrderStatus)
	mux.HandleFunc("POST /api/custom-orders", s.handleCustomCreate)
	mux.HandleFunc("GET /api/custom-orders", s.handleCustomList)
	mux.HandleFunc("POST /api/custom-orders/{id}/status", s.handleCustomStatus)
	return mux
}

// ---- helpers ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

// writeError separa errores de negocio (mensaje textual al usuario) de fallas
// de infraestructura (opacas, el caller puede reintentar la operación entera)
func writeError(w http.ResponseWriter, err error) {
	var ce *CouponError
	var ke *CheckoutError
	w.Header().Set("Content-Type", "application/json")
	switch {
	case errors.As(err, &ce):
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": ce})
	case errors.As(err, &ke):
		status := http.StatusUnprocessableEntity
		if ke.Kind == CheckoutInvalidInput {
			status = http.StatusBadRequest
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": ke})
	case errors.Is(err, ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"kind": "not_found", "message": "not found"}})
	default:
		log.Error().Err(err).Msg("internal error")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"kind": "internal", "message": "internal error"}})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, &CheckoutError{Kind: CheckoutInvalidInput, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func queryUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("user_id inválido")
	}
	return id, nil
}

// ---- catálogo ----

func (s *Server) handleCatalogList(w http.ResponseWriter, r *http.Request) {
	itemType := r.PathValue("type")
	if !validItemType(itemType) {
		badRequest(w, "unknown item type")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	items, err := s.repo.ListCatalog(r.Context(), itemType, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCatalogGet(w http.ResponseWriter, r *http.Request) {
	itemType := r.PathValue("type")
	if !validItemType(itemType) {
		badRequest(w, "unknown item type")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "id must be > 0")
		return
	}
	key := itemType + ":" + strconv.FormatInt(id, 10)
	if it, ok := s.itemCache.Get(key); ok {
		writeJSON(w, http.StatusOK, it)
		return
	}
	it, err := s.repo.ResolveActiveItem(r.Context(), itemType, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if it == nil {
		writeError(w, ErrNotFound)
		return
	}
	s.itemCache.Add(key, it)
	writeJSON(w, http.StatusOK, it)
}

// ---- carrito ----

type cartItemRequest struct {
	UserID   int64  `json:"user_id"`
	ItemType string `json:"item_type"`
	ItemID   int64  `json:"item_id"`
	Qty      int32  `json:"qty"`
}

func (s *Server) handleCartView(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		badRequest(w, "user_id is required")
		return
	}
	lines, warnings, err := s.repo.SnapshotCart(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	var subtotal int64
	for _, ln := range lines {
		subtotal += ln.LineCents
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lines":          lines,
		"warnings":       warnings,
		"subtotal_cents": subtotal,
	})
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.UserID <= 0 {
		badRequest(w, "user_id is required")
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}
	if err := s.repo.AddCartItem(r.Context(), req.UserID, req.ItemType, req.ItemID, req.Qty); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": true})
}

func (s *Server) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.UserID <= 0 || !validItemType(req.ItemType) {
		badRequest(w, "user_id and a valid item_type are required")
		return
	}
	if err := s.repo.UpdateCartItem(r.Context(), req.UserID, req.ItemType, req.ItemID, req.Qty); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		badRequest(w, "user_id is required")
		return
	}
	itemType := r.URL.Query().Get("item_type")
	itemID, _ := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if itemType == "" {
		// sin item_type se vacía el carrito completo
		if err := s.repo.ClearCart(r.Context(), userID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
		return
	}
	if !validItemType(itemType) {
		badRequest(w, "unknown item type")
		return
	}
	if err := s.repo.RemoveCartItem(r.Context(), userID, itemType, itemID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

// ---- cupones ----

type couponValidateRequest struct {
	UserID int64  `json:"user_id"`
	Code   string `json:"code"`
}

// handleCouponValidate es el preview de la UI: evalúa sin consumir usos.
// El resultado es consultivo; el commit repite los chequeos.
func (s *Server) handleCouponValidate(w http.ResponseWriter, r *http.Request) {
	var req couponValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.UserID <= 0 {
		badRequest(w, "user_id is required")
		return
	}
	lines, warnings, err := s.repo.SnapshotCart(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	var subtotal int64
	for _, ln := range lines {
		subtotal += ln.LineCents
	}
	res, err := EvaluateCoupon(r.Context(), s.repo, req.Code, subtotal, req.UserID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	totals := ComposeTotals(lines, res.DiscountCents, s.cfg.TaxRate, s.cfg.ShippingCents)
	writeJSON(w, http.StatusOK, map[string]any{
		"code":           res.Coupon.Code,
		"discount_cents": res.DiscountCents,
		"totals":         totals,
		"warnings":       warnings,
	})
}

// ---- checkout ----

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	order, warnings, err := s.repo.CommitOrder(r.Context(), req, s.cfg.TaxRate, s.cfg.ShippingCents)
	if err != nil {
		writeError(w, err)
		return
	}

	s.rabbit.PublishJSON(RKOrderCreated, OrderCreatedPayload{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		UserID:        order.UserID,
		Items:         orderItemsToEvt(order.Items),
		SubtotalCents: order.SubtotalCents,
		DiscountCents: order.DiscountCents,
		TotalCents:    order.TotalCents,
		PromoCode:     order.PromoCode,
	})
	log.Info().
		Int64("order_id", order.ID).
		Int64("user_id", order.UserID).
		Int64("total_cents", order.TotalCents).
		Str("promo", order.PromoCode).
		Msg("order committed")

	writeJSON(w, http.StatusCreated, map[string]any{
		"order":    order,
		"warnings": warnings,
	})
}

// ---- órdenes ----

func (s *Server) handleOrderList(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		badRequest(w, "user_id is required")
		return
	}
	orders, err := s.repo.ListOrders(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "id must be > 0")
		return
	}
	o, err := s.repo.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type statusRequest struct {
	Status     string `json:"status"`
	QuoteCents int64  `json:"quote_cents,omitempty"`
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "id must be > 0")
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	o, err := s.repo.UpdateOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	s.rabbit.PublishJSON(RKOrderStatusChanged, OrderStatusChangedPayload{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Status:      o.Status,
		Items:       orderItemsToEvt(o.Items),
	})
	writeJSON(w, http.StatusOK, o)
}

// ---- solicitudes a medida ----

type customOrderRequest struct {
	UserID      int64  `json:"user_id"`
	Title       string `json:"title"`
	Details     string `json:"details"`
	BudgetCents int64  `json:"budget_cents"`
}

func (s *Server) handleCustomCreate(w http.ResponseWriter, r *http.Request) {
	var req customOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.UserID <= 0 || req.Title == "" {
		badRequest(w, "user_id and title are required")
		return
	}
	id, err := s.repo.CreateCustomOrder(r.Context(), &CustomOrder{
		UserID:      req.UserID,
		Title:       req.Title,
		Details:     req.Details,
		BudgetCents: req.BudgetCents,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": CustomStatusPending})
}

func (s *Server) handleCustomList(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		badRequest(w, "user_id is required")
		return
	}
	out, err := s.repo.ListCustomOrders(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCustomStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "id must be > 0")
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := s.repo.UpdateCustomOrderStatus(r.Context(), id, req.Status, req.QuoteCents); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}
