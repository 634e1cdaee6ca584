package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *Repository) {
	t.Helper()
	repo := newTestRepo(t)
	cfg := &Config{TaxRate: 0, ShippingCents: 0}
	return NewServer(repo, nil, cfg), repo
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPCheckoutFlow(t *testing.T) {
	srv, repo := newTestServer(t)
	mux := srv.Routes()
	seedBook(t, repo, 1, "Libro", 5000, true)
	seedCoupon(t, repo, couponSeed{code: "WELCOME10", dtype: DiscountTypePercentage, value: 10})

	rec := doJSON(t, mux, http.MethodPost, "/api/cart/items",
		map[string]any{"user_id": 7, "item_type": "book", "item_id": 1, "qty": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/coupons/validate",
		map[string]any{"user_id": 7, "code": "welcome10"})
	require.Equal(t, http.StatusOK, rec.Code)
	var preview struct {
		Data struct {
			DiscountCents int64 `json:"discount_cents"`
			Totals        OrderTotals
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, int64(500), preview.Data.DiscountCents)

	rec = doJSON(t, mux, http.MethodPost, "/api/checkout",
		map[string]any{"user_id": 7, "payment_method": "card", "promo_code": "WELCOME10"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data struct {
			Order Order `json:"order"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(4500), created.Data.Order.TotalCents)

	// el preview no consumió el uso; el commit sí
	c, err := repo.FindActiveCoupon(context.Background(), "WELCOME10", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.UsedCount)
}

func TestHTTPBusinessErrorsAs422(t *testing.T) {
	srv, repo := newTestServer(t)
	mux := srv.Routes()
	seedBook(t, repo, 1, "Libro", 2000, true)
	seedCoupon(t, repo, couponSeed{code: "MIN25", dtype: DiscountTypeFixed, value: 5, minCents: 2500})

	rec := doJSON(t, mux, http.MethodPost, "/api/cart/items",
		map[string]any{"user_id": 7, "item_type": "book", "item_id": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/coupons/validate",
		map[string]any{"user_id": 7, "code": "MIN25"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp struct {
		Error CouponError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, CouponBelowMinimum, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "$25.00")

	// carrito vacío => 422 con empty_cart
	rec = doJSON(t, mux, http.MethodPost, "/api/checkout",
		map[string]any{"user_id": 99, "payment_method": "card"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// input inválido => 400
	rec = doJSON(t, mux, http.MethodPost, "/api/checkout",
		map[string]any{"payment_method": "card"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPCartRemoveValidatesType(t *testing.T) {
	srv, repo := newTestServer(t)
	mux := srv.Routes()
	seedBook(t, repo, 1, "Libro", 2000, true)

	rec := doJSON(t, mux, http.MethodPost, "/api/cart/items",
		map[string]any{"user_id": 7, "item_type": "book", "item_id": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	// un item_type desconocido es 400, no un "removed" falso
	rec = doJSON(t, mux, http.MethodDelete, "/api/cart/items?user_id=7&item_type=movie&item_id=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(1), countRows(t, repo, `SELECT COUNT(1) FROM cart_items WHERE user_id=7`))

	rec = doJSON(t, mux, http.MethodDelete, "/api/cart/items?user_id=7&item_type=book&item_id=1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), countRows(t, repo, `SELECT COUNT(1) FROM cart_items WHERE user_id=7`))
}

func TestHTTPCatalog(t *testing.T) {
	srv, repo := newTestServer(t)
	mux := srv.Routes()
	seedBook(t, repo, 1, "Libro", 2000, true)
	seedBook(t, repo, 2, "Oculto", 2000, false)

	rec := doJSON(t, mux, http.MethodGet, "/api/catalog/book", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []CatalogItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Libro", list.Data[0].Title)

	rec = doJSON(t, mux, http.MethodGet, "/api/catalog/book/2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/catalog/movie", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
