package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "checkout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedBook(t *testing.T, r *Repository, id int64, title string, cents int64, active bool) {
	t.Helper()
	_, err := r.db.Exec(`INSERT INTO books(id, title, price_cents, size_bytes, is_active) VALUES(?,?,?,?,?)`,
		id, title, cents, 1<<20, active)
	require.NoError(t, err)
}

func seedGame(t *testing.T, r *Repository, id int64, title string, cents int64, active bool) {
	t.Helper()
	_, err := r.db.Exec(`INSERT INTO games(id, title, price_cents, size_bytes, is_active) VALUES(?,?,?,?,?)`,
		id, title, cents, 1<<20, active)
	require.NoError(t, err)
}

type couponSeed struct {
	code       string
	dtype      string
	value      float64
	minCents   int64
	maxCents   int64 // 0 => NULL
	usageLimit int64 // 0 => NULL
	usedCount  int64
	expired    bool
	inactive   bool
}

func seedCoupon(t *testing.T, r *Repository, s couponSeed) int64 {
	t.Helper()
	from, until := int64(0), time.Now().Add(24*time.Hour).Unix()
	if s.expired {
		until = time.Now().Add(-time.Hour).Unix()
	}
	var maxCents, limit any
	if s.maxCents > 0 {
		maxCents = s.maxCents
	}
	if s.usageLimit > 0 {
		limit = s.usageLimit
	}
	res, err := r.db.Exec(`
    INSERT INTO coupons(code, discount_type, discount_value, min_order_cents,
                        max_discount_cents, usage_limit, used_count,
                        valid_from_unix, valid_until_unix, is_active)
    VALUES(?,?,?,?,?,?,?,?,?,?)`,
		s.code, s.dtype, s.value, s.minCents, maxCents, limit, s.usedCount, from, until, !s.inactive)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestCartAddIncrementsOnRepeat(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, r.AddCartItem(ctx, 1, ItemTypeBook, 10, 1))
	require.NoError(t, r.AddCartItem(ctx, 1, ItemTypeBook, 10, 2))

	ls, err := r.GetCartLines(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ls, 1)
	assert.Equal(t, int32(3), ls[0].Qty)
}

func TestCartUpdateToZeroDeletes(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, r.AddCartItem(ctx, 1, ItemTypeBook, 10, 2))
	require.NoError(t, r.UpdateCartItem(ctx, 1, ItemTypeBook, 10, 0))

	ls, err := r.GetCartLines(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, ls)
}

func TestCartRejectsBadInput(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	err := r.AddCartItem(ctx, 1, "movie", 10, 1)
	var ke *CheckoutError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, CheckoutInvalidInput, ke.Kind)

	err = r.AddCartItem(ctx, 1, ItemTypeBook, 10, 0)
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, CheckoutInvalidInput, ke.Kind)
}

// P7: un ítem inactivo sale del snapshot con advertencia, el resto sigue
func TestSnapshotExcludesInactiveWithWarning(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, r, 1, "Activo", 2999, true)
	seedGame(t, r, 2, "Retirado", 3999, false)
	require.NoError(t, r.AddCartItem(ctx, 1, ItemTypeBook, 1, 1))
	require.NoError(t, r.AddCartItem(ctx, 1, ItemTypeGame, 2, 1))
	// línea apuntando a un registro inexistente también es advertencia
	require.NoError(t, r.AddCartItem(ctx, 1, ItemTypeProject, 99, 1))

	lines, warnings, err := r.SnapshotCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Activo", lines[0].Title)
	assert.Equal(t, int64(2999), lines[0].LineCents)
	assert.Len(t, warnings, 2)
}

func TestSnapshotPricesAreLive(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, r, 1, "Libro", 2999, true)
	require.NoError(t, r.AddCartItem(ctx, 1, ItemTypeBook, 1, 2))

	_, err := r.db.Exec(`UPDATE books SET price_cents=3999 WHERE id=1`)
	require.NoError(t, err)

	lines, _, err := r.SnapshotCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(3999), lines[0].UnitCents)
	assert.Equal(t, int64(7998), lines[0].LineCents)
}

func TestFindActiveCouponCaseAndWindow(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedCoupon(t, r, couponSeed{code: "WELCOME10", dtype: DiscountTypePercentage, value: 10})
	seedCoupon(t, r, couponSeed{code: "OLD", dtype: DiscountTypeFixed, value: 5, expired: true})
	seedCoupon(t, r, couponSeed{code: "OFF", dtype: DiscountTypeFixed, value: 5, inactive: true})

	c, err := r.FindActiveCoupon(ctx, "WELCOME10", time.Now())
	require.NoError(t, err)
	require.NotNil(t, c)

	// el código es case-insensitive
	c, err = r.FindActiveCoupon(ctx, "welcome10", time.Now())
	require.NoError(t, err)
	require.NotNil(t, c)

	c, err = r.FindActiveCoupon(ctx, "OLD", time.Now())
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = r.FindActiveCoupon(ctx, "OFF", time.Now())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestOrderStatusTransitions(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, r, 1, "Libro", 2999, true)
	require.NoError(t, r.AddCartItem(ctx, 1, ItemTypeBook, 1, 1))
	o, _, err := r.CommitOrder(ctx, CheckoutRequest{UserID: 1, PaymentMethod: "card"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPending, o.Status)

	o, err = r.UpdateOrderStatus(ctx, o.ID, OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusProcessing, o.Status)

	// processing no puede volver a pending ni cancelarse
	_, err = r.UpdateOrderStatus(ctx, o.ID, OrderStatusPending)
	var ke *CheckoutError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, CheckoutInvalidTransition, ke.Kind)
	_, err = r.UpdateOrderStatus(ctx, o.ID, OrderStatusCancelled)
	require.ErrorAs(t, err, &ke)

	o, err = r.UpdateOrderStatus(ctx, o.ID, OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCompleted, o.Status)
}

// dos transiciones simultáneas sobre la misma orden: la guarda por estado en
// el UPDATE deja pasar exactamente una
func TestOrderStatusConcurrentTransitions(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, r, 1, "Libro", 2999, true)
	require.NoError(t, r.AddCartItem(ctx, 1, ItemTypeBook, 1, 1))
	o, _, err := r.CommitOrder(ctx, CheckoutRequest{UserID: 1, PaymentMethod: "card"}, 0, 0)
	require.NoError(t, err)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := r.UpdateOrderStatus(ctx, o.ID, OrderStatusProcessing)
			errs <- err
		}()
	}
	var failed int
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			var ke *CheckoutError
			require.ErrorAs(t, err, &ke)
			assert.Equal(t, CheckoutInvalidTransition, ke.Kind)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	got, err := r.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusProcessing, got.Status)
}

func TestCustomOrderLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	id, err := r.CreateCustomOrder(ctx, &CustomOrder{UserID: 4, Title: "Tienda a medida", BudgetCents: 500000})
	require.NoError(t, err)

	require.NoError(t, r.UpdateCustomOrderStatus(ctx, id, CustomStatusQuoted, 750000))
	require.NoError(t, r.UpdateCustomOrderStatus(ctx, id, CustomStatusAccepted, 750000))

	err = r.UpdateCustomOrderStatus(ctx, id, CustomStatusPending, 0)
	var ke *CheckoutError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, CheckoutInvalidTransition, ke.Kind)

	out, err := r.ListCustomOrders(ctx, 4)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, CustomStatusAccepted, out[0].Status)
	assert.Equal(t, int64(750000), out[0].QuoteCents)
}
