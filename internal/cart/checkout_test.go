package cart

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"gulf-store/internal/domain"
	"gulf-store/internal/kv"
	"gulf-store/internal/tables"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var saudi = domain.CountryConfig{Code: "SA", Name: "السعودية", Currency: "SAR", Symbol: "ر.س", RateToUSD: 3.75}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validForm(method domain.PaymentMethod) Form {
	return Form{Name: "Omar", Phone: "0500000000", Address: "Riyadh", Method: method}
}

func newEngine(t *testing.T, backend kv.Backend, logger *slog.Logger) (*Checkout, *kv.Store) {
	t.Helper()
	store := kv.New(backend, logger)
	return NewCheckout(store, logger, WithDelay(0), WithClock(func() time.Time { return fixedNow })), store
}

func TestSubmitRecordsOrderAndClearsCart(t *testing.T) {
	engine, store := newEngine(t, kv.NewMemory(), discardLogger())
	ctx := context.Background()
	c := New(nil)
	c.Add(watch)
	c.Add(watch)

	order, err := engine.Submit(ctx, c, validForm(domain.PaymentCard), domain.StoreSettings{}, saudi)
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-[0-9a-f-]{36}$`, order.ID)
	assert.InDelta(t, 637.5, order.Total, 1e-9)
	assert.Equal(t, "SAR", order.Currency)
	assert.Equal(t, fixedNow, order.CreatedAt)
	assert.Equal(t, "بطاقة ائتمان", order.PaymentLabel)
	assert.Equal(t, []domain.OrderItem{{Name: "ساعة", Quantity: 2}}, order.Items)
	assert.Empty(t, c.Items())

	orders := kv.Load(ctx, store, tables.Orders)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestSubmitPrependsOrders(t *testing.T) {
	engine, store := newEngine(t, kv.NewMemory(), discardLogger())
	ctx := context.Background()

	var ids []string
	for i := 0; i < 2; i++ {
		c := New(nil)
		c.Add(oud)
		order, err := engine.Submit(ctx, c, validForm(domain.PaymentApple), domain.StoreSettings{}, saudi)
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}

	orders := kv.Load(ctx, store, tables.Orders)
	require.Len(t, orders, 2)
	assert.Equal(t, ids[1], orders[0].ID)
	assert.Equal(t, ids[0], orders[1].ID)
}

func TestSubmitRejectsBlankFields(t *testing.T) {
	engine, store := newEngine(t, kv.NewMemory(), discardLogger())
	ctx := context.Background()
	c := New(nil)
	c.Add(watch)

	form := validForm(domain.PaymentCard)
	form.Name = "   "
	form.Address = ""
	_, err := engine.Submit(ctx, c, form, domain.StoreSettings{}, saudi)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.ElementsMatch(t, []string{"name", "address"}, ve.Fields)
	assert.Equal(t, msgShippingIncomplete, ve.Message)
	assert.Len(t, c.Items(), 1)
	assert.Empty(t, kv.Load(ctx, store, tables.Orders))
}

func TestSubmitBankRequiresReceipt(t *testing.T) {
	engine, store := newEngine(t, kv.NewMemory(), discardLogger())
	ctx := context.Background()
	c := New(nil)
	c.Add(watch)

	_, err := engine.Submit(ctx, c, validForm(domain.PaymentBank), domain.StoreSettings{}, saudi)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"receipt"}, ve.Fields)
	assert.Equal(t, msgReceiptMissing, ve.Message)
	assert.Empty(t, kv.Load(ctx, store, tables.Orders))

	form := validForm(domain.PaymentBank)
	form.Receipt = "data:image/png;base64,AAAA"
	order, err := engine.Submit(ctx, c, form, domain.StoreSettings{}, saudi)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", order.ReceiptImage)
	assert.Equal(t, "تحويل بنكي", order.PaymentLabel)
}

func TestSubmitRejectsEmptyCartAndUnknownMethod(t *testing.T) {
	engine, _ := newEngine(t, kv.NewMemory(), discardLogger())
	ctx := context.Background()

	_, err := engine.Submit(ctx, New(nil), validForm(domain.PaymentCard), domain.StoreSettings{}, saudi)
	assert.ErrorIs(t, err, ErrEmptyCart)

	c := New(nil)
	c.Add(watch)
	_, err = engine.Submit(ctx, c, validForm("cash"), domain.StoreSettings{}, saudi)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, msgMethodUnknown, ve.Message)
}

type brokenBackend struct{ *kv.Memory }

func (brokenBackend) Put(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func TestSubmitKeepsCartWhenOrderLogFails(t *testing.T) {
	engine, _ := newEngine(t, brokenBackend{kv.NewMemory()}, discardLogger())
	c := New(nil)
	c.Add(watch)

	_, err := engine.Submit(context.Background(), c, validForm(domain.PaymentCard), domain.StoreSettings{}, saudi)
	require.Error(t, err)
	assert.ErrorIs(t, err, kv.ErrUnavailable)
	assert.Equal(t, 1, c.Count())
}

func TestSubmitHonoursCancellationDuringDelay(t *testing.T) {
	store := kv.New(kv.NewMemory(), discardLogger())
	engine := NewCheckout(store, discardLogger(), WithDelay(time.Hour))
	c := New(nil)
	c.Add(watch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Submit(ctx, c, validForm(domain.PaymentCard), domain.StoreSettings{}, saudi)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, c.Count())
	assert.Empty(t, kv.Load(context.Background(), store, tables.Orders))
}

func TestPaymentLinkOnlyLoggedForCardAndApple(t *testing.T) {
	settings := domain.StoreSettings{PaymentLink: "https://pay.example/checkout"}

	for _, tc := range []struct {
		method domain.PaymentMethod
		logged bool
	}{
		{domain.PaymentCard, true},
		{domain.PaymentApple, true},
		{domain.PaymentBank, false},
	} {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		engine, _ := newEngine(t, kv.NewMemory(), logger)
		c := New(nil)
		c.Add(oud)
		form := validForm(tc.method)
		form.Receipt = "receipt-ref"

		_, err := engine.Submit(context.Background(), c, form, settings, saudi)
		require.NoError(t, err)
		assert.Equal(t, tc.logged, bytes.Contains(buf.Bytes(), []byte("https://pay.example/checkout")), string(tc.method))
	}
}

func TestSubmitKeepsItemsAddedDuringDelay(t *testing.T) {
	store := kv.New(kv.NewMemory(), discardLogger())
	engine := NewCheckout(store, discardLogger(), WithDelay(200*time.Millisecond))
	c := New(nil)
	c.Add(watch)

	type result struct {
		order domain.Order
		err   error
	}
	done := make(chan result, 1)
	go func() {
		order, err := engine.Submit(context.Background(), c, validForm(domain.PaymentCard), domain.StoreSettings{}, saudi)
		done <- result{order, err}
	}()

	time.Sleep(50 * time.Millisecond)
	c.Add(oud)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, []domain.OrderItem{{Name: "ساعة", Quantity: 1}}, res.order.Items)

	left := c.Items()
	require.Len(t, left, 1)
	assert.Equal(t, "2", left[0].ID)
	assert.Equal(t, 1, left[0].Quantity)
}
