package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"gulf-store/internal/domain"
	"gulf-store/internal/kv"
	"gulf-store/internal/metrics"
	"gulf-store/internal/pricing"
	"gulf-store/internal/tables"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultDelay is the simulated payment processing time.
const DefaultDelay = 2500 * time.Millisecond

const (
	msgShippingIncomplete = "يرجى إكمال بيانات الشحن أولاً."
	msgReceiptMissing     = "يرجى إرفاق صورة إيصال التحويل البنكي."
	msgCartEmpty          = "السلة فارغة."
	msgMethodUnknown      = "طريقة الدفع غير مدعومة."
)

// ErrEmptyCart is wrapped by the ValidationError returned for an empty cart.
var ErrEmptyCart = errors.New("cart: empty")

// Form is the shipping form submitted at checkout. Receipt is the stored
// reference of the bank-transfer receipt image.
type Form struct {
	Name    string               `json:"name" schema:"name" validate:"required"`
	Phone   string               `json:"phone" schema:"phone" validate:"required"`
	Address string               `json:"address" schema:"address" validate:"required"`
	Method  domain.PaymentMethod `json:"method" schema:"method" validate:"required,oneof=card apple bank"`
	Receipt string               `json:"receipt,omitempty" schema:"receipt" validate:"required_if=Method bank"`
}

func (f Form) normalized() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	f.Method = domain.PaymentMethod(strings.ToLower(strings.TrimSpace(string(f.Method))))
	f.Receipt = strings.TrimSpace(f.Receipt)
	return f
}

// ValidationError lists the form fields that failed; nothing was written.
type ValidationError struct {
	Fields  []string
	Message string
	err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout invalid (%s): %s", strings.Join(e.Fields, ", "), e.Message)
}

func (e *ValidationError) Unwrap() error { return e.err }

// Checkout validates shipping forms and records orders.
type Checkout struct {
	store    *kv.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
	delay    time.Duration
	now      func() time.Time
	newID    func() (string, error)
}

// CheckoutOption customises a Checkout.
type CheckoutOption func(*Checkout)

// WithDelay overrides the simulated processing delay; zero disables it.
func WithDelay(d time.Duration) CheckoutOption {
	return func(c *Checkout) { c.delay = d }
}

// WithClock sets the order timestamp source.
func WithClock(now func() time.Time) CheckoutOption {
	return func(c *Checkout) { c.now = now }
}

// WithMetrics records checkout outcomes.
func WithMetrics(m *metrics.Metrics) CheckoutOption {
	return func(c *Checkout) { c.metrics = m }
}

// NewCheckout builds a checkout engine writing to store.
func NewCheckout(store *kv.Store, logger *slog.Logger, opts ...CheckoutOption) *Checkout {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	c := &Checkout{
		store:    store,
		logger:   logger.With("component", "checkout"),
		validate: v,
		delay:    DefaultDelay,
		now:      time.Now,
		newID:    newOrderID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newOrderID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate order id: %w", err)
	}
	return "ORD-" + id.String(), nil
}

// Validate checks the form without side effects.
func (c *Checkout) Validate(form Form) error {
	form = form.normalized()
	err := c.validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate checkout form: %w", err)
	}
	ve := &ValidationError{Message: msgShippingIncomplete, err: err}
	receiptOnly := true
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, fe.Field())
		if fe.Field() != "receipt" {
			receiptOnly = false
		}
		if fe.Field() == "method" && fe.Tag() == "oneof" {
			ve.Message = msgMethodUnknown
		}
	}
	if receiptOnly {
		ve.Message = msgReceiptMissing
	}
	return ve
}

// Submit validates the form, waits the simulated processing delay, prepends
// the order to the persisted log and removes the ordered lines from the cart. When the order log
// cannot be written the cart is left untouched and the error returned.
func (c *Checkout) Submit(ctx context.Context, cart *Cart, form Form, settings domain.StoreSettings, country domain.CountryConfig) (domain.Order, error) {
	items := cart.Items()
	if len(items) == 0 {
		c.outcome("invalid")
		return domain.Order{}, &ValidationError{Fields: []string{"items"}, Message: msgCartEmpty, err: ErrEmptyCart}
	}
	if err := c.Validate(form); err != nil {
		c.outcome("invalid")
		return domain.Order{}, err
	}
	form = form.normalized()

	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.outcome("cancelled")
			return domain.Order{}, fmt.Errorf("checkout: %w", ctx.Err())
		case <-timer.C:
		}
	}

	id, err := c.newID()
	if err != nil {
		c.outcome("failed")
		return domain.Order{}, err
	}
	order := domain.Order{
		ID:            id,
		CustomerName:  form.Name,
		Phone:         form.Phone,
		Address:       form.Address,
		Items:         snapshot(items),
		Total:         pricing.CartTotals(items, country).Total,
		Currency:      country.Currency,
		CreatedAt:     c.now().UTC(),
		PaymentMethod: form.Method,
		PaymentLabel:  form.Method.Label(),
	}
	if form.Method == domain.PaymentBank {
		order.ReceiptImage = form.Receipt
	}

	if _, err := kv.Update(ctx, c.store, tables.Orders, func(existing []domain.Order) []domain.Order {
		return append([]domain.Order{order}, existing...)
	}); err != nil {
		c.outcome("failed")
		c.logger.Error("order not recorded, cart kept", "order_id", order.ID, "error", err)
		return domain.Order{}, fmt.Errorf("record order: %w", err)
	}

	cart.RemoveOrdered(items)
	c.outcome("placed")
	if c.metrics != nil {
		c.metrics.OrdersPlaced.WithLabelValues(string(order.PaymentMethod), order.Currency).Inc()
	}
	c.logger.Info("order placed", "order_id", order.ID, "items", len(order.Items), "total", order.Total, "currency", order.Currency)

	if settings.PaymentLink != "" && (form.Method == domain.PaymentCard || form.Method == domain.PaymentApple) {
		c.logger.Info("redirect to payment gateway", "order_id", order.ID, "payment_link", settings.PaymentLink)
	}
	return order, nil
}

func (c *Checkout) outcome(label string) {
	if c.metrics != nil {
		c.metrics.Checkouts.WithLabelValues(label).Inc()
	}
}

func snapshot(items []domain.CartItem) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.OrderItem{
			Name:        item.Name,
			Quantity:    item.Quantity,
			SupplierURL: item.SupplierURL,
		})
	}
	return out
}
