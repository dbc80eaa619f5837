// Package wa relays new orders to the operator's WhatsApp.
package wa

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gulf-store/internal/contact"
	"gulf-store/internal/domain"
	"gulf-store/internal/kv"
	"gulf-store/internal/pricing"
	"gulf-store/internal/tables"

	"go.mau.fi/whatsmeow/types"
)

const sendTimeout = 30 * time.Second

// Sender delivers chat messages; *Client implements it.
type Sender interface {
	SendText(ctx context.Context, to types.JID, text string) error
	SendImage(ctx context.Context, to types.JID, data []byte, mimeType, caption string) error
}

// OperatorJID addresses the operator's WhatsApp number.
func OperatorJID(number string) types.JID {
	return types.NewJID(contact.WhatsAppNumber(number), types.DefaultUserServer)
}

// FormatOrder renders the alert text for one order.
func FormatOrder(o domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "طلب جديد %s\n", o.ID)
	fmt.Fprintf(&b, "العميل: %s\n", o.CustomerName)
	fmt.Fprintf(&b, "الجوال: %s\n", o.Phone)
	fmt.Fprintf(&b, "العنوان: %s\n", o.Address)
	fmt.Fprintf(&b, "الدفع: %s\n", o.PaymentLabel)
	fmt.Fprintf(&b, "الإجمالي: %s %s", pricing.FormatCurrency(o.Total, o.Currency), o.Currency)
	for _, item := range o.Items {
		fmt.Fprintf(&b, "\n- %s × %d", item.Name, max(1, item.Quantity))
		if item.SupplierURL != "" {
			fmt.Fprintf(&b, " (%s)", item.SupplierURL)
		}
	}
	return b.String()
}

// DecodeDataURI splits a base64 data URI into its MIME type and bytes.
func DecodeDataURI(ref string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return "", nil, errors.New("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, errors.New("data uri is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data uri: %w", err)
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}

// Alerter watches the order log and sends every order it has not seen yet
// to the operator number from the store settings.
type Alerter struct {
	sender Sender
	store  *kv.Store
	logger *slog.Logger

	mu     sync.Mutex
	known  map[string]struct{}
	wg     sync.WaitGroup
	cancel func()
}

// NewAlerter returns an alerter that has not started watching yet.
func NewAlerter(sender Sender, store *kv.Store, logger *slog.Logger) *Alerter {
	return &Alerter{
		sender: sender,
		store:  store,
		logger: logger.With("component", "order_alerts"),
		known:  map[string]struct{}{},
	}
}

// Start records the orders already on file and subscribes to new ones.
func (a *Alerter) Start(ctx context.Context) {
	a.mu.Lock()
	for _, o := range kv.Load(ctx, a.store, tables.Orders) {
		a.known[o.ID] = struct{}{}
	}
	a.mu.Unlock()
	a.cancel = kv.Subscribe(a.store, tables.Orders, a.onOrders)
}

// Close stops watching and waits for in-flight sends.
func (a *Alerter) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *Alerter) onOrders(orders []domain.Order) {
	a.mu.Lock()
	var fresh []domain.Order
	for _, o := range orders {
		if _, ok := a.known[o.ID]; ok {
			continue
		}
		a.known[o.ID] = struct{}{}
		fresh = append(fresh, o)
	}
	a.mu.Unlock()
	if len(fresh) == 0 {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		to := OperatorJID(kv.Load(ctx, a.store, tables.Settings).WhatsAppNumber)
		for _, o := range fresh {
			a.send(ctx, to, o)
		}
	}()
}

func (a *Alerter) send(ctx context.Context, to types.JID, o domain.Order) {
	if err := a.sender.SendText(ctx, to, FormatOrder(o)); err != nil {
		a.logger.Warn("order alert not sent", "order_id", o.ID, "error", err)
		return
	}
	if o.ReceiptImage == "" {
		return
	}
	mime, data, err := DecodeDataURI(o.ReceiptImage)
	if err != nil {
		if err := a.sender.SendText(ctx, to, "إيصال التحويل: "+o.ReceiptImage); err != nil {
			a.logger.Warn("receipt link not sent", "order_id", o.ID, "error", err)
		}
		return
	}
	if err := a.sender.SendImage(ctx, to, data, mime, "إيصال "+o.ID); err != nil {
		a.logger.Warn("receipt image not sent", "order_id", o.ID, "error", err)
	}
}
