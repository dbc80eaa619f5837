// Package storefront is the shopper-facing service: country selection,
// browsing, the cart, checkout and the small extras around them.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gulf-store/internal/cart"
	"gulf-store/internal/catalog"
	"gulf-store/internal/contact"
	"gulf-store/internal/domain"
	"gulf-store/internal/kv"
	"gulf-store/internal/media"
	"gulf-store/internal/metrics"
	"gulf-store/internal/narration"
	"gulf-store/internal/notify"
	"gulf-store/internal/pricing"
	"gulf-store/internal/seed"
	"gulf-store/internal/stats"
	"gulf-store/internal/tables"
)

var (
	ErrUnknownCountry  = errors.New("storefront: unknown country")
	ErrProductNotFound = errors.New("storefront: product not found")
	ErrNarrationOff    = errors.New("storefront: narration not configured")
)

// Deps are the collaborators a Storefront is built from. Narrator and Images
// are optional.
type Deps struct {
	Store    *kv.Store
	Cart     *cart.Cart
	Checkout *cart.Checkout
	Tracker  *stats.Tracker
	Searches *stats.SearchRecorder
	Narrator narration.Narrator
	Images   media.ImageStore
	Notices  *notify.Recorder
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// Storefront serves one shopper.
type Storefront struct {
	store    *kv.Store
	cart     *cart.Cart
	checkout *cart.Checkout
	tracker  *stats.Tracker
	searches *stats.SearchRecorder
	narrator narration.Narrator
	images   media.ImageStore
	notices  *notify.Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// New wires a storefront. Images defaults to inline data URIs.
func New(d Deps) *Storefront {
	if d.Images == nil {
		d.Images = media.DataURIStore{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Notices == nil {
		d.Notices = notify.NewRecorder(0)
	}
	return &Storefront{
		store:    d.Store,
		cart:     d.Cart,
		checkout: d.Checkout,
		tracker:  d.Tracker,
		searches: d.Searches,
		narrator: d.Narrator,
		images:   d.Images,
		notices:  d.Notices,
		metrics:  d.Metrics,
		logger:   d.Logger.With("component", "storefront"),
		now:      d.Now,
	}
}

// Close cancels pending background work.
func (s *Storefront) Close() {
	if s.searches == nil {
		return
	}
	if n := s.searches.Pending(); n > 0 {
		s.logger.Info("dropping unsettled search terms", "streams", n)
	}
	s.searches.Close()
}

// Countries lists every destination country.
func (s *Storefront) Countries() []domain.CountryConfig {
	return seed.Countries()
}

// Country is the shopper's selected country.
func (s *Storefront) Country(ctx context.Context) domain.CountryConfig {
	return kv.Load(ctx, s.store, tables.Country)
}

// SelectCountry switches the destination country by code.
func (s *Storefront) SelectCountry(ctx context.Context, code string) (domain.CountryConfig, error) {
	c, ok := seed.Country(code)
	if !ok {
		return domain.CountryConfig{}, fmt.Errorf("%w: %q", ErrUnknownCountry, code)
	}
	if err := kv.Save(ctx, s.store, tables.Country, c); err != nil {
		s.logger.Warn("country selection not persisted", "country", code, "error", err)
	}
	return c, nil
}

// Categories returns the category chips, sentinel first.
func (s *Storefront) Categories(ctx context.Context) []string {
	return kv.Load(ctx, s.store, tables.Categories)
}

// ProductView is a public product priced in the selected country.
type ProductView struct {
	domain.Product
	pricing.Quote
}

// ProductGroup is one category section of the catalog page.
type ProductGroup struct {
	Category string        `json:"category"`
	Products []ProductView `json:"products"`
}

// Products returns the public products visible in the selected country.
func (s *Storefront) Products(ctx context.Context, category, query string) []ProductView {
	country := s.Country(ctx)
	return quote(s.visible(ctx, category, query, country.Code), country)
}

// ProductGroups returns the visible products bucketed by category, in the
// order categories first appear in the catalog.
func (s *Storefront) ProductGroups(ctx context.Context, category, query string) []ProductGroup {
	country := s.Country(ctx)
	grouped, order := catalog.GroupByCategory(s.visible(ctx, category, query, country.Code))
	groups := make([]ProductGroup, 0, len(order))
	for _, name := range order {
		groups = append(groups, ProductGroup{Category: name, Products: quote(grouped[name], country)})
	}
	return groups
}

func (s *Storefront) visible(ctx context.Context, category, query, code string) []domain.Product {
	if category == "" {
		category = domain.AllCategory
	}
	all := kv.Load(ctx, s.store, tables.Products)
	return catalog.Public(catalog.Filter(all, category, query, code))
}

func quote(products []domain.Product, country domain.CountryConfig) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{Product: p, Quote: pricing.QuoteProduct(p, country)})
	}
	return views
}

func (s *Storefront) product(ctx context.Context, id string) (domain.Product, error) {
	p, ok := catalog.Lookup(kv.Load(ctx, s.store, tables.Products), id)
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return p, nil
}

// AddToCart puts one unit of the product in the cart.
func (s *Storefront) AddToCart(ctx context.Context, id string) (int, error) {
	p, err := s.product(ctx, id)
	if err != nil {
		return 0, err
	}
	qty := s.cart.Add(p)
	if s.metrics != nil {
		s.metrics.CartAdds.WithLabelValues(s.Country(ctx).Code).Inc()
	}
	return qty, nil
}

// UpdateCartQuantity shifts a line by delta, never below one.
func (s *Storefront) UpdateCartQuantity(id string, delta int) {
	s.cart.UpdateQuantity(id, delta)
}

// RemoveFromCart drops a line.
func (s *Storefront) RemoveFromCart(id string) {
	s.cart.Remove(id)
}

// ClearCart empties the cart.
func (s *Storefront) ClearCart() {
	s.cart.Clear()
}

// CartItems returns the cart lines without supplier references.
func (s *Storefront) CartItems() []domain.CartItem {
	items := s.cart.Items()
	for i := range items {
		items[i].Product = items[i].Public()
	}
	return items
}

// CartCount is the header badge figure.
func (s *Storefront) CartCount() int {
	return s.cart.Count()
}

// CartTotals prices the cart in the selected country.
func (s *Storefront) CartTotals(ctx context.Context) pricing.Totals {
	return pricing.CartTotals(s.cart.Items(), s.Country(ctx))
}

// Checkout submits the shipping form for the current cart.
func (s *Storefront) Checkout(ctx context.Context, form cart.Form) (domain.Order, error) {
	settings := kv.Load(ctx, s.store, tables.Settings)
	return s.checkout.Submit(ctx, s.cart, form, settings, s.Country(ctx))
}

// StoreReceipt saves a bank-transfer receipt image and returns its reference.
func (s *Storefront) StoreReceipt(ctx context.Context, filename string, data []byte) (string, error) {
	ref, err := s.images.Store(ctx, filename, data)
	if err != nil {
		return "", fmt.Errorf("store receipt: %w", err)
	}
	return ref, nil
}

// PaymentInfo is what the checkout page shows next to the payment methods.
type PaymentInfo struct {
	BankAccountDetails string `json:"bankAccountDetails"`
	HasPaymentLink     bool   `json:"hasPaymentLink"`
}

// PaymentInfo returns the bank details and whether a gateway link is set.
func (s *Storefront) PaymentInfo(ctx context.Context) PaymentInfo {
	st := kv.Load(ctx, s.store, tables.Settings)
	return PaymentInfo{BankAccountDetails: st.BankAccountDetails, HasPaymentLink: st.PaymentLink != ""}
}

// Narrate reads a product description aloud.
func (s *Storefront) Narrate(ctx context.Context, id string) (*narration.Audio, error) {
	if s.narrator == nil {
		return nil, ErrNarrationOff
	}
	p, err := s.product(ctx, id)
	if err != nil {
		return nil, err
	}
	audio, err := s.narrator.Narrate(ctx, p.Description)
	if err != nil {
		s.logger.Warn("narration failed", "product_id", id, "error", err)
		if s.metrics != nil {
			s.metrics.Errors.WithLabelValues("narration").Inc()
		}
		return nil, err
	}
	return audio, nil
}

// RecordVisit counts a storefront visit from referrer.
func (s *Storefront) RecordVisit(ctx context.Context, referrer string) string {
	return s.tracker.RecordVisit(ctx, referrer, s.now())
}

// ObserveSearch feeds the search debouncer for a shopper stream.
func (s *Storefront) ObserveSearch(streamID, query string) {
	s.searches.Observe(streamID, query)
}

// WelcomeSeen reports whether the welcome popup was dismissed.
func (s *Storefront) WelcomeSeen(ctx context.Context) bool {
	return kv.Load(ctx, s.store, tables.WelcomeSeen)
}

// MarkWelcomeSeen dismisses the welcome popup for good.
func (s *Storefront) MarkWelcomeSeen(ctx context.Context) {
	if err := kv.Save(ctx, s.store, tables.WelcomeSeen, true); err != nil {
		s.logger.Warn("welcome flag not persisted", "error", err)
	}
}

// ContactLink is the WhatsApp chat link for the operator.
func (s *Storefront) ContactLink(ctx context.Context) string {
	return contact.WhatsAppLink(kv.Load(ctx, s.store, tables.Settings).WhatsAppNumber)
}

// Notices returns and forgets the pending shopper notices.
func (s *Storefront) Notices() []string {
	return s.notices.Drain()
}
