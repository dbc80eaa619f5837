// Package admin implements the operator console: catalog and category
// management, settings, the order log and the stats dashboard.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gulf-store/internal/catalog"
	"gulf-store/internal/domain"
	"gulf-store/internal/kv"
	"gulf-store/internal/seed"
	"gulf-store/internal/tables"

	"github.com/google/uuid"
)

// DefaultShippingUSD is the per-country shipping rate given to new products.
const DefaultShippingUSD = 5.0

var (
	ErrProductNotFound   = errors.New("admin: product not found")
	ErrProtectedCategory = errors.New("admin: category cannot be deleted")
	ErrInvalidProduct    = errors.New("admin: invalid product")
	ErrInvalidCategory   = errors.New("admin: invalid category")
)

// Console edits the persisted catalog. Every write replaces the whole table.
type Console struct {
	store  *kv.Store
	logger *slog.Logger
	newID  func() (string, error)
}

// New returns a console over store.
func New(store *kv.Store, logger *slog.Logger) *Console {
	return &Console{
		store:  store,
		logger: logger.With("component", "admin"),
		newID:  newProductID,
	}
}

func newProductID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate product id: %w", err)
	}
	return id.String(), nil
}

// Products returns the full catalog including supplier references.
func (c *Console) Products(ctx context.Context) []domain.Product {
	return kv.Load(ctx, c.store, tables.Products)
}

// CreateProduct assigns a fresh id, fills country and shipping defaults and
// puts the product at the front of the catalog.
func (c *Console) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p = withDefaults(p)
	if err := validateProduct(p); err != nil {
		return domain.Product{}, err
	}
	categories := c.Categories(ctx)
	if p.Category == "" {
		p.Category = firstCategory(categories)
	}
	if !knownCategory(categories, p.Category) {
		return domain.Product{}, fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, p.Category)
	}
	id, err := c.newID()
	if err != nil {
		return domain.Product{}, err
	}
	p.ID = id
	if _, err := kv.Update(ctx, c.store, tables.Products, func(list []domain.Product) []domain.Product {
		return append([]domain.Product{p}, list...)
	}); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	c.logger.Info("product created", "product_id", p.ID, "name", p.Name)
	return p, nil
}

// UpdateProduct replaces the product with the same id. A changed category
// must be in the category list; an unchanged one may since have been deleted.
func (c *Console) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validateProduct(p); err != nil {
		return domain.Product{}, err
	}
	current, ok := catalog.Lookup(c.Products(ctx), p.ID)
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	if p.Category != current.Category && !knownCategory(c.Categories(ctx), p.Category) {
		return domain.Product{}, fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, p.Category)
	}
	found := false
	if _, err := kv.Update(ctx, c.store, tables.Products, func(list []domain.Product) []domain.Product {
		for i := range list {
			if list[i].ID == p.ID {
				list[i] = p
				found = true
				break
			}
		}
		return list
	}); err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	if !found {
		return domain.Product{}, ErrProductNotFound
	}
	c.logger.Info("product updated", "product_id", p.ID)
	return p, nil
}

// DeleteProduct removes the product with id; unknown ids are a no-op.
func (c *Console) DeleteProduct(ctx context.Context, id string) error {
	if _, err := kv.Update(ctx, c.store, tables.Products, func(list []domain.Product) []domain.Product {
		return slices.DeleteFunc(list, func(p domain.Product) bool { return p.ID == id })
	}); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	c.logger.Info("product deleted", "product_id", id)
	return nil
}

func withDefaults(p domain.Product) domain.Product {
	p.Name = strings.TrimSpace(p.Name)
	if len(p.AvailableCountries) == 0 {
		p.AvailableCountries = seed.CountryCodes()
	}
	rates := make(map[string]float64, len(p.AvailableCountries))
	for _, code := range p.AvailableCountries {
		rates[code] = DefaultShippingUSD
	}
	for code, rate := range p.ShippingRates {
		rates[code] = rate
	}
	p.ShippingRates = rates
	return p
}

func knownCategory(categories []string, name string) bool {
	return name != domain.AllCategory && slices.Contains(categories, name)
}

func firstCategory(categories []string) string {
	for _, name := range categories {
		if name != domain.AllCategory {
			return name
		}
	}
	return ""
}

func validateProduct(p domain.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidProduct)
	}
	if p.PriceUSD < 0 {
		return fmt.Errorf("%w: negative price", ErrInvalidProduct)
	}
	for _, code := range p.AvailableCountries {
		if _, ok := seed.Country(code); !ok {
			return fmt.Errorf("%w: unknown country %q", ErrInvalidProduct, code)
		}
	}
	for code, rate := range p.ShippingRates {
		if _, ok := seed.Country(code); !ok {
			return fmt.Errorf("%w: unknown shipping country %q", ErrInvalidProduct, code)
		}
		if rate < 0 {
			return fmt.Errorf("%w: negative shipping for %s", ErrInvalidProduct, code)
		}
	}
	return nil
}

// Categories returns the category list, sentinel first.
func (c *Console) Categories(ctx context.Context) []string {
	return kv.Load(ctx, c.store, tables.Categories)
}

// AddCategory appends a trimmed, non-blank category. Duplicates are ignored.
func (c *Console) AddCategory(ctx context.Context, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidCategory)
	}
	list, err := kv.Update(ctx, c.store, tables.Categories, func(list []string) []string {
		if slices.Contains(list, name) {
			return list
		}
		return append(list, name)
	})
	if err != nil {
		return list, fmt.Errorf("add category: %w", err)
	}
	return list, nil
}

// DeleteCategory removes a category. The all sentinel cannot be removed.
// Products keep their category string.
func (c *Console) DeleteCategory(ctx context.Context, name string) ([]string, error) {
	if name == domain.AllCategory {
		return c.Categories(ctx), ErrProtectedCategory
	}
	list, err := kv.Update(ctx, c.store, tables.Categories, func(list []string) []string {
		return slices.DeleteFunc(list, func(s string) bool { return s == name })
	})
	if err != nil {
		return list, fmt.Errorf("delete category: %w", err)
	}
	return list, nil
}

// Settings returns the operator settings.
func (c *Console) Settings(ctx context.Context) domain.StoreSettings {
	return kv.Load(ctx, c.store, tables.Settings)
}

// SaveSettings replaces the whole settings record.
func (c *Console) SaveSettings(ctx context.Context, s domain.StoreSettings) error {
	if err := kv.Save(ctx, c.store, tables.Settings, s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	c.logger.Info("settings saved")
	return nil
}

// Orders returns the order log, newest first.
func (c *Console) Orders(ctx context.Context) []domain.Order {
	return kv.Load(ctx, c.store, tables.Orders)
}

// ClearOrders deletes every order.
func (c *Console) ClearOrders(ctx context.Context) error {
	if err := kv.Save(ctx, c.store, tables.Orders, []domain.Order{}); err != nil {
		return fmt.Errorf("clear orders: %w", err)
	}
	c.logger.Info("orders cleared")
	return nil
}
