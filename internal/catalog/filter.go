package catalog

import (
	"strings"

	"gulf-store/internal/domain"
)

// Filter returns the products visible to a shopper in countryCode, in input
// order. A product passes when it ships to the country, belongs to
// activeCategory (or activeCategory is the all sentinel), and, for a
// non-empty query, contains it in its name, description or category.
func Filter(products []domain.Product, activeCategory, searchQuery, countryCode string) []domain.Product {
	query := strings.ToLower(searchQuery)
	res := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if !p.AvailableIn(countryCode) {
			continue
		}
		if !matchesCategory(p, activeCategory) {
			continue
		}
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		res = append(res, p)
	}
	return res
}

func matchesCategory(p domain.Product, category string) bool {
	return category == domain.AllCategory || p.Category == category
}

func matchesQuery(p domain.Product, query string) bool {
	return strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.Description), query) ||
		strings.Contains(strings.ToLower(p.Category), query)
}

// Public strips supplier references from every product.
func Public(products []domain.Product) []domain.Product {
	res := make([]domain.Product, len(products))
	for i, p := range products {
		res[i] = p.Public()
	}
	return res
}

// Lookup finds a product by id.
func Lookup(products []domain.Product, id string) (domain.Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// GroupByCategory buckets products by category, keeping first-seen category order.
func GroupByCategory(products []domain.Product) (map[string][]domain.Product, []string) {
	grouped := map[string][]domain.Product{}
	order := []string{}
	for _, p := range products {
		category := strings.TrimSpace(p.Category)
		if _, ok := grouped[category]; !ok {
			order = append(order, category)
		}
		grouped[category] = append(grouped[category], p)
	}
	return grouped, order
}
