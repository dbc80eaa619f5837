package seed

import (
	_ "embed"
	"fmt"
	"sync"

	"gulf-store/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Data is the reference data and fallback content shipped with the binary.
type Data struct {
	Countries  []domain.CountryConfig `yaml:"countries"`
	Categories []string               `yaml:"categories"`
	Settings   domain.StoreSettings   `yaml:"settings"`
	Products   []domain.Product       `yaml:"products"`
}

var (
	loadOnce sync.Once
	loaded   Data
	loadErr  error
)

// Parse decodes seed data from YAML.
func Parse(raw []byte) (Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("parse seed: %w", err)
	}
	if len(d.Countries) == 0 {
		return Data{}, fmt.Errorf("parse seed: no countries defined")
	}
	return d, nil
}

// Default returns a copy of the embedded seed data. The embedded file is
// validated by tests, so a parse failure here is a build defect.
func Default() Data {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(defaultsYAML)
	})
	if loadErr != nil {
		panic(loadErr)
	}
	return loaded.clone()
}

// Countries returns the supported destination countries.
func Countries() []domain.CountryConfig {
	return Default().Countries
}

// Country looks up a country by code.
func Country(code string) (domain.CountryConfig, bool) {
	for _, c := range Countries() {
		if c.Code == code {
			return c, true
		}
	}
	return domain.CountryConfig{}, false
}

// CountryCodes returns the codes of all supported countries in seed order.
func CountryCodes() []string {
	countries := Countries()
	codes := make([]string, 0, len(countries))
	for _, c := range countries {
		codes = append(codes, c.Code)
	}
	return codes
}

func (d Data) clone() Data {
	out := Data{
		Countries:  append([]domain.CountryConfig(nil), d.Countries...),
		Categories: append([]string(nil), d.Categories...),
		Settings:   d.Settings,
		Products:   make([]domain.Product, 0, len(d.Products)),
	}
	for _, p := range d.Products {
		out.Products = append(out.Products, CloneProduct(p))
	}
	return out
}

// CloneProduct deep-copies the slices and maps of a product.
func CloneProduct(p domain.Product) domain.Product {
	p.AvailableCountries = append([]string(nil), p.AvailableCountries...)
	if p.ShippingRates != nil {
		rates := make(map[string]float64, len(p.ShippingRates))
		for k, v := range p.ShippingRates {
			rates[k] = v
		}
		p.ShippingRates = rates
	}
	p.Reviews = append([]domain.Review(nil), p.Reviews...)
	return p
}
