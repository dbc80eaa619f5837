package pricing

import (
	"gulf-store/internal/domain"

	"github.com/shopspring/decimal"
)

// thousandthsCurrency is the country whose currency is displayed with three decimals.
const thousandthsCurrency = "KW"

// UnitLocalPrice converts the product's USD price into the country's currency.
func UnitLocalPrice(p domain.Product, c domain.CountryConfig) float64 {
	return p.PriceUSD * c.RateToUSD
}

// ShippingUSD returns the product's shipping rate for the country, or zero when unset.
func ShippingUSD(p domain.Product, code string) float64 {
	return p.ShippingRates[code]
}

// UnitShippingLocal converts the product's shipping rate into the country's currency.
func UnitShippingLocal(p domain.Product, c domain.CountryConfig) float64 {
	return ShippingUSD(p, c.Code) * c.RateToUSD
}

// LineTotal is (unit price + unit shipping) * quantity in local currency.
func LineTotal(item domain.CartItem, c domain.CountryConfig) float64 {
	return (UnitLocalPrice(item.Product, c) + UnitShippingLocal(item.Product, c)) * float64(item.Quantity)
}

// Totals is the invoice for a cart in one country. The Display fields are the
// strings shown to the shopper.
type Totals struct {
	Country              string  `json:"country"`
	Currency             string  `json:"currency"`
	Symbol               string  `json:"symbol"`
	Items                int     `json:"items"`
	SubtotalUSD          float64 `json:"subtotalUSD"`
	ShippingUSD          float64 `json:"shippingUSD"`
	TotalUSD             float64 `json:"totalUSD"`
	SubtotalLocal        float64 `json:"subtotalLocal"`
	ShippingLocal        float64 `json:"shippingLocal"`
	Total                float64 `json:"total"`
	SubtotalLocalDisplay string  `json:"subtotalLocalDisplay"`
	ShippingLocalDisplay string  `json:"shippingLocalDisplay"`
	TotalDisplay         string  `json:"totalDisplay"`
	TotalUSDDisplay      string  `json:"totalUSDDisplay"`
}

// Quote is one product priced in one country.
type Quote struct {
	Currency            string  `json:"currency"`
	Symbol              string  `json:"symbol"`
	UnitPriceLocal      float64 `json:"unitPriceLocal"`
	UnitShippingLocal   float64 `json:"unitShippingLocal"`
	UnitPriceDisplay    string  `json:"unitPriceDisplay"`
	UnitShippingDisplay string  `json:"unitShippingDisplay"`
}

// QuoteProduct prices p in the country's currency.
func QuoteProduct(p domain.Product, c domain.CountryConfig) Quote {
	price := UnitLocalPrice(p, c)
	shipping := UnitShippingLocal(p, c)
	return Quote{
		Currency:            c.Currency,
		Symbol:              c.Symbol,
		UnitPriceLocal:      price,
		UnitShippingLocal:   shipping,
		UnitPriceDisplay:    Format(price, c),
		UnitShippingDisplay: Format(shipping, c),
	}
}

// CartTotals sums every line of the cart. Total is the local-currency sum of line
// totals; the USD figures are kept for audit.
func CartTotals(items []domain.CartItem, c domain.CountryConfig) Totals {
	t := Totals{Country: c.Code, Currency: c.Currency, Symbol: c.Symbol}
	for _, item := range items {
		qty := float64(item.Quantity)
		t.Items += item.Quantity
		t.SubtotalUSD += item.PriceUSD * qty
		t.ShippingUSD += ShippingUSD(item.Product, c.Code) * qty
		t.SubtotalLocal += UnitLocalPrice(item.Product, c) * qty
		t.ShippingLocal += UnitShippingLocal(item.Product, c) * qty
		t.Total += LineTotal(item, c)
	}
	t.TotalUSD = t.SubtotalUSD + t.ShippingUSD
	t.SubtotalLocalDisplay = Format(t.SubtotalLocal, c)
	t.ShippingLocalDisplay = Format(t.ShippingLocal, c)
	t.TotalDisplay = Format(t.Total, c)
	t.TotalUSDDisplay = FormatUSD(t.TotalUSD)
	return t
}

// Precision returns the number of decimals shown for the country's currency.
func Precision(c domain.CountryConfig) int32 {
	if c.Code == thousandthsCurrency {
		return 3
	}
	return 2
}

// Format renders an amount with the country's display precision. The value
// itself is never rounded, only its string form.
func Format(amount float64, c domain.CountryConfig) string {
	return decimal.NewFromFloat(amount).StringFixed(Precision(c))
}

// FormatUSD renders a USD audit amount with two decimals.
func FormatUSD(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// FormatCurrency renders an amount recorded in the given currency code, for
// views that only carry the code (the order log).
func FormatCurrency(amount float64, currency string) string {
	places := int32(2)
	if currency == "KWD" {
		places = 3
	}
	return decimal.NewFromFloat(amount).StringFixed(places)
}
