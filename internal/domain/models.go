package domain

import "time"

// AllCategory is the sentinel category that matches every product.
const AllCategory = "الكل"

// Review is a shopper review attached to a product.
type Review struct {
	ID       string `json:"id" yaml:"id"`
	UserName string `json:"userName" yaml:"userName"`
	Rating   int    `json:"rating" yaml:"rating"`
	Comment  string `json:"comment" yaml:"comment"`
	Date     string `json:"date" yaml:"date"`
	Image    string `json:"image,omitempty" yaml:"image,omitempty"`
	Location string `json:"location" yaml:"location"`
}

// Product is a catalog entry priced in USD.
type Product struct {
	ID                 string             `json:"id" yaml:"id"`
	Name               string             `json:"name" yaml:"name"`
	Description        string             `json:"description" yaml:"description"`
	PriceUSD           float64            `json:"priceUSD" yaml:"priceUSD"`
	Discount           float64            `json:"discount,omitempty" yaml:"discount,omitempty"`
	Category           string             `json:"category" yaml:"category"`
	Image              string             `json:"image" yaml:"image"`
	SupplierURL        string             `json:"supplierUrlSecret,omitempty" yaml:"supplierUrlSecret,omitempty"`
	AvailableCountries []string           `json:"availableCountries" yaml:"availableCountries"`
	ShippingRates      map[string]float64 `json:"shippingRates" yaml:"shippingRates"`
	Reviews            []Review           `json:"reviews,omitempty" yaml:"reviews,omitempty"`
}

// Public returns a copy safe to show to shoppers, without the supplier reference.
func (p Product) Public() Product {
	p.SupplierURL = ""
	return p
}

// AvailableIn reports whether the product ships to the given country code.
func (p Product) AvailableIn(code string) bool {
	for _, c := range p.AvailableCountries {
		if c == code {
			return true
		}
	}
	return false
}

// CartItem is a product with a quantity of at least one.
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// CountryConfig is immutable reference data for a destination country.
type CountryConfig struct {
	Code      string  `json:"code" yaml:"code"`
	Name      string  `json:"name" yaml:"name"`
	Currency  string  `json:"currency" yaml:"currency"`
	Symbol    string  `json:"symbol" yaml:"symbol"`
	RateToUSD float64 `json:"rateToUSD" yaml:"rateToUSD"`
}

// StoreSettings holds operator configuration. Values are opaque.
type StoreSettings struct {
	StripePublicKey    string `json:"stripePublicKey" yaml:"stripePublicKey" schema:"stripePublicKey"`
	ApplePayMerchantID string `json:"applePayMerchantId" yaml:"applePayMerchantId" schema:"applePayMerchantId"`
	SupplierAPIKey     string `json:"supplierApiKey" yaml:"supplierApiKey" schema:"supplierApiKey"`
	WebhookURL         string `json:"webhookUrl" yaml:"webhookUrl" schema:"webhookUrl"`
	WhatsAppNumber     string `json:"whatsappNumber" yaml:"whatsappNumber" schema:"whatsappNumber"`
	PaymentLink        string `json:"paymentLink" yaml:"paymentLink" schema:"paymentLink"`
	BankAccountDetails string `json:"bankAccountDetails" yaml:"bankAccountDetails" schema:"bankAccountDetails"`
}

// PaymentMethod tags how an order was paid.
type PaymentMethod string

const (
	PaymentCard  PaymentMethod = "card"
	PaymentApple PaymentMethod = "apple"
	PaymentBank  PaymentMethod = "bank"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentApple, PaymentBank:
		return true
	}
	return false
}

// Label returns the label shown to the operator in the order log.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentBank:
		return "تحويل بنكي"
	case PaymentApple:
		return "Apple Pay"
	default:
		return "بطاقة ائتمان"
	}
}

// OrderItem snapshots a cart line at checkout time.
type OrderItem struct {
	Name        string `json:"name"`
	Quantity    int    `json:"quantity,omitempty"`
	SupplierURL string `json:"supplierUrlSecret,omitempty"`
}

// Order is an append-only record created on checkout.
type Order struct {
	ID            string        `json:"id"`
	CustomerName  string        `json:"customerName"`
	Phone         string        `json:"phone"`
	Address       string        `json:"address"`
	Items         []OrderItem   `json:"items"`
	Total         float64       `json:"total"`
	Currency      string        `json:"currency,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaymentLabel  string        `json:"paymentLabel,omitempty"`
	ReceiptImage  string        `json:"receiptImage,omitempty"`
}

// StoreStats aggregates visits per day and per referral source.
type StoreStats struct {
	Daily   map[string]int `json:"daily"`
	Sources map[string]int `json:"sources"`
}

// SearchStats counts normalized search terms.
type SearchStats map[string]int
