package seed

import (
	"testing"

	"gulf-store/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParses(t *testing.T) {
	d := Default()

	require.Len(t, d.Countries, 6)
	assert.Equal(t, "SA", d.Countries[0].Code)
	assert.Equal(t, domain.AllCategory, d.Categories[0])
	assert.Equal(t, "966500000000", d.Settings.WhatsAppNumber)
	require.Len(t, d.Products, 2)
	assert.Equal(t, 80.0, d.Products[0].PriceUSD)
	assert.Equal(t, 5.0, d.Products[0].ShippingRates["SA"])
}

func TestDefaultReturnsIndependentCopies(t *testing.T) {
	a := Default()
	a.Products[0].ShippingRates["SA"] = 999
	a.Categories[0] = "changed"

	b := Default()
	assert.Equal(t, 5.0, b.Products[0].ShippingRates["SA"])
	assert.Equal(t, domain.AllCategory, b.Categories[0])
}

func TestCountryLookup(t *testing.T) {
	kw, ok := Country("KW")
	require.True(t, ok)
	assert.Equal(t, 0.31, kw.RateToUSD)

	_, ok = Country("XX")
	assert.False(t, ok)
	assert.Equal(t, []string{"SA", "AE", "KW", "QA", "BH", "OM"}, CountryCodes())
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse([]byte("categories: []\n"))
	require.Error(t, err)
}
