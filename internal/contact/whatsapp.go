// Package contact builds the outbound chat link shown on the storefront.
package contact

import (
	"strings"
	"unicode"
)

// DefaultWhatsAppNumber is used when the operator has not set one.
const DefaultWhatsAppNumber = "966500000000"

// Digits strips everything but ASCII digits from number, so "+966 50-000"
// becomes "96650000".
func Digits(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WhatsAppNumber returns the digits of number, or the default when none remain.
func WhatsAppNumber(number string) string {
	if d := Digits(number); d != "" {
		return d
	}
	return DefaultWhatsAppNumber
}

// WhatsAppLink returns the wa.me chat URL for number.
func WhatsAppLink(number string) string {
	return "https://wa.me/" + WhatsAppNumber(number)
}
