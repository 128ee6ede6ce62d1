package catalog

import (
	"strconv"
	"strings"
)

// Currencies whose minor unit is the major unit.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "ISK": true,
	"JPY": true, "KMF": true, "KRW": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// FormatPrice renders a minor-unit amount for display, e.g. 4999 USD as
// "$49.99" and 1980 JPY as "¥1980". Unknown currencies get a code suffix.
func FormatPrice(amount int64, currency string) string {
	currency = strings.ToUpper(currency)

	neg := amount < 0
	abs := uint64(amount)
	if neg {
		abs = uint64(-(amount + 1)) + 1
	}

	var digits string
	if zeroDecimalCurrencies[currency] {
		digits = strconv.FormatUint(abs, 10)
	} else {
		cents := abs % 100
		digits = strconv.FormatUint(abs/100, 10) + "."
		if cents < 10 {
			digits += "0"
		}
		digits += strconv.FormatUint(cents, 10)
	}

	sign := ""
	if neg {
		sign = "-"
	}
	if sym, ok := currencySymbols[currency]; ok {
		return sign + sym + digits
	}
	if currency == "" {
		return sign + digits
	}
	return sign + digits + " " + currency
}
