package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

const NotAvailable = "N/A"

// USD renders "$1,234.50". Unparseable text renders as NotAvailable.
func USD(raw string) string {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return NotAvailable
	}
	s := group(d.StringFixed(2))
	if strings.HasPrefix(s, "-") {
		return "-$" + s[1:]
	}
	return "$" + s
}

// Number renders with thousands separators and at most three fraction digits.
func Number(raw string) string {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return NotAvailable
	}
	return group(d.Round(3).String())
}

func Percent(raw string) string {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return NotAvailable
	}
	return d.StringFixed(2) + "%"
}

func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if hasFrac {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}
