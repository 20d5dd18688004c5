// Package money converts between amounts and the venue's peso-style currency
// text: a dollar sign, dots between thousands and a comma before the cents.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount is returned when the text left after stripping symbols is not a number.
var ErrMalformedAmount = errors.New("malformed amount")

// Mode selects how many decimals Format renders.
type Mode int

const (
	// Display renders at most two decimals and drops trailing zeros, as the catalog and cart show prices.
	Display Mode = iota
	// Ledger always renders exactly two decimals, the persisted form of cumulative earnings.
	Ledger
)

var numeric = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Parse turns text such as "$1.234,50" into 1234.5.
func Parse(text string) (float64, error) {
	d, err := ParseDecimal(text)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// ParseDecimal is Parse without the float conversion, for ledger arithmetic.
func ParseDecimal(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	s = strings.NewReplacer("$", "", ".", "", " ", "", " ", "").Replace(s)
	s = strings.Replace(s, ",", ".", 1)
	if !numeric.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, text)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, text)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// Format renders amount rounded to cents in the given mode.
func Format(amount float64, mode Mode) string {
	return FormatDecimal(decimal.NewFromFloat(amount), mode)
}

// FormatDisplay is Format(amount, Display).
func FormatDisplay(amount float64) string { return Format(amount, Display) }

// FormatLedger is Format(amount, Ledger).
func FormatLedger(amount float64) string { return Format(amount, Ledger) }

// FormatDecimal renders d rounded to cents in the given mode.
func FormatDecimal(d decimal.Decimal, mode Mode) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")
	if mode == Display {
		cents = strings.TrimRight(cents, "0")
	}
	out := sign + "$" + groupThousands(whole)
	if cents != "" {
		out += "," + cents
	}
	return out
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
