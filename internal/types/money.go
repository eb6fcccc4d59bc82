// README: Common money helpers; amounts are exact decimals in the shop currency.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept for currency amounts.
const MoneyPlaces = 2

// ParseMoney parses a decimal string such as "42.50".
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return d.Round(MoneyPlaces), nil
}

// MustMoney is ParseMoney for constants and tests.
func MustMoney(s string) decimal.Decimal {
	d, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return d
}
