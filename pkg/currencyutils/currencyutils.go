// Package currencyutils parses the decimal formats found in the bank files we
// import. Parsing is explicit per format instead of locale-dependent so the
// result does not change with the runtime environment.
package currencyutils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseBrazilianNumber parses a pt-BR formatted decimal where "." is the
// thousands separator and "," is the decimal separator, e.g. "1.234,56".
func ParseBrazilianNumber(value string) (decimal.Decimal, error) {
	normalized := strings.TrimSpace(value)
	normalized = strings.ReplaceAll(normalized, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse pt-BR decimal %q: %w", value, err)
	}

	return amount, nil
}

// ParseStatementAmount parses an OFX amount, tolerating the comma-as-decimal
// separator variant some banks emit ("-1798,60").
func ParseStatementAmount(value string) (decimal.Decimal, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(value), ",", ".")

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse statement amount %q: %w", value, err)
	}

	return amount, nil
}
