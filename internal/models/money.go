package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money columns are NUMERIC(18, 2).
const (
	MoneyScale     = 2
	moneyIntDigits = 16
)

var moneyLimit = decimal.New(1, moneyIntDigits)

// CheckMoney rejects amounts the money columns cannot store exactly: non-positive values,
// fractions finer than a cent and values with more than 16 integer digits.
func CheckMoney(d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	case !d.Equal(d.Truncate(MoneyScale)):
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidArgument, d, MoneyScale)
	case d.GreaterThanOrEqual(moneyLimit):
		return fmt.Errorf("%w: amount %s exceeds %d integer digits", ErrInvalidArgument, d, moneyIntDigits)
	}
	return nil
}
