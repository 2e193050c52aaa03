// Package ledger holds the settlement core: integer-cent money, the balance
// calculators for both ledger models, and the greedy settlement matcher.
// Nothing in here touches the database.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in hundredths of the currency unit.
type Cents int64

// FromDecimal rounds d half away from zero to two places and returns it in cents.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Round(2).Shift(2).IntPart())
}

// Decimal returns the amount with two decimal places.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// SplitEvenly divides total into n parts that sum exactly to total. The
// first total%n parts carry one extra cent.
func SplitEvenly(total Cents, n int) ([]Cents, error) {
	if n <= 0 {
		return nil, fmt.Errorf("split %s among %d: %w", total, n, ErrInvalidSplit)
	}
	if total < 0 {
		return nil, fmt.Errorf("split %s: %w", total, ErrInvalidAmount)
	}

	base := total / Cents(n)
	remainder := int(total % Cents(n))

	parts := make([]Cents, n)
	for i := range parts {
		parts[i] = base
		if i < remainder {
			parts[i]++
		}
	}
	return parts, nil
}
