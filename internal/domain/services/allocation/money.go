package allocation

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"github.com/stackmotive/stackmotive/internal/domain/entities"
)

// formatMoney renders an amount in the ring's currency, e.g. "$12,500.00".
func formatMoney(amount decimal.Decimal, currency entities.Currency) string {
	code := string(currency)
	if code == "" {
		code = string(entities.CurrencyAUD)
	}
	cur := money.GetCurrency(code)
	if cur == nil {
		return fmt.Sprintf("%s %s", amount.StringFixed(2), code)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func formatSignedPercent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}
