package templates

import (
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// helperFuncs returns the function map available inside reply templates.
func helperFuncs() template.FuncMap {
	return template.FuncMap{
		"money":   money,
		"num":     num,
		"signed":  signed,
		"percent": percent,
	}
}

// money renders a decimal as a currency amount with thousands separators.
func money(d decimal.Decimal) string {
	return "$" + humanize.CommafWithDigits(d.InexactFloat64(), 2)
}

// num renders a decimal without trailing zeros.
func num(d decimal.Decimal) string {
	return d.String()
}

// signed renders a P&L amount with an explicit sign and direction marker.
func signed(d decimal.Decimal) string {
	amount := "$" + humanize.CommafWithDigits(d.Abs().InexactFloat64(), 2)
	switch d.Sign() {
	case 1:
		return "🟢 +" + amount
	case -1:
		return "🔴 -" + amount
	default:
		return amount
	}
}

// percent renders a decimal as a percentage with one digit.
func percent(d decimal.Decimal) string {
	return humanize.CommafWithDigits(d.InexactFloat64(), 1) + "%"
}
