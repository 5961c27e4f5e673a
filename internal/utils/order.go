package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// QuantityPrecision is the number of decimals quantities are truncated to
// before a simulated fill. It never rounds up, so cost stays within budget.
const QuantityPrecision = 12

// RoundToDecimalPrecision rounds the quantity down to the specified decimal precision.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	multiplier := math.Pow10(decimalPrecision)

	return math.Floor(quantity*multiplier) / multiplier
}

// CalculateQuantityForAmount calculates how many units the given amount of cash buys at price.
func CalculateQuantityForAmount(amount float64, price float64) float64 {
	if price <= 0 || amount <= 0 {
		return 0
	}

	quantity := decimal.NewFromFloat(amount).
		Div(decimal.NewFromFloat(price)).
		Truncate(QuantityPrecision)

	return quantity.InexactFloat64()
}

// CalculatePercentageOf returns percentage (0-100) of value.
func CalculatePercentageOf(value float64, percentage float64) float64 {
	return decimal.NewFromFloat(value).
		Mul(decimal.NewFromFloat(percentage)).
		Div(decimal.NewFromInt(100)).
		InexactFloat64()
}

// Notional returns quantity × price without binary floating point drift.
func Notional(quantity float64, price float64) float64 {
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).InexactFloat64()
}
