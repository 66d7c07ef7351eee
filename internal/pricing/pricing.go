// Package pricing computes quote estimates. Everything here is pure.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"cleanops/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned for parameters that cannot produce an estimate.
var ErrInvalidInput = errors.New("invalid pricing input")

// DefaultMarketAverage applies to service types missing from the market table.
const DefaultMarketAverage = "$100-$500"

var discountRates = map[string]decimal.Decimal{
	models.FrequencyOnce:     decimal.Zero,
	models.FrequencyWeekly:   decimal.RequireFromString("0.15"),
	models.FrequencyBiweekly: decimal.RequireFromString("0.10"),
	models.FrequencyMonthly:  decimal.RequireFromString("0.05"),
}

// Non-binding regional ranges shown next to an estimate.
var marketAverages = map[string]string{
	"standard_cleaning": "$80-$200",
	"deep_cleaning":     "$150-$400",
	"move_in_out":       "$200-$500",
	"office_cleaning":   "$150-$600",
	"carpet_cleaning":   "$100-$300",
	"window_cleaning":   "$90-$250",
	"post_construction": "$250-$700",
}

var hundred = decimal.NewFromInt(100)

// Params are the inputs of a single estimate.
type Params struct {
	ServiceType      string
	PropertyType     string
	Area             int
	Frequency        string
	BasePrice        float64
	PricePerAreaUnit float64
}

// Estimate returns the price breakdown for p.
// subtotal = base + area*perUnit, total = subtotal - subtotal*rate(frequency).
func Estimate(p Params) (models.PriceBreakdown, error) {
	if p.Area <= 0 {
		return models.PriceBreakdown{}, fmt.Errorf("%w: area must be positive, got %d", ErrInvalidInput, p.Area)
	}
	if p.BasePrice < 0 || p.PricePerAreaUnit < 0 {
		return models.PriceBreakdown{}, fmt.Errorf("%w: prices must not be negative", ErrInvalidInput)
	}
	if p.PropertyType != "" && !models.IsValidPropertyType(p.PropertyType) {
		return models.PriceBreakdown{}, fmt.Errorf("%w: unknown property type %q", ErrInvalidInput, p.PropertyType)
	}
	rate, ok := DiscountRate(p.Frequency)
	if !ok {
		return models.PriceBreakdown{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, p.Frequency)
	}

	base := decimal.NewFromFloat(p.BasePrice).Round(2)
	areaCharge := decimal.NewFromInt(int64(p.Area)).Mul(decimal.NewFromFloat(p.PricePerAreaUnit)).Round(2)
	subtotal := base.Add(areaCharge)
	discount := subtotal.Mul(rate).Round(2)
	total := subtotal.Sub(discount)

	market := MarketAverage(p.ServiceType)
	competitive := false
	if lo, hi, err := ParseRange(market); err == nil {
		competitive = total.LessThanOrEqual(lo.Add(hi).Div(decimal.NewFromInt(2)))
	}

	return models.PriceBreakdown{
		BasePrice:     base.InexactFloat64(),
		AreaCharge:    areaCharge.InexactFloat64(),
		Subtotal:      subtotal.InexactFloat64(),
		DiscountRate:  rate.Mul(hundred).InexactFloat64(),
		Discount:      discount.InexactFloat64(),
		Total:         total.InexactFloat64(),
		MarketAverage: market,
		IsCompetitive: competitive,
	}, nil
}

// DiscountRate returns the fractional discount for a frequency.
func DiscountRate(frequency string) (decimal.Decimal, bool) {
	rate, ok := discountRates[frequency]
	return rate, ok
}

// MarketAverage returns the "$min-$max" range for a service type.
func MarketAverage(serviceType string) string {
	if r, ok := marketAverages[serviceType]; ok {
		return r
	}
	return DefaultMarketAverage
}

// ParseRange parses a "$min-$max" string.
func ParseRange(s string) (lo, hi decimal.Decimal, err error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return lo, hi, fmt.Errorf("malformed range %q", s)
	}
	lo, err = decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(parts[0]), "$"))
	if err != nil {
		return lo, hi, fmt.Errorf("malformed range %q: %w", s, err)
	}
	hi, err = decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(parts[1]), "$"))
	if err != nil {
		return lo, hi, fmt.Errorf("malformed range %q: %w", s, err)
	}
	return lo, hi, nil
}
