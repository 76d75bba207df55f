package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Price is a tagged union over the pricing variants a billing entry can carry.
// Kind selects the variant; the other fields are meaningful per kind only.
type Price struct {
	ID          snowflake.ID
	ProductID   snowflake.ID
	ProductName string
	Kind        PriceKind
	Currency    string

	// Fixed prices charge AmountCents per entry.
	AmountCents int64

	// Metered prices charge UnitAmount per billable unit, optionally capped.
	UnitAmount decimal.Decimal
	CapCents   *int64
}

// AmountAndLabel computes the line item amount and display label for the
// given billable units. Fixed prices ignore units.
func (p Price) AmountAndLabel(units decimal.Decimal) (int64, string) {
	switch p.Kind {
	case PriceKindMetered:
		amount := RoundCents(units.Mul(p.UnitAmount))
		if p.CapCents != nil && amount > *p.CapCents {
			amount = *p.CapCents
		}
		return amount, fmt.Sprintf("%s (%s units)", p.ProductName, units.String())
	default:
		return p.AmountCents, p.ProductName
	}
}

// Discount is a tagged union over discount variants. Kind selects the
// variant: fixed discounts use AmountCents/Currency, percentage discounts
// use BasisPoints.
type Discount struct {
	ID          snowflake.ID
	Kind        DiscountKind
	AmountCents int64
	Currency    string
	BasisPoints int32

	Duration         DiscountDuration
	DurationInMonths int32

	// ProductID restricts eligibility when set; nil applies to any product.
	ProductID *snowflake.ID
}

// Amount computes the discount against a subtotal, never exceeding it.
func (d Discount) Amount(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	var amount int64
	switch d.Kind {
	case DiscountKindPercentage:
		amount = RoundCents(decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt32(d.BasisPoints)).
			Div(decimal.NewFromInt(10000)))
	default:
		amount = d.AmountCents
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// AppliesTo reports product and currency eligibility. Fixed discounts are
// currency-bound; percentage discounts apply in any currency.
func (d Discount) AppliesTo(productID snowflake.ID, currency string) bool {
	if d.ProductID != nil && *d.ProductID != productID {
		return false
	}
	if d.Kind == DiscountKindFixed && d.Currency != "" && d.Currency != currency {
		return false
	}
	return true
}

// ActiveAt reports whether the discount's duration window still covers a
// cycle starting at periodStart, given when it was first applied. "once"
// discounts cover only the cycle they were applied in.
func (d Discount) ActiveAt(appliedAt *time.Time, periodStart time.Time) bool {
	if appliedAt == nil {
		return true
	}
	switch d.Duration {
	case DiscountDurationForever:
		return true
	case DiscountDurationOnce:
		return !periodStart.After(*appliedAt)
	case DiscountDurationRepeating:
		return periodStart.Before(appliedAt.AddDate(0, int(d.DurationInMonths), 0))
	default:
		return false
	}
}

// TaxRate describes the tax treatment for a simulated order. A nil *TaxRate
// means no tax is computed.
type TaxRate struct {
	Rate      decimal.Decimal
	Inclusive bool
}
