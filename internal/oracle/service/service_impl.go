// Package service implements the billing simulator: a pure re-computation of
// what a subscription's cycle order should look like.
package service

import (
	"github.com/bwmarrin/snowflake"
	"github.com/polarsource/polar-sub007/internal/oracle/domain"
	"github.com/shopspring/decimal"
)

// Service is the pure simulation engine. It holds no state and performs no
// I/O, so a single instance may be shared across any number of callers.
type Service struct{}

// NewService constructs the simulator.
func NewService() domain.Simulator {
	return &Service{}
}

// creditLabelPrefix frames proration refunds the way invoices display them.
const creditLabelPrefix = "Remaining time on "

// SimulateCycleOrder computes the expected order for one billing cycle.
//
// Entries already consumed into a prior order (non-nil order item link) are
// skipped. Fixed-price entries become one line item each; metered entries
// are aggregated into a single line item per price. Discounts, tax and
// customer balance are applied in that sequence.
func (s *Service) SimulateCycleOrder(
	sub domain.Subscription,
	entries []domain.BillingEntry,
	reason domain.BillingReason,
	customerBalance int64,
	tax *domain.TaxRate,
) domain.ExpectedOrder {
	lineItems := s.computeLineItems(sub, entries)

	var subtotal int64
	for _, item := range lineItems {
		subtotal += item.AmountCents
	}

	var discountCents int64
	if sub.Discount != nil && s.isDiscountApplicable(sub) {
		discountCents = sub.Discount.Amount(subtotal)
	}

	netAmount := subtotal - discountCents
	if netAmount < 0 {
		netAmount = 0
	}

	var taxCents int64
	if tax != nil && netAmount > 0 {
		net := decimal.NewFromInt(netAmount)
		if tax.Inclusive {
			taxCents = domain.RoundCents(net.Sub(net.Div(decimal.NewFromInt(1).Add(tax.Rate))))
		} else {
			taxCents = domain.RoundCents(net.Mul(tax.Rate))
		}
	}

	totalCents := netAmount + taxCents

	// Only standing credit (negative balance) reduces what is due, and never
	// by more than the order total.
	var appliedBalance int64
	if customerBalance < 0 {
		appliedBalance = customerBalance
		if appliedBalance < -totalCents {
			appliedBalance = -totalCents
		}
	}

	dueCents := totalCents + appliedBalance
	if dueCents < 0 {
		dueCents = 0
	}

	order := domain.ExpectedOrder{
		StableID:            domain.OrderStableID(sub.ID, sub.CurrentPeriodStart, reason),
		SubscriptionID:      sub.ID,
		CustomerID:          sub.CustomerID,
		ProductID:           sub.ProductID,
		BillingReason:       reason,
		Currency:            sub.Currency,
		SubtotalCents:       subtotal,
		DiscountCents:       discountCents,
		TaxCents:            taxCents,
		TotalCents:          totalCents,
		AppliedBalanceCents: appliedBalance,
		DueCents:            dueCents,
		PeriodStart:         sub.CurrentPeriodStart,
		PeriodEnd:           sub.CurrentPeriodEnd,
		LineItems:           lineItems,
	}

	if d := sub.Discount; d != nil {
		discountID := d.ID
		order.DiscountID = &discountID
		order.DiscountType = d.Kind
		switch d.Kind {
		case domain.DiscountKindPercentage:
			bps := d.BasisPoints
			order.DiscountBasisPoints = &bps
		case domain.DiscountKindFixed:
			fixed := d.AmountCents
			order.DiscountFixedCents = &fixed
		}
	}

	return order
}

func (s *Service) computeLineItems(sub domain.Subscription, entries []domain.BillingEntry) []domain.ExpectedLineItem {
	items := make([]domain.ExpectedLineItem, 0, len(entries))

	// Metered entries are grouped per price in first-seen order; their
	// aggregated line items are appended after the fixed ones.
	meteredOrder := make([]snowflake.ID, 0)
	metered := make(map[snowflake.ID][]domain.BillingEntry)

	for _, entry := range entries {
		if entry.OrderItemID != nil {
			// Spent by a prior order.
			continue
		}

		if entry.Price.Kind == domain.PriceKindMetered {
			key := entry.Price.ID
			if _, seen := metered[key]; !seen {
				meteredOrder = append(meteredOrder, key)
			}
			metered[key] = append(metered[key], entry)
			continue
		}

		items = append(items, s.staticLineItem(sub, entry))
	}

	for _, key := range meteredOrder {
		items = append(items, s.meteredLineItem(sub, metered[key]))
	}

	return items
}

func (s *Service) staticLineItem(sub domain.Subscription, entry domain.BillingEntry) domain.ExpectedLineItem {
	amount := entry.AmountCents
	label := entry.Price.ProductName
	if entry.Direction == domain.EntryDirectionCredit {
		amount = -amount
		label = creditLabelPrefix + label
	}

	var segment string
	if entry.Type == domain.EntryTypeProration {
		segment = string(entry.Direction)
	}

	priceID := entry.Price.ID
	return domain.ExpectedLineItem{
		StableID:    domain.LineItemStableID(sub.ID, entry.PeriodStart, &priceID, entry.Type, segment),
		Label:       label,
		AmountCents: amount,
		Currency:    entry.Currency,
		Proration:   entry.Type == domain.EntryTypeProration,
		PriceID:     &priceID,
		PeriodStart: entry.PeriodStart,
		PeriodEnd:   entry.PeriodEnd,
		EntryType:   entry.Type,
	}
}

func (s *Service) meteredLineItem(sub domain.Subscription, entries []domain.BillingEntry) domain.ExpectedLineItem {
	price := entries[0].Price

	// Each entry counts as exactly one billable unit, and credited units are
	// not yet sourced from anywhere. TODO: subtract meter credits once the
	// metering service exposes them per price and period.
	consumed := decimal.NewFromInt(int64(len(entries)))
	var credited int64

	billable := consumed.Sub(decimal.NewFromInt(credited))
	if billable.IsNegative() {
		billable = decimal.Zero
	}

	amount, label := price.AmountAndLabel(billable)

	periodStart := entries[0].PeriodStart
	periodEnd := entries[0].PeriodEnd
	for _, entry := range entries[1:] {
		if entry.PeriodStart.Before(periodStart) {
			periodStart = entry.PeriodStart
		}
		if entry.PeriodEnd.After(periodEnd) {
			periodEnd = entry.PeriodEnd
		}
	}

	priceID := price.ID
	return domain.ExpectedLineItem{
		StableID:      domain.LineItemStableID(sub.ID, periodStart, &priceID, domain.EntryTypeMetered, ""),
		Label:         label,
		AmountCents:   amount,
		Currency:      entries[0].Currency,
		PriceID:       &priceID,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		EntryType:     domain.EntryTypeMetered,
		ConsumedUnits: consumed,
		CreditedUnits: credited,
		UnitAmount:    price.UnitAmount,
	}
}

// isDiscountApplicable checks eligibility and duration against the current
// period. Once a "once" discount's first cycle has passed, an advanced
// period start must find it expired.
func (s *Service) isDiscountApplicable(sub domain.Subscription) bool {
	if !sub.Discount.AppliesTo(sub.ProductID, sub.Currency) {
		return false
	}
	return sub.Discount.ActiveAt(sub.DiscountAppliedAt, sub.CurrentPeriodStart)
}

// SimulateSubscriptionState projects the expected subscription snapshot. An
// inactive subscription has no next renewal regardless of the stored period
// end.
func (s *Service) SimulateSubscriptionState(sub domain.Subscription) domain.ExpectedSubscriptionState {
	state := domain.ExpectedSubscriptionState{
		SubscriptionID:     sub.ID,
		Status:             sub.Status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		AmountCents:        sub.AmountCents,
		Currency:           sub.Currency,
		TrialStart:         sub.TrialStart,
		TrialEnd:           sub.TrialEnd,
		DiscountAppliedAt:  sub.DiscountAppliedAt,
	}
	if sub.Active() {
		renewal := sub.CurrentPeriodEnd
		state.NextRenewalAt = &renewal
	}
	if sub.Discount != nil {
		discountID := sub.Discount.ID
		state.DiscountID = &discountID
	}
	return state
}

// CheckConservation verifies total == sum(line items) - discount + tax.
func (s *Service) CheckConservation(order domain.ExpectedOrder) bool {
	var sum int64
	for _, item := range order.LineItems {
		sum += item.AmountCents
	}
	return order.TotalCents == sum-order.DiscountCents+order.TaxCents
}

// CheckNonNegativeDue verifies due >= 0.
func (s *Service) CheckNonNegativeDue(order domain.ExpectedOrder) bool {
	return order.DueCents >= 0
}

// CheckBalanceApplication verifies |applied balance| <= total.
func (s *Service) CheckBalanceApplication(order domain.ExpectedOrder) bool {
	applied := order.AppliedBalanceCents
	if applied > 0 {
		return false
	}
	return -applied <= order.TotalCents
}
