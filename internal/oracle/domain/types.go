// Package domain contains the pure value types consumed and produced by the
// billing simulation: subscription snapshots, billing entries, pricing and
// discount variants, and the expected-order output shapes.
package domain

// BillingReason explains why an order was created.
type BillingReason string

const (
	BillingReasonPurchase                    BillingReason = "purchase"
	BillingReasonSubscriptionCreate          BillingReason = "subscription_create"
	BillingReasonSubscriptionCycle           BillingReason = "subscription_cycle"
	BillingReasonSubscriptionCycleAfterTrial BillingReason = "subscription_cycle_after_trial"
	BillingReasonSubscriptionUpdate          BillingReason = "subscription_update"
)

// CycleBillingReasons lists the reasons eligible for sweep reconciliation.
// One-time purchases and mid-cycle updates have no simulated counterpart.
var CycleBillingReasons = []BillingReason{
	BillingReasonSubscriptionCycle,
	BillingReasonSubscriptionCycleAfterTrial,
}

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusEnded      SubscriptionStatus = "ended"
)

// Billable reports whether orders may still be produced for this status.
func (s SubscriptionStatus) Billable() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}

// EntryType classifies a billing entry and the line item it produces.
type EntryType string

const (
	EntryTypeCycle        EntryType = "cycle"
	EntryTypeProration    EntryType = "proration"
	EntryTypeMetered      EntryType = "metered"
	EntryTypeSeatIncrease EntryType = "seat_increase"
	EntryTypeSeatDecrease EntryType = "seat_decrease"
)

// EntryDirection marks an entry as a charge or a credit.
type EntryDirection string

const (
	EntryDirectionCharge EntryDirection = "charge"
	EntryDirectionCredit EntryDirection = "credit"
)

// PriceKind discriminates the closed set of pricing variants.
type PriceKind string

const (
	PriceKindFixed   PriceKind = "fixed"
	PriceKindMetered PriceKind = "metered"
)

// DiscountKind discriminates discount variants.
type DiscountKind string

const (
	DiscountKindFixed      DiscountKind = "fixed"
	DiscountKindPercentage DiscountKind = "percentage"
)

// DiscountDuration controls how many cycles a discount stays applicable.
type DiscountDuration string

const (
	DiscountDurationOnce      DiscountDuration = "once"
	DiscountDurationRepeating DiscountDuration = "repeating"
	DiscountDurationForever   DiscountDuration = "forever"
)
