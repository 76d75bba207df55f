package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Subscription is the point-in-time input snapshot the simulator works from.
type Subscription struct {
	ID                 snowflake.ID
	CustomerID         snowflake.ID
	ProductID          snowflake.ID
	Status             SubscriptionStatus
	Currency           string
	AmountCents        int64
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	TrialStart         *time.Time
	TrialEnd           *time.Time
	Discount           *Discount
	DiscountAppliedAt  *time.Time
}

// Active reports whether the subscription is currently active.
func (s Subscription) Active() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// BillingEntry is one atomic unbilled charge or credit accrued against a
// subscription. An entry with a non-nil OrderItemID has already been
// consumed into an order and is skipped by the simulator.
type BillingEntry struct {
	ID             snowflake.ID
	SubscriptionID snowflake.ID
	Type           EntryType
	Direction      EntryDirection
	AmountCents    int64
	Currency       string
	Price          Price
	PeriodStart    time.Time
	PeriodEnd      time.Time
	OrderItemID    *snowflake.ID
}

// ExpectedLineItem is one computed invoice line. It is a pure computation
// result and must never be mutated after construction.
type ExpectedLineItem struct {
	StableID    string
	Label       string
	AmountCents int64
	Currency    string
	TaxCents    int64
	Proration   bool
	PriceID     *snowflake.ID
	PeriodStart time.Time
	PeriodEnd   time.Time
	EntryType   EntryType

	// Metered breakdown; zero-valued for non-metered items.
	ConsumedUnits decimal.Decimal
	CreditedUnits int64
	UnitAmount    decimal.Decimal
}

// ExpectedOrder is one computed invoice, the simulator's primary output.
type ExpectedOrder struct {
	StableID       string
	SubscriptionID snowflake.ID
	CustomerID     snowflake.ID
	ProductID      snowflake.ID
	BillingReason  BillingReason
	Currency       string

	SubtotalCents       int64
	DiscountCents       int64
	TaxCents            int64
	TotalCents          int64
	AppliedBalanceCents int64
	DueCents            int64

	PeriodStart time.Time
	PeriodEnd   time.Time

	DiscountID          *snowflake.ID
	DiscountType        DiscountKind
	DiscountBasisPoints *int32
	DiscountFixedCents  *int64

	LineItems []ExpectedLineItem
}

// ExpectedSubscriptionState is the expected subscription snapshot used for
// state-drift checks.
type ExpectedSubscriptionState struct {
	SubscriptionID     snowflake.ID
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	NextRenewalAt      *time.Time
	CancelAtPeriodEnd  bool
	AmountCents        int64
	Currency           string
	TrialStart         *time.Time
	TrialEnd           *time.Time
	DiscountID         *snowflake.ID
	DiscountAppliedAt  *time.Time
}
