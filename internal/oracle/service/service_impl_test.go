package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/polarsource/polar-sub007/internal/oracle/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	periodStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
)

func newTestNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func fixedPrice(node *snowflake.Node, name string, amount int64) domain.Price {
	return domain.Price{
		ID:          node.Generate(),
		ProductID:   node.Generate(),
		ProductName: name,
		Kind:        domain.PriceKindFixed,
		Currency:    "usd",
		AmountCents: amount,
	}
}

func testSubscription(node *snowflake.Node, amount int64) domain.Subscription {
	return domain.Subscription{
		ID:                 node.Generate(),
		CustomerID:         node.Generate(),
		ProductID:          node.Generate(),
		Status:             domain.SubscriptionStatusActive,
		Currency:           "usd",
		AmountCents:        amount,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
	}
}

func cycleEntry(node *snowflake.Node, sub domain.Subscription, price domain.Price, amount int64) domain.BillingEntry {
	return domain.BillingEntry{
		ID:             node.Generate(),
		SubscriptionID: sub.ID,
		Type:           domain.EntryTypeCycle,
		Direction:      domain.EntryDirectionCharge,
		AmountCents:    amount,
		Currency:       "usd",
		Price:          price,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
	}
}

func TestSimulateCycleOrder_CleanCycle(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	sub := testSubscription(node, 9900)
	price := fixedPrice(node, "Pro Plan", 9900)
	entries := []domain.BillingEntry{cycleEntry(node, sub, price, 9900)}

	order := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, 0, nil)

	require.Len(t, order.LineItems, 1)
	assert.Equal(t, int64(9900), order.SubtotalCents)
	assert.Equal(t, int64(0), order.DiscountCents)
	assert.Equal(t, int64(0), order.TaxCents)
	assert.Equal(t, int64(9900), order.TotalCents)
	assert.Equal(t, int64(0), order.AppliedBalanceCents)
	assert.Equal(t, int64(9900), order.DueCents)
	assert.Equal(t, "Pro Plan", order.LineItems[0].Label)
	assert.True(t, svc.CheckConservation(order))
}

func TestSimulateCycleOrder_ExclusiveTax(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	sub := testSubscription(node, 9900)
	price := fixedPrice(node, "Pro Plan", 9900)
	entries := []domain.BillingEntry{cycleEntry(node, sub, price, 9900)}
	tax := &domain.TaxRate{Rate: decimal.RequireFromString("0.10")}

	order := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, 0, tax)

	assert.Equal(t, int64(990), order.TaxCents)
	assert.Equal(t, int64(10890), order.TotalCents)
	assert.Equal(t, int64(10890), order.DueCents)
	assert.True(t, svc.CheckConservation(order))
}

func TestSimulateCycleOrder_InclusiveTax(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	sub := testSubscription(node, 11000)
	price := fixedPrice(node, "Pro Plan", 11000)
	entries := []domain.BillingEntry{cycleEntry(node, sub, price, 11000)}
	tax := &domain.TaxRate{Rate: decimal.RequireFromString("0.10"), Inclusive: true}

	order := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, 0, tax)

	// 11000 - 11000/1.10 = 1000
	assert.Equal(t, int64(1000), order.TaxCents)
	assert.Equal(t, int64(12000), order.TotalCents)
}

func TestSimulateCycleOrder_BalanceApplication(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	sub := testSubscription(node, 9900)
	price := fixedPrice(node, "Pro Plan", 9900)
	entries := []domain.BillingEntry{cycleEntry(node, sub, price, 9900)}

	t.Run("partial credit", func(t *testing.T) {
		order := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, -5000, nil)
		assert.Equal(t, int64(-5000), order.AppliedBalanceCents)
		assert.Equal(t, int64(4900), order.DueCents)
		assert.True(t, svc.CheckBalanceApplication(order))
	})

	t.Run("credit exceeding total is clamped", func(t *testing.T) {
		order := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, -20000, nil)
		assert.Equal(t, int64(-9900), order.AppliedBalanceCents)
		assert.Equal(t, int64(0), order.DueCents)
		assert.True(t, svc.CheckBalanceApplication(order))
		assert.True(t, svc.CheckNonNegativeDue(order))
	})

	t.Run("positive balance is debt, never applied", func(t *testing.T) {
		order := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, 5000, nil)
		assert.Equal(t, int64(0), order.AppliedBalanceCents)
		assert.Equal(t, int64(9900), order.DueCents)
	})
}

func TestSimulateCycleOrder_PercentageDiscount(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	sub := testSubscription(node, 9900)
	price := fixedPrice(node, "Pro Plan", 9900)
	sub.ProductID = price.ProductID
	applied := periodStart
	sub.DiscountAppliedAt = &applied
	sub.Discount = &domain.Discount{
		ID:          node.Generate(),
		Kind:        domain.DiscountKindPercentage,
		BasisPoints: 1000,
		Duration:    domain.DiscountDurationForever,
	}
	entries := []domain.BillingEntry{cycleEntry(node, sub, price, 9900)}

	order := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, 0, nil)

	assert.Equal(t, int64(990), order.DiscountCents)
	assert.Equal(t, int64(8910), order.TotalCents)
	require.NotNil(t, order.DiscountID)
	assert.Equal(t, sub.Discount.ID, *order.DiscountID)
	require.NotNil(t, order.DiscountBasisPoints)
	assert.Equal(t, int32(1000), *order.DiscountBasisPoints)
	assert.True(t, svc.CheckConservation(order))
}

func TestSimulateCycleOrder_OnceDiscountExpires(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	sub := testSubscription(node, 9900)
	price := fixedPrice(node, "Pro Plan", 9900)
	sub.ProductID = price.ProductID
	firstCycle := periodStart.AddDate(0, -1, 0)
	sub.DiscountAppliedAt = &firstCycle
	sub.Discount = &domain.Discount{
		ID:       node.Generate(),
		Kind:     domain.DiscountKindFixed,
		Currency: "usd",
		Duration: domain.DiscountDurationOnce,

		AmountCents: 1000,
	}
	entries := []domain.BillingEntry{cycleEntry(node, sub, price, 9900)}

	order := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, 0, nil)

	assert.Equal(t, int64(0), order.DiscountCents)
	assert.Equal(t, int64(9900), order.TotalCents)
}

func TestSimulateCycleOrder_ProrationCredit(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	sub := testSubscription(node, 9900)
	price := fixedPrice(node, "Pro Plan", 9900)

	credit := cycleEntry(node, sub, price, 3300)
	credit.Type = domain.EntryTypeProration
	credit.Direction = domain.EntryDirectionCredit

	charge := cycleEntry(node, sub, price, 4400)
	charge.Type = domain.EntryTypeProration

	order := svc.SimulateCycleOrder(sub, []domain.BillingEntry{credit, charge}, domain.BillingReasonSubscriptionUpdate, 0, nil)

	require.Len(t, order.LineItems, 2)
	assert.Equal(t, int64(-3300), order.LineItems[0].AmountCents)
	assert.Equal(t, "Remaining time on Pro Plan", order.LineItems[0].Label)
	assert.True(t, order.LineItems[0].Proration)
	assert.Equal(t, int64(4400), order.LineItems[1].AmountCents)
	assert.NotEqual(t, order.LineItems[0].StableID, order.LineItems[1].StableID)
	assert.Equal(t, int64(1100), order.SubtotalCents)
	assert.True(t, svc.CheckConservation(order))
}

func TestSimulateCycleOrder_MeteredAggregation(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	sub := testSubscription(node, 0)
	price := domain.Price{
		ID:          node.Generate(),
		ProductID:   node.Generate(),
		ProductName: "API Calls",
		Kind:        domain.PriceKindMetered,
		Currency:    "usd",
		UnitAmount:  decimal.NewFromInt(25),
	}

	entries := []domain.BillingEntry{}
	for i := 0; i < 3; i++ {
		entry := cycleEntry(node, sub, price, 0)
		entry.Type = domain.EntryTypeMetered
		entries = append(entries, entry)
	}

	order := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, 0, nil)

	require.Len(t, order.LineItems, 1)
	item := order.LineItems[0]
	assert.Equal(t, int64(75), item.AmountCents)
	assert.Equal(t, "API Calls (3 units)", item.Label)
	assert.True(t, item.ConsumedUnits.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, int64(0), item.CreditedUnits)
}

func TestSimulateCycleOrder_SkipsConsumedEntries(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	sub := testSubscription(node, 9900)
	price := fixedPrice(node, "Pro Plan", 9900)

	fresh := cycleEntry(node, sub, price, 9900)
	spent := cycleEntry(node, sub, price, 500)
	itemID := node.Generate()
	spent.OrderItemID = &itemID

	order := svc.SimulateCycleOrder(sub, []domain.BillingEntry{fresh, spent}, domain.BillingReasonSubscriptionCycle, 0, nil)

	require.Len(t, order.LineItems, 1)
	assert.Equal(t, int64(9900), order.SubtotalCents)
}

func TestSimulateCycleOrder_Deterministic(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	sub := testSubscription(node, 9900)
	sub.Discount = &domain.Discount{
		ID:          node.Generate(),
		Kind:        domain.DiscountKindPercentage,
		BasisPoints: 500,
		Duration:    domain.DiscountDurationForever,
	}
	price := fixedPrice(node, "Pro Plan", 9900)
	sub.ProductID = price.ProductID
	entries := []domain.BillingEntry{cycleEntry(node, sub, price, 9900)}
	tax := &domain.TaxRate{Rate: decimal.RequireFromString("0.21")}

	first := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, -100, tax)
	second := svc.SimulateCycleOrder(sub, entries, domain.BillingReasonSubscriptionCycle, -100, tax)

	assert.Equal(t, first, second)
}

func TestSimulateSubscriptionState(t *testing.T) {
	node := newTestNode(t)
	svc := NewService()

	t.Run("active has next renewal", func(t *testing.T) {
		sub := testSubscription(node, 9900)
		state := svc.SimulateSubscriptionState(sub)
		require.NotNil(t, state.NextRenewalAt)
		assert.Equal(t, sub.CurrentPeriodEnd, *state.NextRenewalAt)
	})

	t.Run("canceled has none", func(t *testing.T) {
		sub := testSubscription(node, 9900)
		sub.Status = domain.SubscriptionStatusCanceled
		state := svc.SimulateSubscriptionState(sub)
		assert.Nil(t, state.NextRenewalAt)
	})
}
