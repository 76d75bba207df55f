package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/polarsource/polar-sub007/internal/billing/domain"
	"github.com/polarsource/polar-sub007/internal/clock"
	oracledomain "github.com/polarsource/polar-sub007/internal/oracle/domain"
	"github.com/polarsource/polar-sub007/internal/reconcile/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type repoFixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	repo  domain.Repository

	subID      snowflake.ID
	orderID    snowflake.ID
	priceID    snowflake.ID
	productID  snowflake.ID
	itemID     snowflake.ID
	customerID snowflake.ID
}

func setupRepo(t *testing.T) *repoFixture {
	t.Helper()

	// 1. Setup DB
	gormDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = gormDB.AutoMigrate(
		&billingdomain.Product{},
		&billingdomain.Price{},
		&billingdomain.Discount{},
		&billingdomain.Customer{},
		&billingdomain.Subscription{},
		&billingdomain.Order{},
		&billingdomain.OrderItem{},
		&billingdomain.BillingEntry{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	repo := NewRepository(Params{
		DB:    gormDB,
		Log:   zap.NewNop(),
		Clock: fakeClock,
	})

	f := &repoFixture{
		db:         gormDB,
		node:       node,
		clock:      fakeClock,
		repo:       repo,
		subID:      node.Generate(),
		orderID:    node.Generate(),
		priceID:    node.Generate(),
		productID:  node.Generate(),
		itemID:     node.Generate(),
		customerID: node.Generate(),
	}

	// 2. Seed data
	periodStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	customerID := f.customerID

	require.NoError(t, gormDB.Create(&billingdomain.Product{
		ID:   f.productID,
		Name: "Pro Plan",
	}).Error)

	require.NoError(t, gormDB.Create(&billingdomain.Customer{
		ID:           customerID,
		BalanceCents: -2500,
	}).Error)

	require.NoError(t, gormDB.Create(&billingdomain.Price{
		ID:          f.priceID,
		ProductID:   f.productID,
		Kind:        oracledomain.PriceKindFixed,
		Currency:    "usd",
		AmountCents: 9900,
		UnitAmount:  decimal.Zero,
	}).Error)

	require.NoError(t, gormDB.Create(&billingdomain.Subscription{
		ID:                 f.subID,
		CustomerID:         customerID,
		ProductID:          f.productID,
		Status:             oracledomain.SubscriptionStatusActive,
		Currency:           "usd",
		AmountCents:        9900,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
	}).Error)

	subID := f.subID
	require.NoError(t, gormDB.Create(&billingdomain.Order{
		ID:             f.orderID,
		SubscriptionID: &subID,
		CustomerID:     customerID,
		ProductID:      f.productID,
		BillingReason:  oracledomain.BillingReasonSubscriptionCycle,
		Currency:       "usd",
		SubtotalCents:  9900,
		TotalCents:     9900,
		DueCents:       9900,
		PeriodStart:    &periodStart,
		PeriodEnd:      &periodEnd,
		CreatedAt:      f.clock.Now().Add(-time.Hour),
	}).Error)

	priceID := f.priceID
	require.NoError(t, gormDB.Create(&billingdomain.OrderItem{
		ID:          f.itemID,
		OrderID:     f.orderID,
		PriceID:     &priceID,
		Label:       "Pro Plan",
		AmountCents: 9900,
		PeriodStart: &periodStart,
		PeriodEnd:   &periodEnd,
	}).Error)

	itemID := f.itemID
	require.NoError(t, gormDB.Create(&billingdomain.BillingEntry{
		ID:             node.Generate(),
		SubscriptionID: f.subID,
		CustomerID:     customerID,
		Type:           oracledomain.EntryTypeCycle,
		Direction:      oracledomain.EntryDirectionCharge,
		AmountCents:    9900,
		Currency:       "usd",
		PriceID:        f.priceID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		OrderItemID:    &itemID,
	}).Error)

	// One pending entry, not yet consumed by any order.
	require.NoError(t, gormDB.Create(&billingdomain.BillingEntry{
		ID:             node.Generate(),
		SubscriptionID: f.subID,
		CustomerID:     customerID,
		Type:           oracledomain.EntryTypeMetered,
		Direction:      oracledomain.EntryDirectionCharge,
		Currency:       "usd",
		PriceID:        f.priceID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
	}).Error)

	return f
}

func TestRepository_GetOrderWithItems(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	order, err := f.repo.GetOrderWithItems(ctx, f.orderID)
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, f.orderID, order.OrderID)
	require.NotNil(t, order.SubscriptionID)
	assert.Equal(t, f.subID, *order.SubscriptionID)
	require.Len(t, order.LineItems, 1)
	assert.Equal(t, "Pro Plan", order.LineItems[0].Label)
	assert.Equal(t, "usd", order.LineItems[0].Currency)
}

func TestRepository_GetOrderWithItems_Missing(t *testing.T) {
	f := setupRepo(t)

	order, err := f.repo.GetOrderWithItems(context.Background(), f.node.Generate())
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestRepository_GetSubscription(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	t.Run("without discount", func(t *testing.T) {
		sub, err := f.repo.GetSubscription(ctx, f.subID)
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.Equal(t, int64(9900), sub.AmountCents)
		assert.Nil(t, sub.Discount)
	})

	t.Run("with discount", func(t *testing.T) {
		discountID := f.node.Generate()
		require.NoError(t, f.db.Create(&billingdomain.Discount{
			ID:          discountID,
			Kind:        oracledomain.DiscountKindPercentage,
			BasisPoints: 1000,
			Duration:    oracledomain.DiscountDurationForever,
		}).Error)
		applied := f.clock.Now().Add(-30 * 24 * time.Hour)
		require.NoError(t, f.db.Model(&billingdomain.Subscription{}).
			Where("id = ?", f.subID).
			Updates(map[string]any{"discount_id": discountID, "discount_applied_at": applied}).Error)

		sub, err := f.repo.GetSubscription(ctx, f.subID)
		require.NoError(t, err)
		require.NotNil(t, sub)
		require.NotNil(t, sub.Discount)
		assert.Equal(t, discountID, sub.Discount.ID)
		assert.Equal(t, int32(1000), sub.Discount.BasisPoints)
		require.NotNil(t, sub.DiscountAppliedAt)
	})

	t.Run("missing", func(t *testing.T) {
		sub, err := f.repo.GetSubscription(ctx, f.node.Generate())
		require.NoError(t, err)
		assert.Nil(t, sub)
	})
}

func TestRepository_GetBillingEntriesForOrder(t *testing.T) {
	f := setupRepo(t)

	entries, err := f.repo.GetBillingEntriesForOrder(context.Background(), f.orderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	// The consumed marker is cleared so the simulator bills these entries.
	assert.Nil(t, entry.OrderItemID)
	assert.Equal(t, oracledomain.EntryTypeCycle, entry.Type)
	assert.Equal(t, f.priceID, entry.Price.ID)
	assert.Equal(t, "Pro Plan", entry.Price.ProductName)
}

func TestRepository_GetPendingBillingEntries(t *testing.T) {
	f := setupRepo(t)

	entries, err := f.repo.GetPendingBillingEntries(context.Background(), f.subID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, oracledomain.EntryTypeMetered, entries[0].Type)
	assert.Nil(t, entries[0].OrderItemID)
}

func TestRepository_GetOrdersForSubscription(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	orders, err := f.repo.GetOrdersForSubscription(ctx, f.subID, nil, nil)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	// A bound that excludes the order's period start returns nothing.
	bound := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	orders, err = f.repo.GetOrdersForSubscription(ctx, f.subID, &bound, nil)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRepository_GetRecentSubscriptionOrders(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	// One-time purchases never qualify for the sweep.
	require.NoError(t, f.db.Create(&billingdomain.Order{
		ID:            f.node.Generate(),
		CustomerID:    f.node.Generate(),
		ProductID:     f.productID,
		BillingReason: oracledomain.BillingReasonPurchase,
		Currency:      "usd",
		TotalCents:    500,
		CreatedAt:     f.clock.Now().Add(-time.Minute),
	}).Error)

	orders, err := f.repo.GetRecentSubscriptionOrders(ctx, 24*time.Hour, 100)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, f.orderID, orders[0].OrderID)

	// Outside the window nothing is returned.
	orders, err = f.repo.GetRecentSubscriptionOrders(ctx, 30*time.Minute, 100)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRepository_GetCustomerBalance(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	balance, err := f.repo.GetCustomerBalance(ctx, f.customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(-2500), balance)

	// An unknown customer reads as zero balance.
	balance, err = f.repo.GetCustomerBalance(ctx, f.node.Generate())
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestRepository_GetActiveSubscriptions(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, f.db.Create(&billingdomain.Subscription{
		ID:                 f.node.Generate(),
		CustomerID:         f.node.Generate(),
		ProductID:          f.productID,
		Status:             oracledomain.SubscriptionStatusCanceled,
		Currency:           "usd",
		CurrentPeriodStart: f.clock.Now(),
		CurrentPeriodEnd:   f.clock.Now().AddDate(0, 1, 0),
	}).Error)

	subs, err := f.repo.GetActiveSubscriptions(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, f.subID, subs[0].ID)
}
