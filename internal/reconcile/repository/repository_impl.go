// Package repository provides read-only access to persisted billing
// artifacts, translated into the shapes the simulator and reconciler
// consume. Nothing here writes billing state.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/polarsource/polar-sub007/internal/billing/domain"
	"github.com/polarsource/polar-sub007/internal/clock"
	oracledomain "github.com/polarsource/polar-sub007/internal/oracle/domain"
	"github.com/polarsource/polar-sub007/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Repository struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

func NewRepository(p Params) domain.Repository {
	return &Repository{
		db:    p.DB,
		log:   p.Log.Named("reconcile.repository"),
		clock: p.Clock,
	}
}

func (r *Repository) GetOrderWithItems(ctx context.Context, orderID snowflake.ID) (*domain.ActualOrder, error) {
	var order billingdomain.Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var items []billingdomain.OrderItem
	err = r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	actual := mapOrder(order)
	actual.LineItems = make([]domain.ActualLineItem, 0, len(items))
	for _, item := range items {
		actual.LineItems = append(actual.LineItems, domain.ActualLineItem{
			OrderItemID: item.ID,
			OrderID:     item.OrderID,
			PriceID:     item.PriceID,
			Label:       item.Label,
			AmountCents: item.AmountCents,
			TaxCents:    item.TaxCents,
			Proration:   item.Proration,
			Currency:    order.Currency,
			PeriodStart: item.PeriodStart,
			PeriodEnd:   item.PeriodEnd,
		})
	}
	return &actual, nil
}

func (r *Repository) GetSubscription(ctx context.Context, subscriptionID snowflake.ID) (*oracledomain.Subscription, error) {
	var sub billingdomain.Subscription
	err := r.db.WithContext(ctx).First(&sub, "id = ?", subscriptionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	out := oracledomain.Subscription{
		ID:                 sub.ID,
		CustomerID:         sub.CustomerID,
		ProductID:          sub.ProductID,
		Status:             sub.Status,
		Currency:           sub.Currency,
		AmountCents:        sub.AmountCents,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		TrialStart:         sub.TrialStart,
		TrialEnd:           sub.TrialEnd,
		DiscountAppliedAt:  sub.DiscountAppliedAt,
	}

	if sub.DiscountID != nil {
		var discount billingdomain.Discount
		err := r.db.WithContext(ctx).First(&discount, "id = ?", *sub.DiscountID).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			// Dangling discount reference; simulate without it.
			r.log.Warn("subscription references missing discount",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("discount_id", sub.DiscountID.String()),
			)
		} else {
			out.Discount = &oracledomain.Discount{
				ID:               discount.ID,
				Kind:             discount.Kind,
				AmountCents:      discount.AmountCents,
				Currency:         discount.Currency,
				BasisPoints:      discount.BasisPoints,
				Duration:         discount.Duration,
				DurationInMonths: discount.DurationInMonths,
				ProductID:        discount.ProductID,
			}
		}
	}

	return &out, nil
}

func (r *Repository) GetBillingEntriesForOrder(ctx context.Context, orderID snowflake.ID) ([]oracledomain.BillingEntry, error) {
	var entries []billingdomain.BillingEntry
	itemIDs := r.db.Model(&billingdomain.OrderItem{}).
		Select("id").
		Where("order_id = ?", orderID)
	err := r.db.WithContext(ctx).
		Where("order_item_id IN (?)", itemIDs).
		Order("id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	// These entries are the order's own consumed work; the link is cleared
	// so the simulator treats them as the cycle's unbilled input.
	return r.mapEntries(ctx, entries, true)
}

func (r *Repository) GetPendingBillingEntries(ctx context.Context, subscriptionID snowflake.ID) ([]oracledomain.BillingEntry, error) {
	var entries []billingdomain.BillingEntry
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND order_item_id IS NULL", subscriptionID).
		Order("id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return r.mapEntries(ctx, entries, false)
}

func (r *Repository) GetOrdersForSubscription(ctx context.Context, subscriptionID snowflake.ID, periodStart, periodEnd *time.Time) ([]domain.ActualOrder, error) {
	stmt := r.db.WithContext(ctx).
		Model(&billingdomain.Order{}).
		Where("subscription_id = ?", subscriptionID)
	if periodStart != nil {
		stmt = stmt.Where("period_start >= ?", *periodStart)
	}
	if periodEnd != nil {
		stmt = stmt.Where("period_start < ?", *periodEnd)
	}

	var orders []billingdomain.Order
	if err := stmt.Order("created_at").Find(&orders).Error; err != nil {
		return nil, err
	}
	return mapOrders(orders), nil
}

func (r *Repository) GetRecentSubscriptionOrders(ctx context.Context, window time.Duration, limit int) ([]domain.ActualOrder, error) {
	cutoff := r.clock.Now().Add(-window)

	var orders []billingdomain.Order
	err := r.db.WithContext(ctx).
		Where("subscription_id IS NOT NULL").
		Where("billing_reason IN ?", cycleReasons()).
		Where("created_at >= ?", cutoff).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return mapOrders(orders), nil
}

func (r *Repository) GetActiveSubscriptions(ctx context.Context, limit, offset int) ([]oracledomain.Subscription, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).
		Model(&billingdomain.Subscription{}).
		Where("status IN ?", []oracledomain.SubscriptionStatus{
			oracledomain.SubscriptionStatusActive,
			oracledomain.SubscriptionStatusTrialing,
		}).
		Order("id").
		Limit(limit).
		Offset(offset).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	out := make([]oracledomain.Subscription, 0, len(ids))
	for _, id := range ids {
		sub, err := r.GetSubscription(ctx, id)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *Repository) GetCustomerBalance(ctx context.Context, customerID snowflake.ID) (int64, error) {
	var customer billingdomain.Customer
	err := r.db.WithContext(ctx).First(&customer, "id = ?", customerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return customer.BalanceCents, nil
}

// mapEntries resolves each entry's price and product into the simulator's
// pricing shape. clearLink drops the order-item reference for entries that
// belong to the order under reconciliation.
func (r *Repository) mapEntries(ctx context.Context, entries []billingdomain.BillingEntry, clearLink bool) ([]oracledomain.BillingEntry, error) {
	if len(entries) == 0 {
		return []oracledomain.BillingEntry{}, nil
	}

	priceIDs := make([]snowflake.ID, 0, len(entries))
	seen := make(map[snowflake.ID]struct{}, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.PriceID]; !ok {
			seen[entry.PriceID] = struct{}{}
			priceIDs = append(priceIDs, entry.PriceID)
		}
	}

	var prices []billingdomain.Price
	if err := r.db.WithContext(ctx).Where("id IN ?", priceIDs).Find(&prices).Error; err != nil {
		return nil, err
	}
	priceByID := make(map[snowflake.ID]billingdomain.Price, len(prices))
	productIDs := make([]snowflake.ID, 0, len(prices))
	for _, price := range prices {
		priceByID[price.ID] = price
		productIDs = append(productIDs, price.ProductID)
	}

	var products []billingdomain.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, err
	}
	productByID := make(map[snowflake.ID]billingdomain.Product, len(products))
	for _, product := range products {
		productByID[product.ID] = product
	}

	out := make([]oracledomain.BillingEntry, 0, len(entries))
	for _, entry := range entries {
		price, ok := priceByID[entry.PriceID]
		if !ok {
			return nil, fmt.Errorf("billing entry %s references missing price %s", entry.ID, entry.PriceID)
		}
		mapped := oracledomain.BillingEntry{
			ID:             entry.ID,
			SubscriptionID: entry.SubscriptionID,
			Type:           entry.Type,
			Direction:      entry.Direction,
			AmountCents:    entry.AmountCents,
			Currency:       entry.Currency,
			PeriodStart:    entry.PeriodStart,
			PeriodEnd:      entry.PeriodEnd,
			Price: oracledomain.Price{
				ID:          price.ID,
				ProductID:   price.ProductID,
				ProductName: productByID[price.ProductID].Name,
				Kind:        price.Kind,
				Currency:    price.Currency,
				AmountCents: price.AmountCents,
				UnitAmount:  price.UnitAmount,
				CapCents:    price.CapCents,
			},
		}
		if !clearLink {
			mapped.OrderItemID = entry.OrderItemID
		}
		out = append(out, mapped)
	}
	return out, nil
}

func mapOrder(order billingdomain.Order) domain.ActualOrder {
	return domain.ActualOrder{
		OrderID:             order.ID,
		SubscriptionID:      order.SubscriptionID,
		CustomerID:          order.CustomerID,
		ProductID:           order.ProductID,
		BillingReason:       order.BillingReason,
		Currency:            order.Currency,
		SubtotalCents:       order.SubtotalCents,
		DiscountCents:       order.DiscountCents,
		TaxCents:            order.TaxCents,
		TotalCents:          order.TotalCents,
		AppliedBalanceCents: order.AppliedBalanceCents,
		DueCents:            order.DueCents,
		PeriodStart:         order.PeriodStart,
		PeriodEnd:           order.PeriodEnd,
		CreatedAt:           order.CreatedAt,
	}
}

func mapOrders(orders []billingdomain.Order) []domain.ActualOrder {
	out := make([]domain.ActualOrder, 0, len(orders))
	for _, order := range orders {
		out = append(out, mapOrder(order))
	}
	return out
}

func cycleReasons() []oracledomain.BillingReason {
	return oracledomain.CycleBillingReasons
}
