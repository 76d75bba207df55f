package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	oracledomain "github.com/polarsource/polar-sub007/internal/oracle/domain"
)

// Repository is the read-only storage boundary. Missing rows are (nil, nil);
// only infrastructure failures return errors, and those abort the run.
type Repository interface {
	// GetOrderWithItems loads an order and its line items.
	GetOrderWithItems(ctx context.Context, orderID snowflake.ID) (*ActualOrder, error)

	// GetSubscription loads the subscription in the simulator's input shape,
	// discount and application timestamp included.
	GetSubscription(ctx context.Context, subscriptionID snowflake.ID) (*oracledomain.Subscription, error)

	// GetBillingEntriesForOrder returns the entries consumed into the given
	// order's line items. The order-item link is cleared on the returned
	// shapes: for the simulator they are this cycle's own unconsumed work.
	GetBillingEntriesForOrder(ctx context.Context, orderID snowflake.ID) ([]oracledomain.BillingEntry, error)

	// GetPendingBillingEntries returns entries not yet consumed by any order.
	GetPendingBillingEntries(ctx context.Context, subscriptionID snowflake.ID) ([]oracledomain.BillingEntry, error)

	// GetOrdersForSubscription lists a subscription's orders, optionally
	// bounded to a period window.
	GetOrdersForSubscription(ctx context.Context, subscriptionID snowflake.ID, periodStart, periodEnd *time.Time) ([]ActualOrder, error)

	// GetRecentSubscriptionOrders lists subscription-cycle orders created in
	// the window, newest first, capped at limit. One-time orders and
	// non-cycle billing reasons are excluded.
	GetRecentSubscriptionOrders(ctx context.Context, window time.Duration, limit int) ([]ActualOrder, error)

	// GetActiveSubscriptions pages through active subscriptions.
	GetActiveSubscriptions(ctx context.Context, limit, offset int) ([]oracledomain.Subscription, error)

	// GetCustomerBalance returns the customer's standing balance in cents.
	// Negative is credit owed to the customer. An unknown customer reads as
	// zero.
	GetCustomerBalance(ctx context.Context, customerID snowflake.ID) (int64, error)
}
