package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service runs reconciliations: fetch actual, simulate expected, diff,
// classify. Data discrepancies never surface as errors; they become
// mismatches inside the result. Returned errors are infrastructure
// failures, and a result is never returned alongside one.
type Service interface {
	ReconcileOrder(ctx context.Context, orderID snowflake.ID) (*ReconciliationResult, error)
	ReconcileSubscription(ctx context.Context, subscriptionID snowflake.ID, periodStart, periodEnd *time.Time) (*ReconciliationResult, error)
	ReconcileRecentOrders(ctx context.Context, window time.Duration, limit int) (*ReconciliationResult, error)
}
