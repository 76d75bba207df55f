// Package service implements the reconciler: one run = fetch actual,
// simulate expected, diff field by field, classify the differences.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/polarsource/polar-sub007/internal/clock"
	oracledomain "github.com/polarsource/polar-sub007/internal/oracle/domain"
	"github.com/polarsource/polar-sub007/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log    *zap.Logger
	repo   domain.Repository
	oracle oracledomain.Simulator
	clock  clock.Clock
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Repo   domain.Repository
	Oracle oracledomain.Simulator
	Clock  clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("reconcile.service"),
		repo:   p.Repo,
		oracle: p.Oracle,
		clock:  p.Clock,
	}
}

// ReconcileOrder checks one order against its simulated counterpart.
func (s *Service) ReconcileOrder(ctx context.Context, orderID snowflake.ID) (*domain.ReconciliationResult, error) {
	result := domain.NewResult(uuid.New(), s.clock.Now())
	scopedOrderID := orderID
	result.OrderID = &scopedOrderID

	actual, err := s.repo.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if actual == nil {
		// A missing record during reconciliation is itself a finding, not a
		// process failure. OrdersChecked stays 0: nothing was fetched.
		result.AddMismatch(domain.OracleMismatch{
			ID:             domain.MismatchID(result.RunID, "order_not_found", ""),
			Classification: domain.ClassificationUnknown,
			Severity:       domain.SeverityError,
			Message:        fmt.Sprintf("order %s not found", orderID),
			OrderID:        &scopedOrderID,
			DetectedAt:     s.clock.Now(),
		})
		result.Finalize(s.clock.Now())
		return result, nil
	}

	result.OrdersChecked = 1

	if actual.SubscriptionID == nil {
		// One-time purchase: there is nothing to simulate, and that is not
		// an error condition.
		result.Finalize(s.clock.Now())
		return result, nil
	}

	sub, err := s.repo.GetSubscription(ctx, *actual.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load subscription %s: %w", *actual.SubscriptionID, err)
	}
	if sub == nil {
		result.AddMismatch(domain.OracleMismatch{
			ID:             domain.MismatchID(result.RunID, "subscription_not_found", ""),
			Classification: domain.ClassificationUnknown,
			Severity:       domain.SeverityError,
			Message:        fmt.Sprintf("subscription %s not found for order %s", *actual.SubscriptionID, orderID),
			SubscriptionID: actual.SubscriptionID,
			OrderID:        &scopedOrderID,
			DetectedAt:     s.clock.Now(),
		})
		result.Finalize(s.clock.Now())
		return result, nil
	}

	entries, err := s.repo.GetBillingEntriesForOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load billing entries for order %s: %w", orderID, err)
	}

	expected := s.oracle.SimulateCycleOrder(*sub, entries, actual.BillingReason, 0, nil)

	now := s.clock.Now()
	s.compareOrderTotals(result, expected, *actual, now)
	s.compareLineItems(result, expected, *actual, now)

	if !s.oracle.CheckConservation(expected) {
		// The engine contradicting itself undermines every other finding on
		// this subscription; surfaced at maximum severity.
		var sum int64
		for _, item := range expected.LineItems {
			sum += item.AmountCents
		}
		result.AddMismatch(domain.OracleMismatch{
			ID:             domain.MismatchID(result.RunID, "conservation_invariant", expected.StableID),
			Classification: domain.ClassificationUnknown,
			Severity:       domain.SeverityCritical,
			Message:        "simulated order violates the conservation invariant; simulation output is untrustworthy for this subscription",
			SubscriptionID: actual.SubscriptionID,
			OrderID:        &scopedOrderID,
			Expected:       sum - expected.DiscountCents + expected.TaxCents,
			Actual:         expected.TotalCents,
			DetectedAt:     now,
		})
	}

	result.Finalize(s.clock.Now())

	s.log.Debug("order reconciled",
		zap.String("run_id", result.RunID.String()),
		zap.String("order_id", orderID.String()),
		zap.Int("mismatches", len(result.Mismatches)),
	)

	return result, nil
}

// ReconcileSubscription reconciles every order of a subscription within the
// optional period bounds and merges the per-order findings.
func (s *Service) ReconcileSubscription(ctx context.Context, subscriptionID snowflake.ID, periodStart, periodEnd *time.Time) (*domain.ReconciliationResult, error) {
	result := domain.NewResult(uuid.New(), s.clock.Now())
	scopedSubID := subscriptionID
	result.SubscriptionID = &scopedSubID
	result.PeriodStart = periodStart
	result.PeriodEnd = periodEnd

	orders, err := s.repo.GetOrdersForSubscription(ctx, subscriptionID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("list orders for subscription %s: %w", subscriptionID, err)
	}

	sub, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load subscription %s: %w", subscriptionID, err)
	}
	if sub == nil {
		result.AddMismatch(domain.OracleMismatch{
			ID:             domain.MismatchID(result.RunID, "subscription_not_found", ""),
			Classification: domain.ClassificationUnknown,
			Severity:       domain.SeverityError,
			Message:        fmt.Sprintf("subscription %s not found", subscriptionID),
			SubscriptionID: &scopedSubID,
			DetectedAt:     s.clock.Now(),
		})
		result.Finalize(s.clock.Now())
		return result, nil
	}

	s.checkSubscriptionState(result, *sub, len(orders))

	if err := s.reconcileEach(ctx, result, orders); err != nil {
		return nil, err
	}

	result.Finalize(s.clock.Now())
	return result, nil
}

// checkSubscriptionState runs the state-drift checks against the projected
// snapshot: period sanity, overdue renewal, and orders produced for a
// subscription that should no longer bill.
func (s *Service) checkSubscriptionState(result *domain.ReconciliationResult, sub oracledomain.Subscription, orderCount int) {
	now := s.clock.Now()
	subID := sub.ID
	state := s.oracle.SimulateSubscriptionState(sub)

	if !state.CurrentPeriodEnd.After(state.CurrentPeriodStart) {
		start := state.CurrentPeriodStart
		end := state.CurrentPeriodEnd
		result.AddMismatch(domain.OracleMismatch{
			ID:             domain.MismatchID(result.RunID, "period_mismatch", subID.String()),
			Classification: domain.ClassificationPeriodMismatch,
			Severity:       domain.SeverityError,
			Message:        fmt.Sprintf("subscription %s has a non-positive current period", subID),
			SubscriptionID: &subID,
			Expected:       state.CurrentPeriodStart,
			Actual:         state.CurrentPeriodEnd,
			DetectedAt:     now,
			PeriodStart:    &start,
			PeriodEnd:      &end,
		})
	}

	if state.NextRenewalAt != nil && state.NextRenewalAt.Before(now) {
		result.AddMismatch(domain.OracleMismatch{
			ID:             domain.MismatchID(result.RunID, "renewal_date_mismatch", subID.String()),
			Classification: domain.ClassificationRenewalDateMismatch,
			Severity:       domain.SeverityWarning,
			Message:        fmt.Sprintf("subscription %s renewal %s is overdue", subID, state.NextRenewalAt.Format(time.RFC3339)),
			SubscriptionID: &subID,
			Expected:       *state.NextRenewalAt,
			Actual:         now,
			DetectedAt:     now,
		})
	}

	if !sub.Status.Billable() && orderCount > 0 {
		result.AddMismatch(domain.OracleMismatch{
			ID:             domain.MismatchID(result.RunID, "status_mismatch", subID.String()),
			Classification: domain.ClassificationStatusMismatch,
			Severity:       domain.SeverityError,
			Message:        fmt.Sprintf("subscription %s has orders in scope but status %q does not bill", subID, sub.Status),
			SubscriptionID: &subID,
			Expected:       string(oracledomain.SubscriptionStatusActive),
			Actual:         string(sub.Status),
			DetectedAt:     now,
		})
	}
}

// ReconcileRecentOrders sweeps recent subscription-cycle orders. Work is
// checkpointed per order: an interrupted sweep still returns the findings
// accumulated so far.
func (s *Service) ReconcileRecentOrders(ctx context.Context, window time.Duration, limit int) (*domain.ReconciliationResult, error) {
	result := domain.NewResult(uuid.New(), s.clock.Now())

	orders, err := s.repo.GetRecentSubscriptionOrders(ctx, window, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}

	if err := s.reconcileEach(ctx, result, orders); err != nil {
		return nil, err
	}

	result.Finalize(s.clock.Now())
	return result, nil
}

func (s *Service) reconcileEach(ctx context.Context, result *domain.ReconciliationResult, orders []domain.ActualOrder) error {
	for _, order := range orders {
		if ctx.Err() != nil {
			// Each order's findings are independently valid; stop cleanly
			// and let the partial result be finalized and reported.
			s.log.Warn("reconciliation interrupted",
				zap.String("run_id", result.RunID.String()),
				zap.Int("orders_checked", result.OrdersChecked),
			)
			return nil
		}
		child, err := s.ReconcileOrder(ctx, order.OrderID)
		if err != nil {
			return err
		}
		result.Merge(child)
	}
	return nil
}
