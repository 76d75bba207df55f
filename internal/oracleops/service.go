// Package oracleops is the entrypoint façade callers use: it runs a
// reconciliation, hands the result to the reporter, and offers the
// pre-creation sanity check for order pipelines.
package oracleops

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/polarsource/polar-sub007/internal/clock"
	"github.com/polarsource/polar-sub007/internal/reconcile/domain"
	"github.com/polarsource/polar-sub007/internal/report"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Warning tolerance for the pre-creation subtotal check, in cents.
const subtotalWarnToleranceCents = 100

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	recon    domain.Service
	reporter *report.Reporter
	clock    clock.Clock
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     domain.Repository
	Recon    domain.Service
	Reporter *report.Reporter
	Clock    clock.Clock
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("oracle.ops"),
		repo:     p.Repo,
		recon:    p.Recon,
		reporter: p.Reporter,
		clock:    p.Clock,
	}
}

// Option adjusts how a single run is executed.
type Option func(*runOptions)

type runOptions struct {
	report bool
}

// WithoutReport suppresses reporting for the run; callers get the raw
// result and decide themselves what to do with it.
func WithoutReport() Option {
	return func(o *runOptions) { o.report = false }
}

func buildOptions(opts []Option) runOptions {
	options := runOptions{report: true}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// ReconcileOrder reconciles one order and reports the outcome.
func (s *Service) ReconcileOrder(ctx context.Context, orderID snowflake.ID, opts ...Option) (*domain.ReconciliationResult, error) {
	options := buildOptions(opts)

	result, err := s.recon.ReconcileOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if options.report {
		s.reporter.Report(ctx, result)
	}
	return result, nil
}

// ReconcileSubscription reconciles every order of a subscription within the
// optional period bounds and reports the outcome.
func (s *Service) ReconcileSubscription(ctx context.Context, subscriptionID snowflake.ID, periodStart, periodEnd *time.Time, opts ...Option) (*domain.ReconciliationResult, error) {
	options := buildOptions(opts)

	result, err := s.recon.ReconcileSubscription(ctx, subscriptionID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	if options.report {
		s.reporter.Report(ctx, result)
	}
	return result, nil
}

// RunSweep reconciles recent subscription orders within the window and
// reports the outcome.
func (s *Service) RunSweep(ctx context.Context, window time.Duration, limit int, opts ...Option) (*domain.ReconciliationResult, error) {
	options := buildOptions(opts)

	result, err := s.recon.ReconcileRecentOrders(ctx, window, limit)
	if err != nil {
		return nil, err
	}
	if options.report {
		s.reporter.Report(ctx, result)
	}
	return result, nil
}

// ValidateOrderBeforeCreate sanity-checks a proposed order before it is
// written. It returns human-readable warnings and never blocks creation:
// any internal failure degrades to an empty warning list.
func (s *Service) ValidateOrderBeforeCreate(ctx context.Context, subscriptionID snowflake.ID, proposedSubtotalCents int64, itemCount int) []string {
	warnings := make([]string, 0, 2)

	if itemCount == 0 {
		warnings = append(warnings, "order has no line items")
	}

	sub, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		s.log.Warn("pre-creation validation skipped, subscription lookup failed",
			zap.String("subscription_id", subscriptionID.String()),
			zap.Error(err),
		)
		return warnings
	}
	if sub == nil {
		warnings = append(warnings, fmt.Sprintf("subscription %s not found", subscriptionID))
		return warnings
	}

	if !sub.Status.Billable() {
		warnings = append(warnings, fmt.Sprintf("subscription status %q is not billable", sub.Status))
	}

	diff := proposedSubtotalCents - sub.AmountCents
	if diff < 0 {
		diff = -diff
	}
	if diff > subtotalWarnToleranceCents {
		warnings = append(warnings, fmt.Sprintf(
			"proposed subtotal %d differs from subscription amount %d by %d cents",
			proposedSubtotalCents, sub.AmountCents, diff,
		))
	}

	balance, err := s.repo.GetCustomerBalance(ctx, sub.CustomerID)
	if err != nil {
		s.log.Warn("pre-creation validation skipped balance check, customer lookup failed",
			zap.String("customer_id", sub.CustomerID.String()),
			zap.Error(err),
		)
	} else if balance < 0 {
		warnings = append(warnings, fmt.Sprintf(
			"customer %s holds %d cents of standing credit; the order's amount due should reflect it",
			sub.CustomerID, -balance,
		))
	}

	if len(warnings) > 0 {
		s.log.Warn("pre-creation validation raised warnings",
			zap.String("subscription_id", subscriptionID.String()),
			zap.Strings("warnings", warnings),
		)
	}
	return warnings
}
