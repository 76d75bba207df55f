// Package domain contains the reconciliation data contracts: the mismatch
// taxonomy, the per-run accumulator, and the read-only projections of
// persisted billing artifacts used as comparison targets.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	oracledomain "github.com/polarsource/polar-sub007/internal/oracle/domain"
)

// Tolerances are module constants, not per-call knobs. Amount differences at
// or below RoundingToleranceCents are expected rounding noise; above
// SignificantAmountThresholdCents they escalate to errors.
const (
	RoundingToleranceCents          = 1
	SignificantAmountThresholdCents = 100
)

// MismatchSeverity orders findings worst-first for display.
type MismatchSeverity string

const (
	SeverityCritical MismatchSeverity = "critical"
	SeverityError    MismatchSeverity = "error"
	SeverityWarning  MismatchSeverity = "warning"
	SeverityInfo     MismatchSeverity = "info"
)

// Rank maps severity to a comparable weight, higher is worse.
func (s MismatchSeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// MismatchClassification groups mismatches by cause family. Classification
// and severity are independent axes: a tag never implies a fixed severity.
type MismatchClassification string

const (
	ClassificationRoundingDifference MismatchClassification = "rounding_difference"
	ClassificationAmountMismatch     MismatchClassification = "amount_mismatch"
	ClassificationTaxMismatch        MismatchClassification = "tax_mismatch"
	ClassificationDiscountMismatch   MismatchClassification = "discount_mismatch"

	ClassificationMissingLineItem   MismatchClassification = "missing_line_item"
	ClassificationExtraLineItem     MismatchClassification = "extra_line_item"
	ClassificationDuplicateLineItem MismatchClassification = "duplicate_line_item"

	ClassificationStatusMismatch      MismatchClassification = "status_mismatch"
	ClassificationPeriodMismatch      MismatchClassification = "period_mismatch"
	ClassificationRenewalDateMismatch MismatchClassification = "renewal_date_mismatch"

	ClassificationMissingBillingEvent    MismatchClassification = "missing_billing_event"
	ClassificationUnexpectedBillingEvent MismatchClassification = "unexpected_billing_event"
	ClassificationEventOrderMismatch     MismatchClassification = "event_order_mismatch"

	ClassificationPaymentAmountMismatch MismatchClassification = "payment_amount_mismatch"
	ClassificationRefundMismatch        MismatchClassification = "refund_mismatch"

	ClassificationUnknown MismatchClassification = "unknown"
)

// OracleMismatch is one reconciliation finding. Expected/Actual/Difference
// are loosely typed: numeric, boolean or nil depending on what was compared.
type OracleMismatch struct {
	ID               string                 `json:"id"`
	Classification   MismatchClassification `json:"classification"`
	Severity         MismatchSeverity       `json:"severity"`
	Message          string                 `json:"message"`
	SubscriptionID   *snowflake.ID          `json:"subscription_id,omitempty"`
	OrderID          *snowflake.ID          `json:"order_id,omitempty"`
	LineItemStableID string                 `json:"line_item_stable_id,omitempty"`
	Expected         any                    `json:"expected_value"`
	Actual           any                    `json:"actual_value"`
	Difference       any                    `json:"difference"`
	DetectedAt       time.Time              `json:"detected_at"`
	PeriodStart      *time.Time             `json:"period_start,omitempty"`
	PeriodEnd        *time.Time             `json:"period_end,omitempty"`
}

// MismatchID builds a run-scoped mismatch identifier, unique within one
// result: "{run_id}:{kind}[:{stable_id}]". Keying structural findings by
// stable ID keeps re-runs idempotent.
func MismatchID(runID uuid.UUID, kind, stableID string) string {
	id := runID.String() + ":" + kind
	if stableID != "" {
		id += ":" + stableID
	}
	return id
}

// ReconciliationResult accumulates one run's findings. It is a single-writer
// object: only the reconciler mutates it, via AddMismatch and the checked
// counters, until Finalize hands it off as immutable.
type ReconciliationResult struct {
	RunID       uuid.UUID  `json:"run_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	SubscriptionID *snowflake.ID `json:"subscription_id,omitempty"`
	OrderID        *snowflake.ID `json:"order_id,omitempty"`
	PeriodStart    *time.Time    `json:"period_start,omitempty"`
	PeriodEnd      *time.Time    `json:"period_end,omitempty"`

	Mismatches []OracleMismatch `json:"mismatches"`

	OrdersChecked    int `json:"orders_checked"`
	LineItemsChecked int `json:"line_items_checked"`

	CriticalCount int `json:"critical_count"`
	ErrorCount    int `json:"error_count"`
	WarningCount  int `json:"warning_count"`
	InfoCount     int `json:"info_count"`
}

// NewResult starts a run-scoped accumulator.
func NewResult(runID uuid.UUID, startedAt time.Time) *ReconciliationResult {
	return &ReconciliationResult{
		RunID:      runID,
		StartedAt:  startedAt,
		Mismatches: make([]OracleMismatch, 0),
	}
}

// AddMismatch appends a finding and bumps the matching severity counter.
// Counters are maintained incrementally, never recomputed by scanning.
func (r *ReconciliationResult) AddMismatch(m OracleMismatch) {
	r.Mismatches = append(r.Mismatches, m)
	switch m.Severity {
	case SeverityCritical:
		r.CriticalCount++
	case SeverityError:
		r.ErrorCount++
	case SeverityWarning:
		r.WarningCount++
	case SeverityInfo:
		r.InfoCount++
	}
}

// Merge folds a child run into this result: counters are summed and every
// child mismatch is re-added with its original ID, which already embeds the
// child run's RunID.
func (r *ReconciliationResult) Merge(child *ReconciliationResult) {
	if child == nil {
		return
	}
	r.OrdersChecked += child.OrdersChecked
	r.LineItemsChecked += child.LineItemsChecked
	for _, m := range child.Mismatches {
		r.AddMismatch(m)
	}
}

// Finalize sets the completion timestamp; the result is treated as
// immutable afterwards.
func (r *ReconciliationResult) Finalize(now time.Time) {
	if r.CompletedAt == nil {
		completed := now
		r.CompletedAt = &completed
	}
}

// HasMismatches reports whether any finding was recorded.
func (r *ReconciliationResult) HasMismatches() bool {
	return len(r.Mismatches) > 0
}

// HasCriticalMismatches reports whether any critical finding was recorded.
func (r *ReconciliationResult) HasCriticalMismatches() bool {
	return r.CriticalCount > 0
}

// HasErrors reports whether any error-or-worse finding was recorded.
func (r *ReconciliationResult) HasErrors() bool {
	return r.ErrorCount > 0 || r.CriticalCount > 0
}

// WorstSeverity returns the highest severity present, or "" when clean.
func (r *ReconciliationResult) WorstSeverity() MismatchSeverity {
	switch {
	case r.CriticalCount > 0:
		return SeverityCritical
	case r.ErrorCount > 0:
		return SeverityError
	case r.WarningCount > 0:
		return SeverityWarning
	case r.InfoCount > 0:
		return SeverityInfo
	default:
		return ""
	}
}

// Duration reports run duration in seconds, 0 while incomplete.
func (r *ReconciliationResult) Duration() float64 {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt).Seconds()
}

// Scope labels the run for metrics: "order" for single-order work,
// "subscription" when a subscription scope checked multiple orders, "sweep"
// when neither scope was set.
func (r *ReconciliationResult) Scope() string {
	switch {
	case r.OrderID != nil:
		return "order"
	case r.SubscriptionID != nil && r.OrdersChecked > 1:
		return "subscription"
	case r.SubscriptionID != nil:
		return "order"
	default:
		return "sweep"
	}
}

// ActualLineItem is a read-only projection of a persisted order line. It
// carries no entry type or metered breakdown; it exists solely as the
// comparison target.
type ActualLineItem struct {
	OrderItemID snowflake.ID
	OrderID     snowflake.ID
	PriceID     *snowflake.ID
	Label       string
	AmountCents int64
	TaxCents    int64
	Proration   bool
	Currency    string
	PeriodStart *time.Time
	PeriodEnd   *time.Time
}

// ActualOrder is a read-only projection of a persisted order.
type ActualOrder struct {
	OrderID        snowflake.ID
	SubscriptionID *snowflake.ID
	CustomerID     snowflake.ID
	ProductID      snowflake.ID
	BillingReason  oracledomain.BillingReason
	Currency       string

	SubtotalCents       int64
	DiscountCents       int64
	TaxCents            int64
	TotalCents          int64
	AppliedBalanceCents int64
	DueCents            int64

	PeriodStart *time.Time
	PeriodEnd   *time.Time
	CreatedAt   time.Time

	LineItems []ActualLineItem
}
