// Package report turns finished reconciliation results into operator
// signals: structured logs, Prometheus metrics and alert jobs.
package report

import (
	"context"
	"time"

	"github.com/polarsource/polar-sub007/internal/alertqueue"
	"github.com/polarsource/polar-sub007/internal/config"
	"github.com/polarsource/polar-sub007/internal/reconcile/domain"
	"github.com/polarsource/polar-sub007/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Reporter struct {
	log     *zap.Logger
	metrics *telemetry.Metrics
	alerts  alertqueue.Enqueuer

	metricsEnabled bool
	alertsEnabled  bool
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Metrics *telemetry.Metrics
	Alerts  alertqueue.Enqueuer
	Config  config.Config
}

func NewReporter(p Params) *Reporter {
	return &Reporter{
		log:            p.Log.Named("oracle.report"),
		metrics:        p.Metrics,
		alerts:         p.Alerts,
		metricsEnabled: p.Config.Oracle.MetricsEnabled,
		alertsEnabled:  p.Config.Oracle.AlertsEnabled,
	}
}

// Report emits every operator signal for one finished run. Reporting is
// best-effort: a failed alert enqueue is logged, never propagated, so the
// reconciliation outcome survives observability outages.
func (r *Reporter) Report(ctx context.Context, result *domain.ReconciliationResult) {
	if result == nil {
		return
	}

	r.logSummary(result)
	for _, m := range result.Mismatches {
		r.logMismatch(result, m)
	}

	if r.metricsEnabled {
		r.emitMetrics(result)
	}

	if r.alertsEnabled && result.HasErrors() {
		if result.HasCriticalMismatches() {
			if err := r.alerts.EnqueueAlert(ctx, result); err != nil {
				r.log.Error("failed to enqueue alert",
					zap.String("run_id", result.RunID.String()),
					zap.Error(err),
				)
			}
		} else {
			// Error-severity findings warrant an on-call visible log but do
			// not page.
			r.log.Error("reconciliation errors below alert threshold",
				zap.String("run_id", result.RunID.String()),
				zap.Int("error_count", result.ErrorCount),
			)
		}
	}
}

func (r *Reporter) logSummary(result *domain.ReconciliationResult) {
	fields := []zap.Field{
		zap.String("run_id", result.RunID.String()),
		zap.String("scope", result.Scope()),
		zap.Int("orders_checked", result.OrdersChecked),
		zap.Int("line_items_checked", result.LineItemsChecked),
		zap.Int("mismatches", len(result.Mismatches)),
		zap.Int("critical_count", result.CriticalCount),
		zap.Int("error_count", result.ErrorCount),
		zap.Int("warning_count", result.WarningCount),
		zap.Int("info_count", result.InfoCount),
		zap.Float64("duration_seconds", result.Duration()),
	}
	if result.SubscriptionID != nil {
		fields = append(fields, zap.String("subscription_id", result.SubscriptionID.String()))
	}
	if result.OrderID != nil {
		fields = append(fields, zap.String("order_id", result.OrderID.String()))
	}

	switch {
	case result.HasCriticalMismatches():
		r.log.Error("reconciliation found critical mismatches", fields...)
	case result.HasErrors():
		r.log.Warn("reconciliation found mismatches", fields...)
	case result.HasMismatches():
		r.log.Info("reconciliation found minor mismatches", fields...)
	default:
		r.log.Debug("reconciliation clean", fields...)
	}
}

func (r *Reporter) logMismatch(result *domain.ReconciliationResult, m domain.OracleMismatch) {
	fields := []zap.Field{
		zap.String("run_id", result.RunID.String()),
		zap.String("mismatch_id", m.ID),
		zap.String("classification", string(m.Classification)),
		zap.String("severity", string(m.Severity)),
		zap.Any("expected", m.Expected),
		zap.Any("actual", m.Actual),
		zap.Any("difference", m.Difference),
	}
	if m.SubscriptionID != nil {
		fields = append(fields, zap.String("subscription_id", m.SubscriptionID.String()))
	}
	if m.OrderID != nil {
		fields = append(fields, zap.String("order_id", m.OrderID.String()))
	}
	if m.LineItemStableID != "" {
		fields = append(fields, zap.String("line_item_stable_id", m.LineItemStableID))
	}

	switch m.Severity {
	case domain.SeverityCritical, domain.SeverityError:
		r.log.Error(m.Message, fields...)
	case domain.SeverityWarning:
		r.log.Warn(m.Message, fields...)
	default:
		r.log.Info(m.Message, fields...)
	}
}

func (r *Reporter) emitMetrics(result *domain.ReconciliationResult) {
	r.metrics.ObserveRun(
		runStatus(result),
		result.Scope(),
		result.OrdersChecked,
		result.LineItemsChecked,
		time.Duration(result.Duration()*float64(time.Second)),
	)
	for _, m := range result.Mismatches {
		r.metrics.ObserveMismatch(string(m.Classification), string(m.Severity))
		if diff, ok := m.Difference.(int64); ok && diff != 0 {
			r.metrics.ObserveAmountDiscrepancy(string(m.Classification), diff)
		}
	}
}

// runStatus labels a run by its worst finding. Info-only runs count as
// clean: rounding noise is expected and should not page anyone.
func runStatus(result *domain.ReconciliationResult) string {
	switch result.WorstSeverity() {
	case domain.SeverityCritical:
		return "critical"
	case domain.SeverityError:
		return "error"
	case domain.SeverityWarning:
		return "warning"
	default:
		return "clean"
	}
}
