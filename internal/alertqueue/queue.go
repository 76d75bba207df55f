// Package alertqueue hands critical reconciliation findings to the alerting
// worker over a Redis list. Delivery and formatting of alerts happen
// downstream; this package only enqueues.
package alertqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/polarsource/polar-sub007/internal/reconcile/domain"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	alertListKey = "billing_oracle:alerts"
	alertTask    = "billing_oracle.send_alert"
)

// Job is the wire payload pushed onto the alert list.
type Job struct {
	Task     string                       `json:"task"`
	RunID    uuid.UUID                    `json:"run_id"`
	Severity domain.MismatchSeverity      `json:"severity"`
	QueuedAt time.Time                    `json:"queued_at"`
	Result   *domain.ReconciliationResult `json:"result"`
}

// Enqueuer accepts reconciliation results for asynchronous alerting.
type Enqueuer interface {
	EnqueueAlert(ctx context.Context, result *domain.ReconciliationResult) error
}

// Queue pushes alert jobs onto Redis. A nil client makes every enqueue a
// logged no-op, so environments without Redis still run reconciliation.
type Queue struct {
	client *redis.Client
	log    *zap.Logger
}

func NewQueue(client *redis.Client, log *zap.Logger) *Queue {
	return &Queue{
		client: client,
		log:    log.Named("alertqueue"),
	}
}

func (q *Queue) EnqueueAlert(ctx context.Context, result *domain.ReconciliationResult) error {
	if result == nil {
		return nil
	}
	if q.client == nil {
		q.log.Warn("alert queue not configured, dropping alert",
			zap.String("run_id", result.RunID.String()),
		)
		return nil
	}

	job := Job{
		Task:     alertTask,
		RunID:    result.RunID,
		Severity: result.WorstSeverity(),
		QueuedAt: time.Now().UTC(),
		Result:   result,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, alertListKey, payload).Err(); err != nil {
		return err
	}

	q.log.Info("alert enqueued",
		zap.String("run_id", result.RunID.String()),
		zap.String("severity", string(job.Severity)),
	)
	return nil
}
