package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/lensworks/lensworks/internal/jobs"
	"github.com/lensworks/lensworks/internal/sales/orders"
	"github.com/lensworks/lensworks/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSaleOrderStatusChanged records an applied sale order transition.
	TaskSaleOrderStatusChanged = "saleorder:status_changed"
)

// StatusChangedPayload is the wire form of orders.StatusChange.
type StatusChangedPayload struct {
	OrderID int64     `json:"order_id"`
	OrderNo string    `json:"order_no"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	ActorID int64     `json:"actor_id"`
	At      time.Time `json:"at"`
}

// NewStatusChangedTask constructs the task for a transition. The task ID is
// derived from the order and target status so a retried enqueue is rejected
// by asynq instead of producing a second audit row.
func NewStatusChangedTask(change orders.StatusChange) (*asynq.Task, error) {
	payload := StatusChangedPayload{
		OrderID: change.OrderID,
		OrderNo: change.OrderNo,
		From:    string(change.From),
		To:      string(change.To),
		ActorID: change.ActorID,
		At:      change.At,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSaleOrderStatusChanged, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(statusChangedTaskID(change.OrderID, payload.To)),
		asynq.MaxRetry(5),
	), nil
}

func statusChangedTaskID(orderID int64, to string) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("SO:%d:%s", orderID, to))).String()
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StatusChangedHandler writes the audit trail for sale order transitions.
type StatusChangedHandler struct {
	audit   AuditRecorder
	metrics *jobmetrics.Metrics
}

// NewStatusChangedHandler constructs the handler. metrics may be nil.
func NewStatusChangedHandler(audit AuditRecorder, metrics *jobmetrics.Metrics) *StatusChangedHandler {
	return &StatusChangedHandler{audit: audit, metrics: metrics}
}

// ProcessTask implements asynq.Handler.
func (h *StatusChangedHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskSaleOrderStatusChanged)
	var payload StatusChangedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode status change: %v: %w", err, asynq.SkipRetry))
	}
	if payload.OrderID <= 0 || payload.To == "" {
		return tracker.End(fmt.Errorf("status change without order or target: %w", asynq.SkipRetry))
	}
	err := h.audit.Record(ctx, shared.AuditLog{
		ActorID:  payload.ActorID,
		Action:   "sale_order.status_changed",
		Entity:   "sale_order",
		EntityID: strconv.FormatInt(payload.OrderID, 10),
		Meta: map[string]any{
			"order_no": payload.OrderNo,
			"from":     payload.From,
			"to":       payload.To,
		},
		At: payload.At,
	})
	if err != nil {
		err = fmt.Errorf("record status change: %w", err)
	}
	return tracker.End(err)
}
