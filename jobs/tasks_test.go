package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensworks/lensworks/internal/sales/lifecycle"
	"github.com/lensworks/lensworks/internal/sales/orders"
	"github.com/lensworks/lensworks/internal/shared"
)

type recordingAudit struct {
	logs []shared.AuditLog
	err  error
}

func (r *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	if r.err != nil {
		return r.err
	}
	r.logs = append(r.logs, log)
	return nil
}

func sampleChange() orders.StatusChange {
	return orders.StatusChange{
		OrderID: 12,
		OrderNo: "SO-2401100001",
		From:    lifecycle.StatusDraft,
		To:      lifecycle.StatusConfirmed,
		ActorID: 42,
		At:      time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC),
	}
}

func TestNewStatusChangedTaskPayload(t *testing.T) {
	task, err := NewStatusChangedTask(sampleChange())
	require.NoError(t, err)
	assert.Equal(t, TaskSaleOrderStatusChanged, task.Type())

	var payload StatusChangedPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, int64(12), payload.OrderID)
	assert.Equal(t, "DRAFT", payload.From)
	assert.Equal(t, "CONFIRMED", payload.To)
	assert.Equal(t, int64(42), payload.ActorID)
}

func TestStatusChangedTaskIDIsDeterministic(t *testing.T) {
	a := statusChangedTaskID(12, "CONFIRMED")
	assert.Equal(t, a, statusChangedTaskID(12, "CONFIRMED"))
	assert.NotEqual(t, a, statusChangedTaskID(12, "IN_PRODUCTION"))
	assert.NotEqual(t, a, statusChangedTaskID(13, "CONFIRMED"))
}

func TestStatusChangedHandlerRecordsAudit(t *testing.T) {
	audit := &recordingAudit{}
	h := NewStatusChangedHandler(audit, nil)
	task, err := NewStatusChangedTask(sampleChange())
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Len(t, audit.logs, 1)
	log := audit.logs[0]
	assert.Equal(t, "sale_order.status_changed", log.Action)
	assert.Equal(t, "sale_order", log.Entity)
	assert.Equal(t, "12", log.EntityID)
	assert.Equal(t, int64(42), log.ActorID)
	assert.Equal(t, "CONFIRMED", log.Meta["to"])
}

func TestStatusChangedHandlerSkipsMalformedPayload(t *testing.T) {
	audit := &recordingAudit{}
	h := NewStatusChangedHandler(audit, nil)

	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskSaleOrderStatusChanged, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TaskSaleOrderStatusChanged, []byte(`{"order_id":0}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, audit.logs)
}

func TestStatusChangedHandlerRetriesStoreFailure(t *testing.T) {
	audit := &recordingAudit{err: errors.New("db down")}
	h := NewStatusChangedHandler(audit, nil)
	task, err := NewStatusChangedTask(sampleChange())
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	assert.Error(t, err)
}
