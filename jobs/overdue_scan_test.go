package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/observability"
)

type fakeCounter struct {
	count       int
	countErr    error
	invalidated int
}

func (f *fakeCounter) CountOverdueInstallments(context.Context) (int, error) {
	return f.count, f.countErr
}

func (f *fakeCounter) Invalidate(context.Context) error {
	f.invalidated++
	return nil
}

func TestOverdueScanHandle(t *testing.T) {
	counter := &fakeCounter{count: 7}
	job := NewOverdueScanJob(counter, observability.NewMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	task, err := NewOverdueScanTask("test")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, counter.invalidated, "scan must bump the reporting cache")
}

func TestOverdueScanPropagatesCountError(t *testing.T) {
	counter := &fakeCounter{countErr: errors.New("db down")}
	job := NewOverdueScanJob(counter, observability.NewMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	task, err := NewOverdueScanTask("test")
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.Equal(t, 0, counter.invalidated)
}

func TestOverdueScanSkipsRetryOnBadPayload(t *testing.T) {
	counter := &fakeCounter{}
	job := NewOverdueScanJob(counter, observability.NewMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	task := asynq.NewTask(TaskFeesOverdueScan, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
