package actionqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/metric"
)

// Replayer attempts one action against its remote endpoint. A nil return
// means the remote effect is confirmed (2xx); any error leaves the action
// queued.
type Replayer interface {
	Replay(ctx context.Context, action *QueuedAction) error
}

// Queue is the offline action queue: durable store plus replay policy.
type Queue struct {
	store    Store
	replayer Replayer
	metrics  *metric.Metrics
	logger   *slog.Logger

	flushing atomic.Bool
}

// New creates a queue. metrics may be nil (tests).
func New(store Store, replayer Replayer, metrics *metric.Metrics, logger *slog.Logger) (*Queue, error) {
	if store == nil {
		return nil, errors.WrapInvalid(nil, "Queue", "New", "store cannot be nil")
	}
	if replayer == nil {
		return nil, errors.WrapInvalid(nil, "Queue", "New", "replayer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		store:    store,
		replayer: replayer,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Enqueue appends an action. It touches only the durable store, never the
// remote network, so it cannot block on connectivity.
func (q *Queue) Enqueue(ctx context.Context, actionType string, payload json.RawMessage) (*QueuedAction, error) {
	action, err := q.store.Append(ctx, actionType, payload)
	if err != nil {
		return nil, errors.Wrap(err, "Queue", "Enqueue", "append action")
	}

	q.logger.Info("action queued", "id", action.ID, "type", action.Type)
	if q.metrics != nil {
		q.metrics.ActionsEnqueued.WithLabelValues(action.Type).Inc()
	}
	q.updateDepth(ctx)
	return action, nil
}

// Depth returns the number of pending actions.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	return q.store.Depth(ctx)
}

// Flush replays pending actions in id order against the remote endpoint.
// The working set is a snapshot taken at flush start; actions enqueued
// mid-flush wait for the next cycle. Each confirmed (2xx) action is deleted
// before the next is attempted; the first failure halts the cycle and the
// remainder stays queued. An empty queue is a no-op. Only one flush runs at
// a time: a concurrent call returns errors.ErrFlushInProgress.
//
// Returns the number of actions confirmed this cycle.
func (q *Queue) Flush(ctx context.Context) (int, error) {
	if !q.flushing.CompareAndSwap(false, true) {
		return 0, errors.WrapInvalid(errors.ErrFlushInProgress, "Queue", "Flush", "check flush state")
	}
	defer q.flushing.Store(false)
	defer q.updateDepth(ctx)

	snapshot, err := q.store.Snapshot(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "Queue", "Flush", "snapshot queue")
	}
	if len(snapshot) == 0 {
		q.recordFlush("empty")
		return 0, nil
	}

	q.logger.Info("flush started", "pending", len(snapshot))

	confirmed := 0
	for _, action := range snapshot {
		if err := q.replayer.Replay(ctx, action); err != nil {
			// Halt here: later actions may depend on this one.
			q.logger.Warn("replay failed, halting flush",
				"id", action.ID, "type", action.Type, "error", err)
			q.recordReplay(action.Type, "failed")
			q.recordFlush("halted")
			return confirmed, errors.WrapTransient(
				fmt.Errorf("action %d (%s): %w", action.ID, action.Type, err),
				"Queue", "Flush", "replay halted")
		}

		if err := q.store.Confirm(ctx, action.ID); err != nil {
			q.recordFlush("halted")
			return confirmed, errors.Wrap(err, "Queue", "Flush",
				fmt.Sprintf("confirm action %d", action.ID))
		}
		q.recordReplay(action.Type, "confirmed")
		confirmed++
	}

	q.logger.Info("flush drained", "confirmed", confirmed)
	q.recordFlush("drained")
	return confirmed, nil
}

func (q *Queue) updateDepth(ctx context.Context) {
	if q.metrics == nil {
		return
	}
	if depth, err := q.store.Depth(ctx); err == nil {
		q.metrics.QueueDepth.Set(float64(depth))
	}
}

func (q *Queue) recordReplay(actionType, status string) {
	if q.metrics != nil {
		q.metrics.ActionsReplayed.WithLabelValues(actionType, status).Inc()
	}
}

func (q *Queue) recordFlush(outcome string) {
	if q.metrics != nil {
		q.metrics.FlushCycles.WithLabelValues(outcome).Inc()
	}
}
