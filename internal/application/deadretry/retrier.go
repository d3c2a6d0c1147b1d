package deadretry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/dropsync/backend/internal/domain/integration"
	"github.com/dropsync/backend/internal/infrastructure/powerbody"
)

// ErrNothingPending indicates the queue holds no pending record
var ErrNothingPending = errors.New("deadretry: no pending dead letters")

// Submitter is the supplier call a replayed order goes through. It is the
// same submission path a fresh order takes.
type Submitter interface {
	CreateOrder(ctx context.Context, order *powerbody.OrderRequest) (integration.Outcome, error)
}

// Result reports one replay
type Result struct {
	// Record is the dead letter that was replayed
	Record *integration.DeadLetterRecord
	// Outcome is the supplier's answer, empty when the payload never
	// reached it
	Outcome integration.Outcome
	// Processed is true when the record transitioned to Processed
	Processed bool
}

// Retrier replays dead-lettered order submissions. A record is claimed
// before processing so two concurrent invocations cannot replay the same
// order twice.
type Retrier struct {
	queue    integration.DeadLetterQueue
	supplier Submitter
	mappings integration.MappingStore
	logger   *zap.Logger
}

// New creates a dead-letter retrier
func New(queue integration.DeadLetterQueue, supplier Submitter, mappings integration.MappingStore, logger *zap.Logger) *Retrier {
	return &Retrier{
		queue:    queue,
		supplier: supplier,
		mappings: mappings,
		logger:   logger.Named("deadretry"),
	}
}

// RetryMostRecent claims the most recent pending record and replays it
func (r *Retrier) RetryMostRecent(ctx context.Context) (*Result, error) {
	pending, err := r.queue.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrNothingPending
	}
	return r.retry(ctx, pending[0])
}

// RetryAll replays every pending record, most recent first, and returns the
// per-record results. One record's failure does not stop the rest.
func (r *Retrier) RetryAll(ctx context.Context) ([]*Result, error) {
	pending, err := r.queue.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(pending))
	for _, record := range pending {
		result, err := r.retry(ctx, record)
		if err != nil {
			if errors.Is(err, integration.ErrDeadLetterClaimed) {
				// Another invocation owns it
				continue
			}
			r.logger.Error("replay failed", zap.String("id", record.ID.String()), zap.Error(err))
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// retry claims and replays a single record
func (r *Retrier) retry(ctx context.Context, record *integration.DeadLetterRecord) (*Result, error) {
	claimed, err := r.queue.Claim(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	result := &Result{Record: claimed}

	var request powerbody.OrderRequest
	if err := json.Unmarshal(claimed.Payload, &request); err != nil {
		// The payload was never a valid request; replaying it again can
		// never succeed
		r.logger.Error("dead letter payload undecodable",
			zap.String("id", claimed.ID.String()), zap.Error(err))
		if markErr := r.queue.MarkFailed(ctx, claimed.ID); markErr != nil {
			return nil, markErr
		}
		return result, nil
	}

	outcome, err := r.supplier.CreateOrder(ctx, &request)
	if err != nil {
		r.logger.Warn("replay submission failed",
			zap.String("id", claimed.ID.String()),
			zap.String("order_id", request.ID),
			zap.Error(err))
		if markErr := r.queue.MarkFailed(ctx, claimed.ID); markErr != nil {
			return nil, markErr
		}
		return result, nil
	}
	result.Outcome = outcome

	if !outcome.Accepted() {
		if markErr := r.queue.MarkFailed(ctx, claimed.ID); markErr != nil {
			return nil, markErr
		}
		return result, nil
	}

	if err := r.recordMapping(ctx, &request); err != nil {
		return nil, err
	}
	if err := r.queue.MarkProcessed(ctx, claimed.ID); err != nil {
		return nil, err
	}
	result.Processed = true

	r.logger.Info("dead letter replayed",
		zap.String("id", claimed.ID.String()),
		zap.String("order_id", request.ID),
		zap.String("outcome", outcome.String()))
	return result, nil
}

// recordMapping mirrors what the order orchestrator does after a successful
// submission.
func (r *Retrier) recordMapping(ctx context.Context, request *powerbody.OrderRequest) error {
	orderID, err := strconv.ParseInt(request.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("deadretry: order ID %q not numeric: %w", request.ID, err)
	}
	return r.mappings.UpsertMapping(ctx, integration.MappingKindOrder, orderID, request.ID)
}
