// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/config"
	"github.com/mindersec/ghmirror/internal/db"
	"github.com/mindersec/ghmirror/internal/events"
	"github.com/mindersec/ghmirror/internal/logger"
	"github.com/mindersec/ghmirror/internal/projections"
	"github.com/mindersec/ghmirror/internal/sync"
	"github.com/mindersec/ghmirror/internal/webhook"
	"github.com/mindersec/ghmirror/internal/writeops"
)

// Outcome reports what processing one delivery did.
type Outcome int

// Processing outcomes.
const (
	// OutcomeSkipped means the delivery was absent, already terminal, or
	// not yet due.
	OutcomeSkipped Outcome = iota
	// OutcomeProcessed means the delivery reached its processed state.
	OutcomeProcessed
	// OutcomeRetried means the delivery was parked for a later attempt.
	OutcomeRetried
	// OutcomeDeadLettered means the delivery exhausted its attempt budget.
	OutcomeDeadLettered
)

// BatchStats summarizes one batch processor pass.
type BatchStats struct {
	Processed    int
	Retried      int
	DeadLettered int
}

// Processor drives deliveries through the processing state machine and
// runs the post-success side effects.
type Processor struct {
	store       db.Store
	evt         events.Publisher
	projections *projections.Maintainer
	reconciler  *writeops.Reconciler
	cfg         config.QueueConfig

	// Overridable in tests for deterministic backoff.
	now    func() time.Time
	jitter func(max time.Duration) time.Duration
}

// NewProcessor creates a delivery processor.
func NewProcessor(store db.Store, evt events.Publisher, cfg config.QueueConfig) *Processor {
	return &Processor{
		store:       store,
		evt:         evt,
		projections: projections.NewMaintainer(store),
		reconciler:  writeops.NewReconciler(),
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		jitter:      randomJitter,
	}
}

// Register subscribes the processor to the kick topic.
func (p *Processor) Register(reg events.Registrar) {
	reg.Register(events.TopicQueueProcessDelivery, p.handleKick)
}

// handleKick processes the delivery named by the message. Errors are
// logged, not returned: the store's state machine owns retries, and a
// bus-level redelivery would race the backoff schedule.
func (p *Processor) handleKick(msg *message.Message) error {
	ctx := msg.Context()
	deliveryID := msg.Metadata.Get(events.DeliveryIdKey)
	if deliveryID == "" {
		zerolog.Ctx(ctx).Error().
			Str("message_id", msg.UUID).
			Msg("kick message without delivery id")
		return nil
	}

	if _, err := p.ProcessDelivery(ctx, deliveryID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("delivery_id", deliveryID).
			Msg("delivery processing failed")
	}
	return nil
}

// ProcessDelivery runs one processing attempt for the delivery. The
// domain mutation and the transition to processed commit in a single
// transaction, so a crash between them cannot lose or double-apply the
// delivery. A dispatch failure parks the delivery for retry with
// exponential backoff, or dead-letters it once the attempt budget is
// exhausted.
func (p *Processor) ProcessDelivery(ctx context.Context, deliveryID string) (Outcome, error) {
	delivery, err := p.store.GetRawDelivery(ctx, deliveryID)
	if errors.Is(err, db.ErrNotFound) {
		zerolog.Ctx(ctx).Debug().
			Str("delivery_id", deliveryID).
			Msg("delivery not found, nothing to process")
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("loading delivery: %w", err)
	}

	switch delivery.ProcessState {
	case db.ProcessStatePending:
	case db.ProcessStateRetry:
		if delivery.NextRetryAt.Valid && delivery.NextRetryAt.Time.After(p.now()) {
			return OutcomeSkipped, nil
		}
	default:
		// processed and failed are terminal for this path.
		return OutcomeSkipped, nil
	}

	attempt := delivery.ProcessAttempts + 1

	// Deliveries without a repository scope carry control events such as
	// installation changes. They have no domain mutation to apply.
	if !delivery.RepositoryID.Valid {
		err := p.store.MarkDeliveryProcessed(ctx, db.MarkDeliveryProcessedParams{
			DeliveryID: deliveryID,
			Attempts:   attempt,
		})
		if err != nil {
			return OutcomeSkipped, fmt.Errorf("marking control delivery processed: %w", err)
		}
		return OutcomeProcessed, nil
	}
	repositoryID := delivery.RepositoryID.Int64

	ts := &logger.TelemetryStore{
		DeliveryID: deliveryID,
		Event:      delivery.EventName,
		Action:     delivery.Action.String,
		Repository: repositoryID,
	}
	ctx = ts.WithTelemetry(ctx)

	dispatchErr := p.store.WithTransaction(ctx, func(qtx db.Querier) error {
		if err := webhook.Dispatch(ctx, qtx, repositoryID, delivery.EventName, delivery.Payload); err != nil {
			return err
		}
		return qtx.MarkDeliveryProcessed(ctx, db.MarkDeliveryProcessedParams{
			DeliveryID: deliveryID,
			Attempts:   attempt,
		})
	})
	if dispatchErr == nil {
		p.postSuccess(ctx, delivery)
		ts.Record(zerolog.Ctx(ctx).Info()).Msg("delivery processed")
		return OutcomeProcessed, nil
	}

	zerolog.Ctx(ctx).Warn().Err(dispatchErr).
		Str("delivery_id", deliveryID).
		Int32("attempt", attempt).
		Msg("delivery attempt failed")

	if int(attempt) >= p.cfg.MaxAttempts {
		return p.deadLetter(ctx, delivery, attempt, dispatchErr)
	}

	err = p.store.MarkDeliveryRetry(ctx, db.MarkDeliveryRetryParams{
		DeliveryID:   deliveryID,
		Attempts:     attempt,
		NextRetryAt:  p.now().Add(p.backoffFor(attempt)),
		ProcessError: dispatchErr.Error(),
	})
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("parking delivery for retry: %w", err)
	}
	return OutcomeRetried, nil
}

// deadLetter freezes the delivery in the dead letter table and removes it
// from the live queue, atomically. If the handoff itself cannot commit the
// delivery is marked failed so RetryAllFailed can drain it later.
func (p *Processor) deadLetter(
	ctx context.Context,
	delivery db.RawWebhookDelivery,
	attempt int32,
	lastErr error,
) (Outcome, error) {
	reason := fmt.Sprintf("Exhausted %d attempts: %s", attempt, lastErr)

	err := p.store.WithTransaction(ctx, func(qtx db.Querier) error {
		err := qtx.InsertDeadLetter(ctx, db.InsertDeadLetterParams{
			ID:           uuid.New(),
			DeliveryID:   delivery.DeliveryID,
			EventName:    delivery.EventName,
			Action:       delivery.Action,
			RepositoryID: delivery.RepositoryID,
			Payload:      delivery.Payload,
			Reason:       reason,
			CreatedAt:    p.now(),
		})
		if err != nil {
			return err
		}
		return qtx.DeleteRawDelivery(ctx, delivery.DeliveryID)
	})
	if err != nil {
		markErr := p.store.MarkDeliveryFailed(ctx, db.MarkDeliveryFailedParams{
			DeliveryID:   delivery.DeliveryID,
			Attempts:     attempt,
			ProcessError: lastErr.Error(),
		})
		if markErr != nil {
			return OutcomeSkipped, fmt.Errorf("dead letter handoff: %w, marking failed: %v", err, markErr)
		}
		return OutcomeSkipped, fmt.Errorf("dead letter handoff: %w", err)
	}

	zerolog.Ctx(ctx).Error().
		Str("delivery_id", delivery.DeliveryID).
		Str("event", delivery.EventName).
		Str("reason", reason).
		Msg("delivery dead-lettered")
	return OutcomeDeadLettered, nil
}

// backoffFor is the wait before the given completed attempt is retried.
// The jitter spreads redelivery bursts after an outage.
func (p *Processor) backoffFor(attempt int32) time.Duration {
	backoff := p.cfg.BaseBackoff
	for i := int32(1); i < attempt; i++ {
		backoff *= 2
	}
	return backoff + p.jitter(backoff/4)
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

// postSuccess runs the side effects of a processed delivery. All of them
// are recomputable from the normalized state, so failures are logged and
// never fail the delivery.
func (p *Processor) postSuccess(ctx context.Context, delivery db.RawWebhookDelivery) {
	repositoryID := delivery.RepositoryID.Int64
	action := delivery.Action.String

	if info, ok := webhook.MapActivity(delivery.EventName, action, delivery.Payload); ok {
		err := p.store.InsertActivityFeedEntry(ctx, db.InsertActivityFeedEntryParams{
			ID:             uuid.New(),
			RepositoryID:   repositoryID,
			ActivityType:   info.ActivityType,
			Title:          info.Title,
			Description:    nullString(info.Description),
			ActorLogin:     nullString(info.ActorLogin),
			ActorAvatarURL: nullString(info.ActorAvatarURL),
			EntityNumber:   nullID(info.EntityNumber),
			CreatedAt:      p.now(),
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("delivery_id", delivery.DeliveryID).
				Msg("failed to append activity feed entry")
		}
	}

	if err := p.projections.UpdateAllProjections(ctx, repositoryID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Int64("repository", repositoryID).
			Msg("projection update failed")
	}

	err := p.reconciler.Reconcile(ctx, p.store, repositoryID, delivery.EventName, action, delivery.Payload)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("delivery_id", delivery.DeliveryID).
			Msg("write operation reconciliation failed")
	}

	p.schedulePullFileSync(ctx, delivery)
}

// pullFileSyncActions are the pull_request actions that can change the
// file diff.
var pullFileSyncActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

func (p *Processor) schedulePullFileSync(ctx context.Context, delivery db.RawWebhookDelivery) {
	if delivery.EventName != "pull_request" || !pullFileSyncActions[delivery.Action.String] {
		return
	}

	var body struct {
		PullRequest struct {
			Number int64 `json:"number"`
			Head   struct {
				Sha string `json:"sha"`
			} `json:"head"`
		} `json:"pull_request"`
	}
	if err := json.Unmarshal(delivery.Payload, &body); err != nil || body.PullRequest.Number == 0 {
		return
	}

	msg, err := sync.NewPullFilesMessage(sync.PullFilesPayload{
		RepositoryID:      delivery.RepositoryID.Int64,
		PullRequestNumber: body.PullRequest.Number,
		HeadSha:           body.PullRequest.Head.Sha,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to build pull files message")
		return
	}
	if err := p.evt.Publish(events.TopicQueueSyncPullFiles, msg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("delivery_id", delivery.DeliveryID).
			Msg("failed to schedule pull request file sync")
	}
}

// ProcessAllPending drains up to one batch of pending deliveries, oldest
// first. It backs the interval schedule and doubles as the recovery path
// for deliveries whose kick was lost.
func (p *Processor) ProcessAllPending(ctx context.Context) (BatchStats, error) {
	pending, err := p.store.ListPendingDeliveries(ctx, int32(p.cfg.BatchSize))
	if err != nil {
		return BatchStats{}, fmt.Errorf("listing pending deliveries: %w", err)
	}

	var stats BatchStats
	for _, delivery := range pending {
		outcome, err := p.ProcessDelivery(ctx, delivery.DeliveryID)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("delivery_id", delivery.DeliveryID).
				Msg("batch processing failed for delivery")
			continue
		}
		switch outcome {
		case OutcomeProcessed:
			stats.Processed++
		case OutcomeRetried:
			stats.Retried++
		case OutcomeDeadLettered:
			stats.DeadLettered++
		}
	}

	if len(pending) > 0 {
		zerolog.Ctx(ctx).Info().
			Int("processed", stats.Processed).
			Int("retried", stats.Retried).
			Int("dead_lettered", stats.DeadLettered).
			Msg("processed pending delivery batch")
	}
	return stats, nil
}

// PromoteRetryEvents moves due retry deliveries back to pending and kicks
// the processor for each.
func (p *Processor) PromoteRetryEvents(ctx context.Context) (int, error) {
	due, err := p.store.ListRetryDeliveriesDue(ctx, db.ListRetryDeliveriesDueParams{
		Now:   p.now(),
		Limit: int32(p.cfg.BatchSize),
	})
	if err != nil {
		return 0, fmt.Errorf("listing due retries: %w", err)
	}

	promoted := 0
	for _, delivery := range due {
		if err := p.store.PromoteRetryDelivery(ctx, delivery.DeliveryID); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("delivery_id", delivery.DeliveryID).
				Msg("failed to promote retry delivery")
			continue
		}
		promoted++

		if err := p.evt.Publish(events.TopicQueueProcessDelivery,
			newProcessMessage(delivery.DeliveryID, delivery.EventName)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("delivery_id", delivery.DeliveryID).
				Msg("failed to publish processing kick for promoted delivery")
		}
	}
	return promoted, nil
}
