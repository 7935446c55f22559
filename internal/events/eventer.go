// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events wires the watermill router that carries queue and sync
// kicks between components.
package events

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/alexdrl/zerowater"
	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/config"
)

// Eventer owns the watermill router and the pubsub driver behind it. All
// queue and sync kicks flow through it.
type Eventer struct {
	router     *message.Router
	publisher  message.Publisher
	subscriber message.Subscriber
	closer     driverCloser
}

var _ Interface = (*Eventer)(nil)

// NewEventer creates an Eventer object which isolates the watermill setup code
func NewEventer(ctx context.Context, cfg *config.EventConfig) (*Eventer, error) {
	if cfg == nil {
		return nil, errors.New("event config is nil")
	}

	l := zerowater.NewZerologLoggerAdapter(
		zerolog.Ctx(ctx).With().Str("component", "watermill").Logger())

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.RouterCloseTimeout,
	}, l)
	if err != nil {
		return nil, err
	}

	pub, sub, cl, err := instantiateDriver(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed instantiating driver: %w", err)
	}

	poisonQueueMiddleware, err := middleware.PoisonQueue(pub, DeadLetterQueueTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create poison queue: %w", err)
	}

	router.AddMiddleware(
		// Propagates the correlation id from incoming to produced messages.
		middleware.CorrelationID,

		// When a handler fails for all retries, the message is sent to the
		// dead letter topic instead of being nacked and redelivered forever.
		poisonQueueMiddleware,

		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: time.Millisecond * 100,
			Logger:          l,
		}.Middleware,

		// Turns handler panics into errors for the Retry middleware.
		middleware.Recoverer,
	)

	return &Eventer{
		router:     router,
		publisher:  pub,
		subscriber: sub,
		closer:     cl,
	}, nil
}

func instantiateDriver(
	ctx context.Context,
	cfg *config.EventConfig,
) (message.Publisher, message.Subscriber, driverCloser, error) {
	switch cfg.Driver {
	case config.GoChannelDriver:
		zerolog.Ctx(ctx).Info().Msg("Using go-channel driver")
		return buildGoChannelDriver(ctx, cfg)
	case config.SQLDriver:
		zerolog.Ctx(ctx).Info().Msg("Using SQL driver")
		return buildPostgresDriver(ctx, cfg)
	default:
		return nil, nil, nil, fmt.Errorf("unknown driver %s", cfg.Driver)
	}
}

// Close closes the router
func (e *Eventer) Close() error {
	e.closer()
	return e.router.Close()
}

// Run runs the router, blocks until the router is closed
func (e *Eventer) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}

// Running returns a channel which allows you to wait until the
// event router has started.
func (e *Eventer) Running() chan struct{} {
	return e.router.Running()
}

// Publish implements message.Publisher
func (e *Eventer) Publish(topic string, messages ...*message.Message) error {
	pc, _, _, ok := runtime.Caller(1)
	details := runtime.FuncForPC(pc)

	for idx := range messages {
		msg := messages[idx]
		if ok && details != nil {
			e.router.Logger().Debug("Publishing message", watermill.LogFields{
				"message_uuid": msg.UUID,
				"topic":        topic,
				"handler":      details.Name(),
			})
		}
		msg.Metadata.Set(PublishedKey, strconv.FormatInt(time.Now().UTC().UnixMilli(), 10))
	}

	return e.publisher.Publish(topic, messages...)
}

// Register subscribes to a topic and handles incoming messages
func (e *Eventer) Register(
	topic string,
	handler message.NoPublishHandlerFunc,
	mdw ...message.HandlerMiddleware,
) {
	funcName := fmt.Sprintf("%s-%s", runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name(), topic)
	hand := e.router.AddNoPublisherHandler(
		funcName,
		topic,
		e.subscriber,
		func(msg *message.Message) error {
			if err := handler(msg); err != nil {
				retriable := errors.Is(err, ErrRetriable)
				e.router.Logger().Error("Found error handling message", err, watermill.LogFields{
					"message_uuid": msg.UUID,
					"topic":        topic,
					"handler":      funcName,
					"retriable":    retriable,
				})

				if retriable {
					// if the error is retriable, return it so that the message is retried
					return err
				}
				// otherwise, we've done all we can, so return nil so that the message is acked
				return nil
			}

			return nil
		},
	)

	for _, m := range mdw {
		hand.AddMiddleware(m)
	}
}

// ConsumeEvents allows registration of multiple consumers easily
func (e *Eventer) ConsumeEvents(consumers ...Consumer) {
	for _, c := range consumers {
		c.Register(e)
	}
}
