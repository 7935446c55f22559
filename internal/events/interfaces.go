// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Handler is the function signature for topic handlers. It aliases the
// watermill type so consumers do not import watermill directly.
type Handler = message.NoPublishHandlerFunc

// Registrar is the surface consumers use to subscribe their handlers.
type Registrar interface {
	// Register requests that handler is called for each message on topic.
	// Registering the same topic and handler pair twice delivers every
	// message twice.
	Register(topic string, handler Handler, mdw ...message.HandlerMiddleware)
}

// Consumer is implemented by components that subscribe to topics. The
// processor and the sync worker register themselves through it.
type Consumer interface {
	Register(Registrar)
}

// Publisher is the sending half of the bus. Components that only publish
// kicks depend on this rather than the full Eventer.
type Publisher interface {
	Publish(topic string, messages ...*message.Message) error
}

// Service covers the lifecycle of the event router.
type Service interface {
	// ConsumeEvents registers each consumer with the router.
	ConsumeEvents(consumers ...Consumer)
	// Close stops the router and releases the pubsub driver.
	Close() error
	// Run blocks until the router is closed.
	Run(ctx context.Context) error
	// Running is closed once the router has started.
	Running() chan struct{}
}

// Interface combines Publisher, Registrar and Service for callers that own
// the whole eventer.
type Interface interface {
	Publisher
	Registrar
	Service
}
