// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"fmt"

	watermillsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/alexdrl/zerowater"
	"github.com/rs/zerolog"

	"github.com/mindersec/ghmirror/internal/config"
)

// driverCloser releases whatever resources the pubsub driver holds.
type driverCloser func()

// buildGoChannelDriver backs the bus with an in-process channel. Messages
// do not survive a restart; the batch processor pass covers the gap.
func buildGoChannelDriver(
	ctx context.Context,
	cfg *config.EventConfig,
) (message.Publisher, message.Subscriber, driverCloser, error) {
	logger := zerowater.NewZerologLoggerAdapter(zerolog.Ctx(ctx).With().Logger())

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.GoChannel.BufferSize,
		Persistent:          cfg.GoChannel.PersistEvents,
	}, logger)

	return pubsub, pubsub, func() {}, nil
}

// buildPostgresDriver backs the bus with watermill's Postgres tables, so
// kicks published by one process (the operator CLI included) reach the
// running server.
func buildPostgresDriver(
	ctx context.Context,
	cfg *config.EventConfig,
) (message.Publisher, message.Subscriber, driverCloser, error) {
	db, _, err := cfg.SQLPubSub.Connection.GetDBConnection(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to events database: %w", err)
	}

	logger := zerowater.NewZerologLoggerAdapter(zerolog.Ctx(ctx).With().Logger())

	publisher, err := watermillsql.NewPublisher(
		db,
		watermillsql.PublisherConfig{
			SchemaAdapter:        watermillsql.DefaultPostgreSQLSchema{},
			AutoInitializeSchema: cfg.SQLPubSub.InitSchema,
		},
		logger,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating sql publisher: %w", err)
	}

	subscriber, err := watermillsql.NewSubscriber(
		db,
		watermillsql.SubscriberConfig{
			SchemaAdapter:    watermillsql.DefaultPostgreSQLSchema{},
			OffsetsAdapter:   watermillsql.DefaultPostgreSQLOffsetsAdapter{},
			InitializeSchema: cfg.SQLPubSub.InitSchema,
			AckDeadline:      &cfg.SQLPubSub.AckDeadline,
		},
		logger,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating sql subscriber: %w", err)
	}

	closer := func() {
		if err := db.Close(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("closing events database connection")
		}
	}
	return publisher, subscriber, closer, nil
}
