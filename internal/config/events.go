// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"time"
)

// Supported event driver names.
const (
	GoChannelDriver = "go-channel"
	SQLDriver       = "sql"
)

// EventConfig is the configuration for the mirror's eventing system.
type EventConfig struct {
	// Driver is the driver used to deliver events
	Driver string `mapstructure:"driver" default:"go-channel"`
	// RouterCloseTimeout is the timeout for closing the router
	RouterCloseTimeout time.Duration `mapstructure:"router_close_timeout" default:"10s"`
	// GoChannel is the configuration for the go channel event driver
	GoChannel GoChannelEventConfig `mapstructure:"go-channel"`
	// SQLPubSub is the configuration for the database event driver
	SQLPubSub SQLEventConfig `mapstructure:"sql"`
}

// Validate validates the event configuration.
func (c EventConfig) Validate() error {
	switch c.Driver {
	case GoChannelDriver, SQLDriver:
	default:
		return fmt.Errorf("events.driver %s is not supported", c.Driver)
	}
	return nil
}

// GoChannelEventConfig is the configuration for the go channel event driver.
type GoChannelEventConfig struct {
	// BufferSize is the size of the buffer for the go channel
	BufferSize int64 `mapstructure:"buffer_size" default:"0"`
	// PersistEvents is whether or not to persist events to the channel
	PersistEvents bool `mapstructure:"persist_events" default:"false"`
	// BlockPublishUntilSubscriberAck is whether or not to block publishing until
	// the subscriber acks the message. This is useful for testing.
	BlockPublishUntilSubscriberAck bool `mapstructure:"block_publish_until_subscriber_ack" default:"false"`
}

// SQLEventConfig is the configuration for the database event driver
type SQLEventConfig struct {
	// InitSchema is whether or not to initialize the schema
	InitSchema bool           `mapstructure:"init_schema" default:"true"`
	Connection DatabaseConfig `mapstructure:"connection"`
	// AckDeadline is the deadline before timing out and re-attempting
	// a message delivery.  Note that setting this too short can cause messages
	// to be retried even when they should be marked as "poison".
	AckDeadline time.Duration `mapstructure:"ack_deadline" default:"300s"`
}
