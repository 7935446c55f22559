// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package stubs provides test doubles for the events package.
package stubs

import (
	"context"
	"slices"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/mindersec/ghmirror/internal/events"
)

var _ events.Interface = (*StubEventer)(nil)
var _ events.Publisher = (*StubEventer)(nil)

// StubEventer records published messages instead of delivering them. Only
// Publish is implemented; tests that need consumption use a real go-channel
// eventer.
type StubEventer struct {
	Topics []string
	Sent   []*message.Message
}

// Close implements events.Interface.
func (*StubEventer) Close() error {
	panic("unimplemented")
}

// ConsumeEvents implements events.Interface.
func (*StubEventer) ConsumeEvents(...events.Consumer) {
	panic("unimplemented")
}

// Publish implements events.Interface.
func (s *StubEventer) Publish(topic string, messages ...*message.Message) error {
	if !slices.Contains(s.Topics, topic) {
		s.Topics = append(s.Topics, topic)
	}
	s.Sent = append(s.Sent, messages...)
	return nil
}

// Register implements events.Interface.
func (*StubEventer) Register(string, message.NoPublishHandlerFunc, ...message.HandlerMiddleware) {
	panic("unimplemented")
}

// Run implements events.Interface.
func (*StubEventer) Run(context.Context) error {
	panic("unimplemented")
}

// Running implements events.Interface.
func (*StubEventer) Running() chan struct{} {
	panic("unimplemented")
}
