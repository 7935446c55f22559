// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

// Metadata added to Messages
const (
	// DeliveryIdKey is the metadata key carrying the GitHub delivery GUID.
	DeliveryIdKey = "id"
	// EventTypeKey is the metadata key carrying the webhook event name.
	EventTypeKey = "type"
	// PublishedKey is the metadata key carrying the publish timestamp.
	PublishedKey = "published_at"

	// DeadLetterQueueTopic receives messages whose handlers kept failing.
	DeadLetterQueueTopic = "dead_letter_queue"
)

const (
	// TopicQueueProcessDelivery kicks the processor after a delivery is stored.
	TopicQueueProcessDelivery = "process.delivery.event"
	// TopicQueueSyncPullFiles requests a pull request file diff sync.
	TopicQueueSyncPullFiles = "sync.pull_files.event"
	// TopicQueueSyncRepo requests a repository bootstrap or reconcile run.
	TopicQueueSyncRepo = "sync.repo.event"
)
