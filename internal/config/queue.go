// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"time"
)

// QueueConfig is the configuration for the delivery queue processor.
type QueueConfig struct {
	// MaxAttempts is the number of processing attempts before a delivery
	// is dead-lettered
	MaxAttempts int `mapstructure:"max_attempts" default:"5"`
	// BaseBackoff is the base of the exponential retry backoff
	BaseBackoff time.Duration `mapstructure:"base_backoff" default:"1s"`
	// BatchSize is the maximum number of deliveries claimed per processor pass
	BatchSize int `mapstructure:"batch_size" default:"50"`
	// ProcessInterval is how often the processor drains the pending queue
	ProcessInterval time.Duration `mapstructure:"process_interval" default:"5s"`
	// PromoteInterval is how often due retry deliveries are promoted back
	// to pending
	PromoteInterval time.Duration `mapstructure:"promote_interval" default:"30s"`
	// StaleRetryAge is the age beyond which a retry delivery counts as stale
	// on the status surface
	StaleRetryAge time.Duration `mapstructure:"stale_retry_age" default:"15m"`
}

// Validate validates the queue configuration.
func (c QueueConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.BaseBackoff <= 0 {
		return fmt.Errorf("queue.base_backoff must be positive, got %s", c.BaseBackoff)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("queue.batch_size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// SyncConfig is the configuration for bootstrap and on-demand sync fetchers.
type SyncConfig struct {
	// MaxFilesPerPr caps how many files of a pull request diff are cached
	MaxFilesPerPr int `mapstructure:"max_files_per_pr" default:"300"`
	// MaxPatchBytes caps the stored patch size per file; larger patches are
	// stored without patch text
	MaxPatchBytes int `mapstructure:"max_patch_bytes" default:"100000"`
	// ChunkSize is the number of entities written per transaction during
	// bootstrap
	ChunkSize int `mapstructure:"chunk_size" default:"50"`
	// PageSize is the per-page size used for GitHub list calls
	PageSize int `mapstructure:"page_size" default:"100"`
}

// Validate validates the sync configuration.
func (c SyncConfig) Validate() error {
	if c.MaxFilesPerPr <= 0 {
		return fmt.Errorf("sync.max_files_per_pr must be positive, got %d", c.MaxFilesPerPr)
	}
	if c.MaxPatchBytes <= 0 {
		return fmt.Errorf("sync.max_patch_bytes must be positive, got %d", c.MaxPatchBytes)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("sync.chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		return fmt.Errorf("sync.page_size must be in (0, 100], got %d", c.PageSize)
	}
	return nil
}
