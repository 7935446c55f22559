// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"fmt"
)

var (
	// ErrRetriable is an error that may be retried. All other errors encountered
	// by watermill be simply logged and ignored.
	ErrRetriable = errors.New("retriable error")
)

// NewRetriableError creates a new retriable error
func NewRetriableError(sfmt string, args ...any) error {
	msg := fmt.Sprintf(sfmt, args...)
	return fmt.Errorf("%w: %s", ErrRetriable, msg)
}
