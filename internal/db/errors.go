// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// uniqueViolationError is returned by the in-memory store where Postgres
// would raise a unique_violation, so callers can treat both stores alike.
type uniqueViolationError struct {
	constraint string
}

func (e *uniqueViolationError) Error() string {
	return "duplicate key value violates unique constraint " + e.constraint
}

// IsUniqueViolation reports whether err is a unique constraint violation
// from either store implementation.
func IsUniqueViolation(err error) bool {
	var memErr *uniqueViolationError
	if errors.As(err, &memErr) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
