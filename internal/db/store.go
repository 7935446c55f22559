// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package db provides the persistence layer for the mirror: the durable
// delivery queue, the normalized domain tables, the projection tables and
// the control-plane records. The production implementation runs on
// PostgreSQL; an in-memory implementation backs tests and local development.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("record not found")

// DBTX is the subset of database/sql used by the query layer, satisfied by
// both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries executes the SQL statements of the query layer against a DBTX.
type Queries struct {
	db DBTX
}

// New creates a Queries instance bound to the given DBTX.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

var _ Querier = (*Queries)(nil)

// Store provides all functions to execute db queries and transactions.
type Store interface {
	Querier
	CheckHealth(ctx context.Context) error
	WithTransaction(ctx context.Context, fn func(Querier) error) error
}

// SQLStore provides all functions to execute SQL queries and transactions
// against PostgreSQL.
type SQLStore struct {
	db *sql.DB
	*Queries
}

var _ Store = (*SQLStore)(nil)

// NewStore creates a Store backed by the given database handle.
func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:      db,
		Queries: New(db),
	}
}

// CheckHealth checks the health of the database.
func (s *SQLStore) CheckHealth(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTransaction runs fn inside a single database transaction. The
// transaction is rolled back if fn returns an error, so that a failed
// handler leaves the store unchanged.
func (s *SQLStore) WithTransaction(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(New(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}
