// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package repository implements all database access on top of sqlx.
package repository

import (
	"database/sql"
	"errors"

	"github.com/vinovest/sqlx"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// Repository wraps the sqlx connection for database operations.
type Repository struct {
	db *sqlx.DB
}

// New creates a new Repository instance.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying sqlx connection for direct access.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// wrapError converts driver errors to repository errors.
func wrapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
