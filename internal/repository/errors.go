// Package repository provides persistence implementations for environment records:
// a JSON file store and a PostgreSQL store.
package repository

import "errors"

// ErrNotFound is returned when the requested environment does not exist.
var ErrNotFound = errors.New("environment not found")
