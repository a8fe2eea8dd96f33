// Package storage provides the key-value store behind the submission journal.
package storage

import "errors"

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach visits every key with the given prefix in ascending key order.
	// The callback receives copies of the key and value. A non-nil error
	// from fn stops iteration and is returned.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}
