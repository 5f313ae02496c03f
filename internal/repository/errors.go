// Package repository holds the MySQL implementations of the credential,
// session and client stores, plus the sentinel errors shared with the
// alternative store implementations.  Higher layers compare against these
// values with errors.Is to pick a response status.
package repository

import "errors"

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when inserting or updating a user would
// violate the unique email constraint.
var ErrEmailExists = errors.New("email already exists")

// ErrSessionNotFound is returned by Redeem when no live session row with
// the given id exists: it was already redeemed, revoked or has expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoCreator is returned when a client insert cannot be joined against
// the calling user.
var ErrNoCreator = errors.New("creator not found")
