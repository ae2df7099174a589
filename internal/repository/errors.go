// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrConflict signals that an operation cannot proceed because
// the record is not in the expected state (e.g. a second review on a
// booking that already has one, or a second provider profile for the
// same user). Ownership checks live in the handlers, which load the row
// and compare the caller against it, so there is no forbidden sentinel
// at this layer.
package repository

import "errors"

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as a non-adjacent status transition or a
// second review on the same booking. Handlers should translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrProviderNotFound is returned when a referenced provider does not
// exist.
var ErrProviderNotFound = errors.New("provider not found")

// ErrBookingNotFound is returned when a booking lookup matches no row.
var ErrBookingNotFound = errors.New("booking not found")

// ErrMenuItemNotFound is returned when a referenced menu item does not
// exist under the expected provider.
var ErrMenuItemNotFound = errors.New("menu item not found")
