package repository

import "errors"

// ErrNotFound is returned when a store-scoped lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrIllegalTransition is returned when a bill status update would violate
// the monotonic state machine (e.g. writing to an already-terminal bill).
var ErrIllegalTransition = errors.New("illegal bill status transition")

// ErrQuantityBelowZero is returned when a decrement would take an item's
// quantity negative.
var ErrQuantityBelowZero = errors.New("quantity cannot go below zero")
