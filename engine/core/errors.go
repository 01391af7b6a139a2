package core

import (
	"errors"
)

var (
	// ErrCapacityExceeded is returned when an instance is pushed to a batch
	// that already holds as many instances as it was built for.
	ErrCapacityExceeded = errors.New("batch capacity exceeded")
	// ErrMapUnmapMisuse is returned when a buffer is used while a mapping is
	// open, mapped twice, or unmapped without being mapped.
	ErrMapUnmapMisuse = errors.New("buffer map/unmap misuse")

	ErrOutOfRange      = errors.New("index out of range")
	ErrFieldMismatch   = errors.New("value does not match field layout")
	ErrInvalidLayout   = errors.New("invalid buffer layout")
	ErrInvalidCapacity = errors.New("invalid batch capacity")
	ErrSlotAssignment  = errors.New("invalid attribute slot assignment")
	ErrRegistrySealed  = errors.New("shape registry is sealed")
	ErrIndexOverflow   = errors.New("index does not fit in 16 bits")
	ErrQueueFull       = errors.New("queue is full")
	ErrQueueEmpty      = errors.New("queue is empty")
	ErrUnknown         = errors.New("unknown")
)
