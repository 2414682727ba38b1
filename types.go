package eventchain

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// EventType names the kind of an Event. It must not be blank
	EventType string

	// Event is an immutable timestamped value. The Store keeps its own
	// copy, so callers may reuse the value they pass in
	Event struct {
		Type      EventType `json:"type"`
		Timestamp int64     `json:"timestamp"`
	}
)

var (
	// ErrInvalidArgument indicates malformed input rejected before any
	// mutation took place
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState indicates a Cursor was read before it had a position
	ErrInvalidState = errors.New("invalid state")

	// ErrUnsupportedOperation indicates a Cursor mutation was requested
	ErrUnsupportedOperation = fmt.Errorf(
		"cursor mutation: %w", errors.ErrUnsupported,
	)

	// ErrStoreClosed indicates the Store was used after Close
	ErrStoreClosed = errors.New("store closed")
)

func (t EventType) isBlank() bool {
	return strings.TrimSpace(string(t)) == ""
}

func checkType(typ EventType) error {
	if typ.isBlank() {
		return fmt.Errorf("%w: event type is blank", ErrInvalidArgument)
	}
	return nil
}

func checkEvent(ev *Event) error {
	if ev == nil {
		return fmt.Errorf("%w: event is nil", ErrInvalidArgument)
	}
	return checkType(ev.Type)
}

func checkRange(start, end int64) error {
	if start > end {
		return fmt.Errorf(
			"%w: start time %d is after end time %d",
			ErrInvalidArgument, start, end,
		)
	}
	return nil
}
