package events

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("event not found")
	ErrNotRegistered     = errors.New("user is not registered for this event")
	ErrAlreadyRegistered = errors.New("user is already registered for this event")
	ErrCapacityExceeded  = errors.New("event has reached maximum capacity")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
