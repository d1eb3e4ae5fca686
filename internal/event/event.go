package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/getsentry/opstractor/internal/optree"
)

const (
	TypeEnter Type = "enter"
	TypeExit  Type = "exit"
)

type (
	Type string

	// Event is a call notification from an instrumented host. Enter events
	// carry the name and scope of the call, exit events its duration. Both
	// carry the same token.
	Event struct {
		Type       Type   `json:"type"`
		Thread     uint64 `json:"thread"`
		Name       string `json:"name,omitempty"`
		Scope      string `json:"scope,omitempty"`
		Token      string `json:"token"`
		DurationNS uint64 `json:"duration_ns,omitempty"`
	}

	// Source returns events in the order they were emitted for each thread.
	// Next returns io.EOF once the source is exhausted.
	Source interface {
		Next(ctx context.Context) (Event, error)
	}
)

// ErrInvalidEvent is returned for events that can't be decoded or applied.
var ErrInvalidEvent = errors.New("invalid event")

// ParseScope returns the scope of a call. An empty scope is a function.
func ParseScope(s string) (optree.Scope, error) {
	switch s {
	case "", optree.ScopeFunction.String():
		return optree.ScopeFunction, nil
	case optree.ScopeBackwardFunction.String():
		return optree.ScopeBackwardFunction, nil
	}
	return 0, fmt.Errorf("event: %w: unsupported scope %q", ErrInvalidEvent, s)
}

func (e Event) Validate() error {
	switch e.Type {
	case TypeEnter:
		_, err := ParseScope(e.Scope)
		return err
	case TypeExit:
		return nil
	}
	return fmt.Errorf("event: %w: unknown type %q", ErrInvalidEvent, e.Type)
}
