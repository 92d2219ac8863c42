package ecs

import (
	"errors"
	"fmt"
	"reflect"
)

// NoSuchEntityError reports an access to an entity that does not exist in the
// world at access time. Recoverable: the entity may have been destroyed by an
// earlier batch.
type NoSuchEntityError struct {
	Entity EntityID
}

func (e *NoSuchEntityError) Error() string {
	return fmt.Sprintf("ecs: no such entity %d (index %d, generation %d)",
		uint64(e.Entity), e.Entity.Index(), e.Entity.Generation())
}

// MissingComponentError reports that an entity exists but lacks the requested
// component.
type MissingComponentError struct {
	Entity    EntityID
	Component reflect.Type
}

func (e *MissingComponentError) Error() string {
	return fmt.Sprintf("ecs: entity %d has no %s component", uint64(e.Entity), e.Component)
}

// IsNoSuchEntity reports whether err wraps a NoSuchEntityError.
func IsNoSuchEntity(err error) bool {
	var target *NoSuchEntityError
	return errors.As(err, &target)
}

// IsMissingComponent reports whether err wraps a MissingComponentError.
func IsMissingComponent(err error) bool {
	var target *MissingComponentError
	return errors.As(err, &target)
}
