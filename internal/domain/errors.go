package domain

import (
	"errors"
	"fmt"
)

// DomainError keeps backward compatibility for generic codes.
type DomainError struct {
	Code string
	Err  error
}

func (e DomainError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	if e.Code == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e DomainError) Unwrap() error {
	return e.Err
}

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// ForbiddenError is an authorization failure. It is surfaced verbatim and never retried.
type ForbiddenError struct {
	Capability string
	Msg        string
}

func (e ForbiddenError) Error() string {
	switch {
	case e.Msg != "" && e.Capability != "":
		return fmt.Sprintf("forbidden (%s): %s", e.Capability, e.Msg)
	case e.Msg != "":
		return "forbidden: " + e.Msg
	case e.Capability != "":
		return fmt.Sprintf("forbidden (%s)", e.Capability)
	default:
		return "forbidden"
	}
}

// InsufficientCapacityError reports that a reservation does not fit on the trip.
// The booking that triggered it stays pending.
type InsufficientCapacityError struct {
	TripID    int64
	Requested int64
	Available int64
}

func (e InsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity on trip %d: requested %d, available %d", e.TripID, e.Requested, e.Available)
}

// InvalidStateError rejects a transition that is not allowed from the current state.
type InvalidStateError struct {
	Resource string
	State    string
	Action   string
}

func (e InvalidStateError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("cannot %s in state %q", e.Action, e.State)
	}
	return fmt.Sprintf("cannot %s %s in state %q", e.Action, e.Resource, e.State)
}

// UnauthorizedError means the caller could not be authenticated.
type UnauthorizedError struct {
	Msg string
	Err error
}

func (e UnauthorizedError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "unauthorized"
}

func (e UnauthorizedError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target ForbiddenError
	return errors.As(err, &target)
}

func IsInsufficientCapacity(err error) bool {
	var target InsufficientCapacityError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target InvalidStateError
	return errors.As(err, &target)
}

func IsUnauthorized(err error) bool {
	var target UnauthorizedError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}
