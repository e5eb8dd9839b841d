package domain

import "fmt"

type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// NotFoundError names the missing entity, e.g. NotFoundError("order 42").
type NotFoundError string

func (e NotFoundError) Error() string { return string(e) + " not found" }

type AuthenticationError string

func (e AuthenticationError) Error() string { return "authentication failed: " + string(e) }

type ForbiddenError string

func (e ForbiddenError) Error() string { return string(e) }

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %q -> %q", e.From, e.To)
}

// NotificationDeliveryError is only ever logged, never returned to API callers.
type NotificationDeliveryError struct {
	Channel string // "live" | "push" | "integration"
	Target  string
	Err     error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("%s delivery to %s failed: %v", e.Channel, e.Target, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error { return e.Err }
