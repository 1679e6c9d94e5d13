package notification

import (
	"context"
	"fmt"
)

// Subscriber consumes distributed values. T is a single notification or a
// whole batch, depending on the pipeline variant.
type Subscriber[T any] interface {
	// OnNotification handles one value. A returned error is reported back
	// through OnError and never stops distribution.
	OnNotification(ctx context.Context, value T) error

	// OnError receives the *HandlerError for this subscriber's own failures.
	OnError(err error)

	// OnCompleted is called once when the pipeline run ends, after which
	// the subscriber is detached.
	OnCompleted()
}

// SubscriberFuncs adapts plain functions to Subscriber. Nil fields are
// skipped. Attach it by pointer.
type SubscriberFuncs[T any] struct {
	Notification func(ctx context.Context, value T) error
	Error        func(err error)
	Completed    func()
}

func (f *SubscriberFuncs[T]) OnNotification(ctx context.Context, value T) error {
	if f.Notification == nil {
		return nil
	}
	return f.Notification(ctx, value)
}

func (f *SubscriberFuncs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f *SubscriberFuncs[T]) OnCompleted() {
	if f.Completed != nil {
		f.Completed()
	}
}

// HandlerError wraps a failure raised by a subscriber's notification
// handler, including a recovered panic.
type HandlerError struct {
	Err error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("error occurred while a subscriber processed notification(s): %v", e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
