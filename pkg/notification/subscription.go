package notification

import (
	"fmt"
	"reflect"
	"sync"
)

// Subscription is the ordered set of subscribers of one pipeline. It is
// safe for concurrent use, including from inside a handler.
type Subscription[T any] struct {
	mu          sync.Mutex
	subscribers []Subscriber[T]
}

// Attach adds s. Attaching a subscriber that is already present is a
// no-op. Subscribers must be non-nil comparable values, usually pointers.
func (s *Subscription[T]) Attach(sub Subscriber[T]) error {
	if err := checkSubscriber(sub); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subscribers {
		if existing == sub {
			return nil
		}
	}
	s.subscribers = append(s.subscribers, sub)
	return nil
}

// Detach removes sub and reports whether it was attached.
func (s *Subscription[T]) Detach(sub Subscriber[T]) bool {
	if checkSubscriber(sub) != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.subscribers {
		if existing == sub {
			s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of attached subscribers.
func (s *Subscription[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// snapshot copies the current set for iteration.
func (s *Subscription[T]) snapshot() []Subscriber[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Subscriber[T](nil), s.subscribers...)
}

func (s *Subscription[T]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = nil
}

func checkSubscriber[T any](sub Subscriber[T]) error {
	if sub == nil {
		return fmt.Errorf("%w: subscriber is nil", ErrInvalidConfig)
	}
	v := reflect.ValueOf(sub)
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return fmt.Errorf("%w: subscriber is a nil %T", ErrInvalidConfig, sub)
	}
	if !v.Comparable() {
		return fmt.Errorf("%w: subscriber of type %T is not comparable, attach a pointer", ErrInvalidConfig, sub)
	}
	return nil
}
