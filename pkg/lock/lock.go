package lock

import (
	"context"
	"errors"
)

var ErrHeld = errors.New("resource is already held")

// Locker hands out exclusive ownership of a shared host resource.
// AcquireLock does not wait: a held resource fails with ErrHeld.
type Locker interface {
	AcquireLock(ctx context.Context, holder string) (Lock, error)
}

// Lock represents an acquired lock that must be released
type Lock interface {
	Release() error
}
