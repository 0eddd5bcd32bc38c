package lock

import (
	"context"
	"fmt"
	"sync"
)

// Exclusive guards a single process-wide resource, such as the one mount point
// all specimen jobs share.
type Exclusive struct {
	resource string

	mu     sync.Mutex
	holder string
}

func NewExclusive(resource string) *Exclusive {
	return &Exclusive{resource: resource}
}

func (e *Exclusive) AcquireLock(ctx context.Context, holder string) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.holder != "" {
		return nil, fmt.Errorf("%w: %s by %s", ErrHeld, e.resource, e.holder)
	}
	e.holder = holder

	return &exclusiveLock{owner: e}, nil
}

// Holder returns who holds the resource, empty when free.
func (e *Exclusive) Holder() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.holder
}

type exclusiveLock struct {
	owner *Exclusive
	once  sync.Once
}

func (l *exclusiveLock) Release() error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		l.owner.holder = ""
		l.owner.mu.Unlock()
	})
	return nil
}
