package core

import (
	"context"
	"errors"
	"hash/fnv"
)

// ErrLocked is returned when a lock could not be obtained in time.
var ErrLocked = errors.New("resource is locked by another operation")

// Locker serializes work on one key, such as the intake of a single upload.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

const lockStripes = 64

// localLocker is an in-process Locker over a fixed set of striped slots.
// Two keys may share a slot; that only costs some parallelism.
type localLocker struct {
	stripes [lockStripes]chan struct{}
}

// NewLocalLocker returns a Locker valid within this process only.
func NewLocalLocker() Locker {
	l := &localLocker{}
	for i := range l.stripes {
		l.stripes[i] = make(chan struct{}, 1)
	}
	return l
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	slot := l.stripes[h.Sum32()%lockStripes]

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, errors.Join(ErrLocked, ctx.Err())
	}
}
