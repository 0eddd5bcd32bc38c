package mount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maxdollinger/specimen.io/pkg/fs"
	"github.com/maxdollinger/specimen.io/pkg/lock"
)

// sessions guards the mount point for the whole process.
var sessions = lock.NewExclusive("specimen mount point")

// Session is an open mount of one backing store. Populators only ever see the
// mount through a Session.
type Session struct {
	MountPoint string
	Store      *fs.BlockDevice
	Owner      Owner

	mounter Mounter
	held    lock.Lock
	logger  *slog.Logger
	closed  bool
}

// Open mounts store at mountPoint and hands the mount root to owner. Opening a
// session while another one is open is a programming error and panics.
func Open(ctx context.Context, m Mounter, mountPoint string, store *fs.BlockDevice, owner Owner) (*Session, error) {
	held, err := sessions.AcquireLock(ctx, store.Path)
	if errors.Is(err, lock.ErrHeld) {
		panic(fmt.Sprintf("mount: second session opened: %v", err))
	}
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("mount_point", mountPoint, "image", filepath.Base(store.Path))

	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		_ = held.Release()
		return nil, fmt.Errorf("create mount point: %w", err)
	}

	logger.DebugContext(ctx, "mounting image")
	if err := m.Mount(ctx, store, mountPoint); err != nil {
		_ = held.Release()
		return nil, err
	}

	if err := m.Chown(ctx, mountPoint, owner); err != nil {
		err = errors.Join(err, m.Unmount(context.WithoutCancel(ctx), mountPoint))
		_ = held.Release()
		return nil, err
	}

	logger.InfoContext(ctx, "session opened", "owner", owner.String())

	return &Session{
		MountPoint: mountPoint,
		Store:      store,
		Owner:      owner,
		mounter:    m,
		held:       held,
		logger:     logger,
	}, nil
}

// Path joins rel onto the mount root.
func (s *Session) Path(rel string) string {
	return filepath.Join(s.MountPoint, rel)
}

// Close unmounts and frees the mount point. The unmount runs even when ctx is
// already cancelled; the lock is released even when the unmount fails so the
// error reaches the caller instead of a panic on the next Open.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.held.Release()

	if err := s.mounter.Unmount(context.WithoutCancel(ctx), s.MountPoint); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "session closed")
	return nil
}

// With opens a session, runs fn and closes the session on every path out of fn,
// panics included. A close error is joined to fn's error.
func With(ctx context.Context, m Mounter, mountPoint string, store *fs.BlockDevice, owner Owner, fn func(*Session) error) (err error) {
	s, err := Open(ctx, m, mountPoint, store, owner)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close(ctx))
	}()

	return fn(s)
}

// Active reports whether a session is currently open.
func Active() bool {
	return sessions.Holder() != ""
}
