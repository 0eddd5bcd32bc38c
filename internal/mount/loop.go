package mount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	losetup "github.com/freddierice/go-losetup/v2"
	"github.com/maxdollinger/specimen.io/pkg/fs"
	"golang.org/x/sys/unix"
)

// LoopMounter attaches loop devices and mounts them with syscalls. It needs
// root.
type LoopMounter struct {
	mu      sync.Mutex
	devices map[string]losetup.Device // mount point -> attached loop device
}

func NewLoopMounter() *LoopMounter {
	return &LoopMounter{devices: make(map[string]losetup.Device)}
}

func (m *LoopMounter) Mount(ctx context.Context, store *fs.BlockDevice, mountPoint string) error {
	dev, err := losetup.Attach(store.Path, 0, false)
	if err != nil {
		return fmt.Errorf("%w: attach %s: %w", ErrMountFailed, store.Path, err)
	}

	if err := unix.Mount(dev.Path(), mountPoint, store.Kind, 0, ""); err != nil {
		err = errors.Join(err, dev.Detach())
		return fmt.Errorf("%w: %s at %s: %w", ErrMountFailed, dev.Path(), mountPoint, err)
	}

	m.mu.Lock()
	m.devices[mountPoint] = dev
	m.mu.Unlock()

	return nil
}

func (m *LoopMounter) Unmount(ctx context.Context, mountPoint string) error {
	if err := unix.Unmount(mountPoint, 0); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnmountFailed, mountPoint, err)
	}

	m.mu.Lock()
	dev, ok := m.devices[mountPoint]
	delete(m.devices, mountPoint)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if err := dev.Detach(); err != nil {
		return fmt.Errorf("%w: detach %s: %w", ErrUnmountFailed, dev.Path(), err)
	}

	return nil
}

func (m *LoopMounter) Chown(ctx context.Context, mountPoint string, owner Owner) error {
	if err := os.Chown(mountPoint, owner.UID, owner.GID); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrChownFailed, mountPoint, err)
	}
	return nil
}
