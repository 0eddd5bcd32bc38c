// Package mount owns the one shared mount point specimen images are populated
// through. Sessions are strictly one at a time.
package mount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/maxdollinger/specimen.io/pkg/fs"
	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"
)

var (
	ErrMountFailed   = errors.New("mount failed")
	ErrUnmountFailed = errors.New("unmount failed")
	ErrChownFailed   = errors.New("ownership transfer failed")
)

// Owner is the unprivileged identity population runs as.
type Owner struct {
	UID int
	GID int
}

func (o Owner) String() string {
	return strconv.Itoa(o.UID) + ":" + strconv.Itoa(o.GID)
}

// InvokingUser returns the user that started the run. Under sudo that is the
// user behind SUDO_UID/SUDO_GID, not root.
func InvokingUser() Owner {
	owner := Owner{UID: os.Getuid(), GID: os.Getgid()}
	if unix.Geteuid() != 0 {
		return owner
	}

	if uid, err := strconv.Atoi(os.Getenv("SUDO_UID")); err == nil {
		owner.UID = uid
	}
	if gid, err := strconv.Atoi(os.Getenv("SUDO_GID")); err == nil {
		owner.GID = gid
	}
	return owner
}

// Mounter attaches a backing store read-write at a directory.
type Mounter interface {
	Mount(ctx context.Context, store *fs.BlockDevice, mountPoint string) error
	Unmount(ctx context.Context, mountPoint string) error
	Chown(ctx context.Context, mountPoint string, owner Owner) error
}

// NewMounter picks the native loop backend when the process may mount
// (CAP_SYS_ADMIN) and the external tools otherwise.
func NewMounter(runner fs.Runner) Mounter {
	if fs.HasCapability(capability.CAP_SYS_ADMIN) {
		return NewLoopMounter()
	}
	return NewToolMounter(runner)
}

// ToolMounter drives mount(8), umount(8) and chown(1) through a privileged
// runner.
type ToolMounter struct {
	runner fs.Runner
}

func NewToolMounter(runner fs.Runner) *ToolMounter {
	return &ToolMounter{runner: runner}
}

func (m *ToolMounter) Mount(ctx context.Context, store *fs.BlockDevice, mountPoint string) error {
	err := m.runner.Run(ctx, fs.Command{
		Name:       "mount",
		Args:       []string{"-o", "loop,rw", "-t", store.Kind, store.Path, mountPoint},
		Privileged: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %s at %s: %w", ErrMountFailed, store.Path, mountPoint, err)
	}
	return nil
}

func (m *ToolMounter) Unmount(ctx context.Context, mountPoint string) error {
	err := m.runner.Run(ctx, fs.Command{
		Name:       "umount",
		Args:       []string{mountPoint},
		Privileged: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnmountFailed, mountPoint, err)
	}
	return nil
}

func (m *ToolMounter) Chown(ctx context.Context, mountPoint string, owner Owner) error {
	err := m.runner.Run(ctx, fs.Command{
		Name:       "chown",
		Args:       []string{owner.String(), mountPoint},
		Privileged: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrChownFailed, mountPoint, err)
	}
	return nil
}

// NoOpMounter mounts nothing. The mount point stays a plain directory, which is
// enough to populate a tree without root.
type NoOpMounter struct{}

func NewNoOpMounter() *NoOpMounter {
	return &NoOpMounter{}
}

func (m *NoOpMounter) Mount(ctx context.Context, store *fs.BlockDevice, mountPoint string) error {
	return nil
}

func (m *NoOpMounter) Unmount(ctx context.Context, mountPoint string) error {
	return nil
}

func (m *NoOpMounter) Chown(ctx context.Context, mountPoint string, owner Owner) error {
	return nil
}
