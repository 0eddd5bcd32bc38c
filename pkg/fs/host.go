package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	fallocate "github.com/detailyang/go-fallocate"
	"github.com/pkg/xattr"
	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"
)

type DeviceKind int

const (
	BlockDeviceNode DeviceKind = iota
	CharDeviceNode
)

func (k DeviceKind) String() string {
	switch k {
	case BlockDeviceNode:
		return "block"
	case CharDeviceNode:
		return "char"
	default:
		return "unknown"
	}
}

// Host is the narrow set of node level operations populators need from the
// host. Paths are absolute paths inside a mounted image.
type Host interface {
	SetAttribute(path, name string, value []byte) error
	GetAttribute(path, name string) ([]byte, error)
	MakeDevice(ctx context.Context, path string, kind DeviceKind, major, minor uint32) error
	MakeFifo(path string) error
	Truncate(path string, size int64) error
	// Allocate reserves [offset, offset+length) without writing data
	Allocate(path string, offset, length int64) error
}

// OSHost implements Host with syscalls, falling back to a privileged mknod
// when the process lacks CAP_MKNOD.
type OSHost struct {
	runner   Runner
	canMknod bool
}

func NewOSHost(runner Runner) *OSHost {
	return &OSHost{
		runner:   runner,
		canMknod: HasCapability(capability.CAP_MKNOD),
	}
}

// HasCapability reports whether c is in the effective set of this process.
func HasCapability(c capability.Cap) bool {
	caps, err := capability.NewPid2(os.Getpid())
	if err != nil {
		return false
	}
	if err := caps.Load(); err != nil {
		return false
	}
	return caps.Get(capability.EFFECTIVE, c)
}

func (h *OSHost) SetAttribute(path, name string, value []byte) error {
	if err := xattr.LSet(path, name, value); err != nil {
		return fmt.Errorf("set xattr %s: %w", name, err)
	}
	return nil
}

func (h *OSHost) GetAttribute(path, name string) ([]byte, error) {
	value, err := xattr.LGet(path, name)
	if err != nil {
		return nil, fmt.Errorf("get xattr %s: %w", name, err)
	}
	return value, nil
}

func (h *OSHost) MakeDevice(ctx context.Context, path string, kind DeviceKind, major, minor uint32) error {
	var mode uint32
	var typ string
	switch kind {
	case BlockDeviceNode:
		mode, typ = unix.S_IFBLK, "b"
	case CharDeviceNode:
		mode, typ = unix.S_IFCHR, "c"
	default:
		return fmt.Errorf("%w: %d", ErrUnknownDeviceKind, kind)
	}

	if h.canMknod {
		if err := unix.Mknod(path, mode|0o644, int(unix.Mkdev(major, minor))); err != nil {
			return fmt.Errorf("mknod %s: %w", path, err)
		}
		return nil
	}

	return h.runner.Run(ctx, Command{
		Name:       "mknod",
		Args:       []string{path, typ, strconv.FormatUint(uint64(major), 10), strconv.FormatUint(uint64(minor), 10)},
		Privileged: true,
	})
}

func (h *OSHost) MakeFifo(path string) error {
	if err := unix.Mkfifo(path, 0o644); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

func (h *OSHost) Truncate(path string, size int64) error {
	if err := os.Truncate(path, size); err != nil {
		return fmt.Errorf("truncate %s to %d: %w", path, size, err)
	}
	return nil
}

func (h *OSHost) Allocate(path string, offset, length int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	err = fallocate.Fallocate(f, offset, length)
	if errors.Is(err, unix.EOPNOTSUPP) {
		// ext2/ext3 have no unwritten extents, fall back to what
		// posix_fallocate does and write the zeros
		err = writeZeros(f, offset, length)
	}
	if err != nil {
		return fmt.Errorf("allocate %s [%d, %d): %w", path, offset, offset+length, err)
	}

	return nil
}

func writeZeros(f *os.File, offset, length int64) error {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := io.CopyN(f, zeroReader{}, length)
	return err
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
