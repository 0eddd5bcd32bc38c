package populate

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/maxdollinger/specimen.io/internal/mount"
	"github.com/maxdollinger/specimen.io/pkg/fs"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// attrBlockSpace is what a 1 KiB external attribute block holds after its
// header; the fake refuses values past it like a real 1 KiB filesystem.
const attrBlockSpace = 1024 - 32

type device struct {
	Kind         fs.DeviceKind
	Major, Minor uint32
}

// fakeHost keeps attributes and device nodes in memory, which does not need
// root or xattr support on the test filesystem.
type fakeHost struct {
	*fs.OSHost

	mu        sync.Mutex
	attrs     map[string]map[string][]byte
	devices   map[string]device
	deviceErr error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		OSHost:  fs.NewOSHost(nil),
		attrs:   make(map[string]map[string][]byte),
		devices: make(map[string]device),
	}
}

func (h *fakeHost) SetAttribute(path, name string, value []byte) error {
	if _, err := os.Lstat(path); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.attrs[path] == nil {
		h.attrs[path] = make(map[string][]byte)
	}
	used := len(name) + len(value)
	for have, v := range h.attrs[path] {
		if have != name {
			used += len(have) + len(v)
		}
	}
	if used > attrBlockSpace {
		return fmt.Errorf("set xattr %s: %w", name, unix.ENOSPC)
	}
	h.attrs[path][name] = append([]byte(nil), value...)
	return nil
}

func (h *fakeHost) GetAttribute(path, name string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	value, ok := h.attrs[path][name]
	if !ok {
		return nil, fmt.Errorf("get xattr %s: no such attribute", name)
	}
	return value, nil
}

// MakeDevice leaves a regular file behind so the entity exists on disk.
func (h *fakeHost) MakeDevice(ctx context.Context, path string, kind fs.DeviceKind, major, minor uint32) error {
	if h.deviceErr != nil {
		return h.deviceErr
	}
	if err := writeFile(path, nil); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.devices[path] = device{Kind: kind, Major: major, Minor: minor}
	return nil
}

// scriptedRunner answers commands from a table keyed by Command.String().
type scriptedRunner struct {
	outputs map[string]string
	errs    map[string]error
	ran     []fs.Command
}

func (r *scriptedRunner) Run(ctx context.Context, cmd fs.Command) error {
	_, err := r.Output(ctx, cmd)
	return err
}

func (r *scriptedRunner) Output(ctx context.Context, cmd fs.Command) ([]byte, error) {
	r.ran = append(r.ran, cmd)
	if err := r.errs[cmd.String()]; err != nil {
		return nil, err
	}
	return []byte(r.outputs[cmd.String()]), nil
}

// testEnv opens a session on a plain temp directory.
func testEnv(t *testing.T) (*Env, *fakeHost, *scriptedRunner) {
	t.Helper()

	store := &fs.BlockDevice{Path: "test.bin", Kind: "ext4", SizeBytes: 4 << 20, SectorSize: 512}
	session, err := mount.Open(context.Background(), mount.NewNoOpMounter(), t.TempDir(), store, mount.Owner{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = session.Close(context.Background())
	})

	host := newFakeHost()
	runner := &scriptedRunner{outputs: map[string]string{}, errs: map[string]error{}}
	return NewEnv(session, host, runner), host, runner
}
