//go:build linux

package generator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/maxdollinger/specimen.io/internal/matrix"
	"github.com/maxdollinger/specimen.io/internal/mount"
	"github.com/maxdollinger/specimen.io/internal/populate"
	"github.com/maxdollinger/specimen.io/internal/preflight"
	"github.com/maxdollinger/specimen.io/pkg/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const testFakeTime = 1600000000

// skipIfNotRoot skips tests that mount real images, and those whose tools are
// not installed.
func skipIfNotRoot(t *testing.T, tools ...string) {
	t.Helper()
	if testing.Short() {
		t.Skip("real toolchain test")
	}
	if unix.Geteuid() != 0 {
		t.Skip("needs root")
	}
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
}

func defaultJobs(t *testing.T) []matrix.Job {
	t.Helper()
	jobs, err := matrix.Expand(matrix.Default("/usr/share/unicode/UnicodeData.txt"))
	require.NoError(t, err)
	return jobs
}

func deviceOptions(dir string, job matrix.Job) fs.BlockDeviceOptions {
	return fs.BlockDeviceOptions{
		OutputFilePath: filepath.Join(dir, job.FileName()),
		SizeBytes:      job.SizeBytes,
		SectorSize:     job.SectorSize,
		Kind:           string(job.Kind),
		BlockSize:      job.BlockSize,
		InodeSize:      job.InodeSize,
		InodeRatio:     job.InodeRatio,
		Features:       job.Features.Strings(),
		Label:          job.Label,
		UUID:           FsUUID(job),
	}
}

// TestMkfsAcceptsDefaultTable formats every row of the maintained table with
// the installed mke2fs.
func TestMkfsAcceptsDefaultTable(t *testing.T) {
	jobs := defaultJobs(t)
	var tools []string
	for _, job := range jobs {
		tools = append(tools, "mkfs."+string(job.Kind))
	}
	skipIfNotRoot(t, tools...)

	devices := fs.NewExtBuilder(fs.NewMkfsFormatter(fs.NewSudoRunner(), testFakeTime))
	dir := t.TempDir()

	for _, job := range jobs {
		t.Run(job.Name, func(t *testing.T) {
			device, err := devices.NewDevice(context.Background(), deviceOptions(dir, job))
			require.NoError(t, err)
			assert.NoError(t, os.Remove(device.Path))
		})
	}
}

// TestCatalogOnRealExt2Block1024 runs the full catalog on a formatted 1 KiB
// block ext2 image through the mounter and host main wires up.
func TestCatalogOnRealExt2Block1024(t *testing.T) {
	skipIfNotRoot(t, "mkfs.ext2", "mount", "umount")
	ctx := context.Background()
	dir := t.TempDir()

	job := defaultJobs(t)[0]
	require.Equal(t, "ext2_block_1024", job.Name)

	runner := fs.NewSudoRunner()
	device, err := fs.NewExtBuilder(fs.NewMkfsFormatter(runner, testFakeTime)).NewDevice(ctx, deviceOptions(dir, job))
	require.NoError(t, err)

	steps, _, err := Plan(job)
	require.NoError(t, err)

	host := fs.NewOSHost(runner)
	err = mount.With(ctx, mount.NewMounter(runner), filepath.Join(dir, "mnt"), device, mount.InvokingUser(), func(s *mount.Session) error {
		if err := populate.Run(ctx, populate.NewEnv(s, host, runner), steps); err != nil {
			return err
		}

		for _, attr := range populate.FileAttributes {
			got, err := host.GetAttribute(s.Path("file_with_xattrs"), attr.Name)
			if err != nil {
				return err
			}
			assert.Equal(t, attr.Value, got, attr.Name)
		}

		for name, want := range map[string]uint32{"dev_block": unix.S_IFBLK, "dev_char": unix.S_IFCHR, "fifo": unix.S_IFIFO} {
			var st unix.Stat_t
			if err := unix.Lstat(s.Path(name), &st); err != nil {
				return fmt.Errorf("lstat %s: %w", name, err)
			}
			assert.Equal(t, want, st.Mode&unix.S_IFMT, name)
		}

		for _, name := range []string{"sparse_leading_hole", "sparse_trailing_hole", "sparse_uninit"} {
			info, err := os.Stat(s.Path(name))
			if err != nil {
				return err
			}
			assert.Equal(t, int64(populate.SparseBlocks*job.BlockSize), info.Size(), name)
		}
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mount.Active())
}

// TestRunOnRealImages runs the generator over every table row that needs no
// extra input: no key, no code point list, no hundred thousand files.
func TestRunOnRealImages(t *testing.T) {
	var jobs []matrix.Job
	for _, job := range defaultJobs(t) {
		if job.Has(matrix.PopulateEncrypted) || job.Has(matrix.PopulateLargeDir) || job.Has(matrix.PopulateUnicode) {
			continue
		}
		jobs = append(jobs, job)
	}
	skipIfNotRoot(t, preflight.RequiredTools(jobs, true)...)

	runner := fs.NewSudoRunner()
	devices := fs.NewExtBuilder(fs.NewMkfsFormatter(runner, testFakeTime))
	gen := New(devices, mount.NewMounter(runner), fs.NewOSHost(runner), runner)

	opts := Options{
		OutputDir: filepath.Join(t.TempDir(), "specimens"),
		MountDir:  filepath.Join(t.TempDir(), "mnt"),
		Owner:     mount.InvokingUser(),
	}
	report, err := gen.Run(context.Background(), jobs, opts)
	require.NoError(t, err)
	require.Len(t, report.Specimens, len(jobs))

	for i, s := range report.Specimens {
		assert.Equal(t, jobs[i].Name, s.Job.Name)
		assert.Equal(t, jobs[i].SizeBytes, s.SizeBytes)
		assert.NoError(t, s.Digest.Validate())
	}
}
