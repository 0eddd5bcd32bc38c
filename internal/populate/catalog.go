package populate

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/maxdollinger/specimen.io/pkg/fs"
)

const (
	SmallFileContent = "hello, world!"
	BigFileSize      = 0x8000
	BigAttrSize      = 512

	// SparseBlocks is the apparent length, in blocks, of every sparse catalog file.
	SparseBlocks = 4
)

// NormalizationNames spell the same word in four ways. NFD alt keeps the combining
// marks in non-canonical order.
var NormalizationNames = []string{
	"norm_nfc_\ufb01\u1ec7",
	"norm_nfd_\ufb01e\u0323\u0302",
	"norm_nfd_alt_\ufb01e\u0302\u0323",
	"norm_nfkd_fie\u0323\u0302",
}

// FileAttributes are set on file_with_xattrs, in order. user.big does not fit
// in the inode and lands in an external attribute block, which is one block
// long, so the whole set has to fit in 1 KiB.
var FileAttributes = []Attribute{
	{Name: "user.a", Value: []byte("alpha")},
	{Name: "user.b", Value: []byte("beta")},
	{Name: "user.big", Value: bytes.Repeat([]byte("0123456789abcdef"), BigAttrSize/16)},
}

var DirAttributes = []Attribute{
	{Name: "user.dir", Value: []byte("directory attribute")},
}

type Attribute struct {
	Name  string
	Value []byte
}

// CatalogOptions selects the optional parts of the fixed catalog.
type CatalogOptions struct {
	BlockSize int
	Encrypted bool
	LargeDir  bool
}

// Catalog returns the fixed entity catalog in creation order.
func Catalog(opts CatalogOptions) []Step {
	bs := int64(opts.BlockSize)

	steps := []Step{
		{
			Name:     "empty file",
			Provides: []string{"empty_file"},
			Do: func(ctx context.Context, env *Env) error {
				return writeFile(env.Path("empty_file"), nil)
			},
		},
		{
			Name:     "empty dir",
			Provides: []string{"empty_dir"},
			Do: func(ctx context.Context, env *Env) error {
				return os.Mkdir(env.Path("empty_dir"), 0o755)
			},
		},
		{
			Name:     "inline file",
			Provides: []string{"small_file"},
			Do: func(ctx context.Context, env *Env) error {
				return writeFile(env.Path("small_file"), []byte(SmallFileContent))
			},
		},
		{
			Name:     "block mapped file",
			Provides: []string{"big_file"},
			Do: func(ctx context.Context, env *Env) error {
				return writeFile(env.Path("big_file"), BigFileData())
			},
		},
		{
			Name:     "hard link",
			Provides: []string{"small_file_hardlink"},
			Requires: []string{"small_file"},
			Do: func(ctx context.Context, env *Env) error {
				return os.Link(env.Path("small_file"), env.Path("small_file_hardlink"))
			},
		},
		{
			Name:     "symlink to file",
			Provides: []string{"sym_simple"},
			Requires: []string{"small_file"},
			Do: func(ctx context.Context, env *Env) error {
				return os.Symlink("small_file", env.Path("sym_simple"))
			},
		},
		{
			Name:     "symlink to dir",
			Provides: []string{"sym_to_dir"},
			Requires: []string{"empty_dir"},
			Do: func(ctx context.Context, env *Env) error {
				return os.Symlink("empty_dir", env.Path("sym_to_dir"))
			},
		},
		{
			Name:     "normalization names",
			Provides: NormalizationNames,
			Do: func(ctx context.Context, env *Env) error {
				for _, name := range NormalizationNames {
					if err := writeFile(env.Path(name), []byte(name)); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Name:     "file attributes",
			Provides: []string{"file_with_xattrs"},
			Do: func(ctx context.Context, env *Env) error {
				path := env.Path("file_with_xattrs")
				if err := writeFile(path, []byte("attributes\n")); err != nil {
					return err
				}
				return setAttributes(env.Host, path, FileAttributes)
			},
		},
		{
			Name:     "dir attributes",
			Provides: []string{"dir_with_xattrs"},
			Do: func(ctx context.Context, env *Env) error {
				path := env.Path("dir_with_xattrs")
				if err := os.Mkdir(path, 0o755); err != nil {
					return err
				}
				return setAttributes(env.Host, path, DirAttributes)
			},
		},
		{
			Name:     "sparse leading hole",
			Provides: []string{"sparse_leading_hole"},
			Do: func(ctx context.Context, env *Env) error {
				return writeAt(env.Path("sparse_leading_hole"), blockOf('T', bs), (SparseBlocks-1)*bs)
			},
		},
		{
			Name:     "sparse trailing hole",
			Provides: []string{"sparse_trailing_hole"},
			Do: func(ctx context.Context, env *Env) error {
				path := env.Path("sparse_trailing_hole")
				if err := writeFile(path, blockOf('H', bs)); err != nil {
					return err
				}
				return env.Host.Truncate(path, SparseBlocks*bs)
			},
		},
		{
			Name:     "sparse unwritten extent",
			Provides: []string{"sparse_uninit"},
			Do: func(ctx context.Context, env *Env) error {
				path := env.Path("sparse_uninit")
				if err := writeFile(path, blockOf('U', bs)); err != nil {
					return err
				}
				return env.Host.Allocate(path, bs, (SparseBlocks-1)*bs)
			},
		},
		{
			Name:       "block device",
			Provides:   []string{"dev_block"},
			Privileged: true,
			Do: func(ctx context.Context, env *Env) error {
				return env.Host.MakeDevice(ctx, env.Path("dev_block"), fs.BlockDeviceNode, 7, 0)
			},
		},
		{
			Name:       "char device",
			Provides:   []string{"dev_char"},
			Privileged: true,
			Do: func(ctx context.Context, env *Env) error {
				return env.Host.MakeDevice(ctx, env.Path("dev_char"), fs.CharDeviceNode, 1, 3)
			},
		},
		{
			Name:     "fifo",
			Provides: []string{"fifo"},
			Do: func(ctx context.Context, env *Env) error {
				return env.Host.MakeFifo(env.Path("fifo"))
			},
		},
	}

	if opts.Encrypted {
		steps = append(steps, encryptedStep())
	}
	if opts.LargeDir {
		steps = append(steps, largeDirSeedStep())
	}

	return steps
}

// BigFileData is the content of big_file.
func BigFileData() []byte {
	data := make([]byte, BigFileSize)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func setAttributes(host fs.Host, path string, attrs []Attribute) error {
	for _, attr := range attrs {
		if err := host.SetAttribute(path, attr.Name, attr.Value); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeAt(path string, data []byte, offset int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		f.Close()
		return fmt.Errorf("write %s at %d: %w", path, offset, err)
	}
	return f.Close()
}

func blockOf(b byte, size int64) []byte {
	return bytes.Repeat([]byte{b}, int(size))
}
