package fs

import (
	"context"

	"github.com/google/uuid"
)

type BlockDeviceBuilder interface {
	// NewDevice allocates a zero-filled backing store and formats it.
	NewDevice(ctx context.Context, opts BlockDeviceOptions) (*BlockDevice, error)
}

// BlockDeviceOptions specifies how to create a block device image
type BlockDeviceOptions struct {
	OutputFilePath string    // where to write the image, overwritten if present
	SizeBytes      int64     // total image size, multiple of SectorSize
	SectorSize     int64     // sector size used to allocate the backing store
	Kind           string    // ext2, ext3 or ext4
	BlockSize      int       // filesystem block size
	InodeSize      int       // 0 keeps the formatter default
	InodeRatio     int       // bytes per inode, 0 keeps the formatter default
	Features       []string  // feature toggles, "^name" disables
	Label          string    // filesystem label (optional)
	UUID           uuid.UUID // filesystem UUID and directory hash seed
}

// BlockDevice is a formatted backing store. It stays on disk after the build.
type BlockDevice struct {
	Path       string
	SizeBytes  int64
	SectorSize int64
	Kind       string
	Label      string
	UUID       uuid.UUID
}

type NoOpBlockDeviceBuilder struct{}

func NewNoOpBlockDeviceBuilder() *NoOpBlockDeviceBuilder {
	return &NoOpBlockDeviceBuilder{}
}

func (b *NoOpBlockDeviceBuilder) NewDevice(ctx context.Context, opts BlockDeviceOptions) (*BlockDevice, error) {
	// No-op: only describes the image that would have been built
	return &BlockDevice{
		Path:       opts.OutputFilePath,
		SizeBytes:  opts.SizeBytes,
		SectorSize: opts.SectorSize,
		Kind:       opts.Kind,
		Label:      opts.Label,
		UUID:       opts.UUID,
	}, nil
}
