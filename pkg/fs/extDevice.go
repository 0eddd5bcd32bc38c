package fs

import (
	"context"
	"fmt"
	"log/slog"
)

// ExtBuilder builds ext2/ext3/ext4 images. The zero-filled allocation happens in
// Go, formatting is delegated to a Formatter.
type ExtBuilder struct {
	formatter Formatter
	logger    *slog.Logger
}

func NewExtBuilder(formatter Formatter) *ExtBuilder {
	return &ExtBuilder{
		formatter: formatter,
		logger:    slog.Default(),
	}
}

// WithLogger replaces the default logger.
func (b *ExtBuilder) WithLogger(logger *slog.Logger) *ExtBuilder {
	b.logger = logger
	return b
}

func (b *ExtBuilder) NewDevice(ctx context.Context, opts BlockDeviceOptions) (*BlockDevice, error) {
	b.logger.DebugContext(ctx, "allocating backing store",
		"path", opts.OutputFilePath,
		"size_bytes", opts.SizeBytes,
		"sector_size", opts.SectorSize)

	if err := AllocateZeroed(opts.OutputFilePath, opts.SizeBytes, opts.SectorSize); err != nil {
		return nil, fmt.Errorf("allocate backing store %s: %w", opts.OutputFilePath, err)
	}

	err := b.formatter.Format(ctx, FormatRequest{
		Path:       opts.OutputFilePath,
		Kind:       opts.Kind,
		BlockSize:  opts.BlockSize,
		InodeSize:  opts.InodeSize,
		InodeRatio: opts.InodeRatio,
		Features:   opts.Features,
		Label:      opts.Label,
		UUID:       opts.UUID,
	})
	if err != nil {
		return nil, fmt.Errorf("format %s as %s: %w", opts.OutputFilePath, opts.Kind, err)
	}

	b.logger.InfoContext(ctx, "image formatted",
		"path", opts.OutputFilePath,
		"kind", opts.Kind,
		"size_mb", opts.SizeBytes/1024/1024)

	return &BlockDevice{
		Path:       opts.OutputFilePath,
		SizeBytes:  opts.SizeBytes,
		SectorSize: opts.SectorSize,
		Kind:       opts.Kind,
		Label:      opts.Label,
		UUID:       opts.UUID,
	}, nil
}
