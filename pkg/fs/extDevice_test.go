package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFormatter struct {
	requests []FormatRequest
	err      error
}

func (f *fakeFormatter) Format(ctx context.Context, req FormatRequest) error {
	f.requests = append(f.requests, req)
	return f.err
}

func TestExtBuilderNewDevice(t *testing.T) {
	formatter := &fakeFormatter{}
	builder := NewExtBuilder(formatter)
	path := filepath.Join(t.TempDir(), "ext2_block_1024.bin")
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("ext2_block_1024"))

	device, err := builder.NewDevice(context.Background(), BlockDeviceOptions{
		OutputFilePath: path,
		SizeBytes:      4 * 1024 * 1024,
		SectorSize:     512,
		Kind:           "ext2",
		BlockSize:      1024,
		Label:          "specimen",
		UUID:           id,
	})
	require.NoError(t, err)

	assert.Equal(t, path, device.Path)
	assert.Equal(t, int64(4*1024*1024), device.SizeBytes)
	assert.Equal(t, int64(512), device.SectorSize)
	assert.Equal(t, "ext2", device.Kind)
	assert.Equal(t, id, device.UUID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4*1024*1024), info.Size())

	require.Len(t, formatter.requests, 1)
	assert.Equal(t, FormatRequest{
		Path:      path,
		Kind:      "ext2",
		BlockSize: 1024,
		Label:     "specimen",
		UUID:      id,
	}, formatter.requests[0])
}

func TestExtBuilderFormatterFailure(t *testing.T) {
	formatter := &fakeFormatter{err: errors.New("invalid feature for block size")}
	builder := NewExtBuilder(formatter)

	_, err := builder.NewDevice(context.Background(), BlockDeviceOptions{
		OutputFilePath: filepath.Join(t.TempDir(), "bad.bin"),
		SizeBytes:      1024 * 1024,
		SectorSize:     512,
		Kind:           "ext4",
		BlockSize:      1024,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, formatter.err)
}

func TestExtBuilderSkipsFormatterOnBadSize(t *testing.T) {
	formatter := &fakeFormatter{}
	builder := NewExtBuilder(formatter)

	_, err := builder.NewDevice(context.Background(), BlockDeviceOptions{
		OutputFilePath: filepath.Join(t.TempDir(), "bad.bin"),
		SizeBytes:      1000,
		SectorSize:     512,
		Kind:           "ext2",
		BlockSize:      1024,
	})
	assert.ErrorIs(t, err, ErrSizeNotSectorAligned)
	assert.Empty(t, formatter.requests)
}
