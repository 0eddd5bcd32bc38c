package fs

import (
	"bufio"
	"fmt"
	"os"
)

// AllocateZeroed writes sizeBytes/sectorSize zero sectors to path. Unlike a
// sparse truncate every sector is backed on the host.
func AllocateZeroed(path string, sizeBytes, sectorSize int64) error {
	if sectorSize <= 0 || sizeBytes <= 0 || sizeBytes%sectorSize != 0 {
		return fmt.Errorf("%w: %d bytes in %d byte sectors", ErrSizeNotSectorAligned, sizeBytes, sectorSize)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	sector := make([]byte, sectorSize)
	writer := bufio.NewWriterSize(f, 1<<20)
	for n := sizeBytes / sectorSize; n > 0; n-- {
		if _, err := writer.Write(sector); err != nil {
			return fmt.Errorf("write sector: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush sectors: %w", err)
	}

	return f.Sync()
}
