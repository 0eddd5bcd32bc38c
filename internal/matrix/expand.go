package matrix

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultBlockSize  = 4096
	DefaultSectorSize = 512

	// size class of large-directory specimens: base + count*entry
	largeBaseBytes  = 8 * MiB
	largeEntryBytes = 1280

	maxLabelLen = 16
)

// Expand turns the table into jobs in table order. One bad row fails the whole
// expansion; nothing is skipped.
func Expand(defs []Definition) ([]Job, error) {
	jobs := make([]Job, 0, len(defs))
	names := make(map[string]int, len(defs))

	for i, def := range defs {
		job, err := expandOne(def)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		if prev, ok := names[job.Name]; ok {
			return nil, fmt.Errorf("row %d: %w: %s (row %d)", i, ErrDuplicateName, job.Name, prev)
		}
		names[job.Name] = i

		jobs = append(jobs, job)
	}

	return jobs, nil
}

func expandOne(def Definition) (Job, error) {
	if !def.Kind.Valid() {
		return Job{}, invalid("unknown filesystem kind %q", def.Kind)
	}

	features, err := ParseFeatures(def.Features)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	job := Job{
		Kind:           def.Kind,
		BlockSize:      def.BlockSize,
		InodeSize:      def.InodeSize,
		InodeRatio:     def.InodeRatio,
		SectorSize:     def.SectorSize,
		SizeBytes:      def.SizeBytes,
		Features:       features,
		Label:          def.Label,
		Populators:     def.Populators,
		LargeFileCount: def.LargeFileCount,
		UnicodeDB:      def.UnicodeDB,
	}
	if job.BlockSize == 0 {
		job.BlockSize = DefaultBlockSize
	}
	if job.SectorSize == 0 {
		job.SectorSize = DefaultSectorSize
	}
	if job.SizeBytes == 0 && job.LargeFileCount > 0 {
		job.SizeBytes = roundUp(largeBaseBytes+int64(job.LargeFileCount)*largeEntryBytes, job.SectorSize)
	}

	if err := validate(job); err != nil {
		return Job{}, err
	}
	job.Name = name(job, def.Suffix)

	return job, nil
}

func validate(job Job) error {
	if !powerOfTwo(job.BlockSize) || job.BlockSize < 1024 || job.BlockSize > 65536 {
		return invalid("block size %d", job.BlockSize)
	}
	if job.InodeSize != 0 && (!powerOfTwo(job.InodeSize) || job.InodeSize < 128 || job.InodeSize > job.BlockSize) {
		return invalid("inode size %d with block size %d", job.InodeSize, job.BlockSize)
	}
	if job.InodeRatio != 0 && (!powerOfTwo(job.InodeRatio) || job.InodeRatio < job.BlockSize || job.InodeRatio > 64*MiB) {
		return invalid("inode ratio %d with block size %d", job.InodeRatio, job.BlockSize)
	}
	if job.SectorSize != 512 && job.SectorSize != 4096 {
		return invalid("sector size %d", job.SectorSize)
	}
	if job.SizeBytes <= 0 || job.SizeBytes%job.SectorSize != 0 {
		return invalid("size %d is not a positive multiple of sector size %d", job.SizeBytes, job.SectorSize)
	}
	if len(job.Label) > maxLabelLen {
		return invalid("label %q longer than %d bytes", job.Label, maxLabelLen)
	}

	return validatePopulators(job)
}

func validatePopulators(job Job) error {
	if len(job.Populators) == 0 || job.Populators[0] != PopulateCatalog {
		return invalid("populators must start with %s", PopulateCatalog)
	}

	seen := make(map[Populator]bool, len(job.Populators))
	for _, p := range job.Populators {
		if seen[p] {
			return invalid("populator %s listed twice", p)
		}
		seen[p] = true

		switch p {
		case PopulateCatalog, PopulateBoundary:
		case PopulateEncrypted:
			if job.Kind != Ext4 || !job.Features.Enabled("encrypt") {
				return invalid("%s needs ext4 with the encrypt feature", p)
			}
		case PopulateLargeDir:
			if job.LargeFileCount <= 0 {
				return invalid("%s needs a positive file count", p)
			}
		case PopulateUnicode:
			if job.UnicodeDB == "" {
				return invalid("%s needs a character database", p)
			}
		default:
			return invalid("unknown populator %q", p)
		}
	}

	if job.LargeFileCount > 0 && !seen[PopulateLargeDir] {
		return invalid("file count %d without %s", job.LargeFileCount, PopulateLargeDir)
	}

	return nil
}

// name encodes kind plus every non-default parameter, e.g. ext2_block_1024 or
// ext4_inline_data_no_extent.
func name(job Job, suffix string) string {
	parts := []string{string(job.Kind)}
	if job.BlockSize != DefaultBlockSize {
		parts = append(parts, "block", strconv.Itoa(job.BlockSize))
	}
	if job.InodeSize != 0 {
		parts = append(parts, "inode", strconv.Itoa(job.InodeSize))
	}
	for _, t := range job.Features {
		if t.Enable {
			parts = append(parts, t.Name)
		} else {
			parts = append(parts, "no", t.Name)
		}
	}
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return strings.Join(parts, "_")
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidDefinition}, args...)...)
}

func powerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func roundUp(n, multiple int64) int64 {
	return (n + multiple - 1) / multiple * multiple
}
