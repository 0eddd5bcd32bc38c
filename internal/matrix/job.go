package matrix

import "fmt"

type Kind string

const (
	Ext2 Kind = "ext2"
	Ext3 Kind = "ext3"
	Ext4 Kind = "ext4"
)

func (k Kind) Valid() bool {
	switch k {
	case Ext2, Ext3, Ext4:
		return true
	}
	return false
}

// Populator names one populator a job runs inside its mount session.
type Populator string

const (
	PopulateCatalog   Populator = "catalog"
	PopulateEncrypted Populator = "encrypted"
	PopulateLargeDir  Populator = "large_dir"
	PopulateBoundary  Populator = "boundary"
	PopulateUnicode   Populator = "unicode"
)

const (
	KiB = 1024
	MiB = 1024 * KiB
)

// Definition is one human-authored row of the specimen table.
type Definition struct {
	Kind       Kind
	BlockSize  int      // 0 means DefaultBlockSize
	InodeSize  int      // 0 keeps the formatter default
	InodeRatio int      // bytes per inode, 0 keeps the formatter default
	SectorSize int64    // 0 means DefaultSectorSize
	SizeBytes  int64    // 0 derives the size from LargeFileCount
	Features   []string // mke2fs toggles, "^name" disables
	Label      string   // filesystem volume label
	Suffix     string   // distinguishes rows that only differ in populators

	Populators     []Populator
	LargeFileCount int
	UnicodeDB      string
}

// Job is a fully parameterized specimen build.
type Job struct {
	Name       string
	Kind       Kind
	BlockSize  int
	InodeSize  int
	InodeRatio int
	SectorSize int64
	SizeBytes  int64
	Features   Features
	Label      string

	Populators     []Populator
	LargeFileCount int
	UnicodeDB      string
}

func (j Job) Has(p Populator) bool {
	for _, have := range j.Populators {
		if have == p {
			return true
		}
	}
	return false
}

// Extents reports whether regular files are extent mapped. mke2fs takes both
// "extent" and "extents".
func (j Job) Extents() bool {
	return j.Kind == Ext4 && !j.Features.Disabled("extent") && !j.Features.Disabled("extents")
}

// HugeFile reports whether the job explicitly asks for huge_file.
func (j Job) HugeFile() bool {
	return j.Features.Enabled("huge_file")
}

func (j Job) FileName() string {
	return j.Name + ".bin"
}

func (j Job) String() string {
	return fmt.Sprintf("%s (%s, block %d, %d MiB)", j.Name, j.Kind, j.BlockSize, j.SizeBytes/MiB)
}
