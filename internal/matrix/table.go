package matrix

// Default is the maintained specimen table. Add a row to add an image; the
// expansion keeps row order.
func Default(unicodeDB string) []Definition {
	catalog := []Populator{PopulateCatalog}
	withBoundary := []Populator{PopulateCatalog, PopulateBoundary}

	return []Definition{
		{Kind: Ext2, BlockSize: 1024, SizeBytes: 4 * MiB, Populators: catalog},
		{Kind: Ext2, SizeBytes: 8 * MiB, Populators: withBoundary},
		{Kind: Ext2, BlockSize: 1024, InodeSize: 128, SizeBytes: 4 * MiB, Populators: withBoundary},
		{Kind: Ext3, BlockSize: 1024, SizeBytes: 8 * MiB, Populators: withBoundary},
		{Kind: Ext3, SizeBytes: 16 * MiB, Populators: withBoundary},
		{Kind: Ext4, SizeBytes: 16 * MiB, Populators: withBoundary},
		{Kind: Ext4, BlockSize: 1024, SizeBytes: 8 * MiB, Populators: withBoundary},
		{Kind: Ext4, SizeBytes: 16 * MiB, Features: []string{"inline_data"}, Populators: catalog},
		{Kind: Ext4, SizeBytes: 16 * MiB, Features: []string{"^extent", "^64bit"}, Populators: withBoundary},
		{Kind: Ext4, SizeBytes: 16 * MiB, Features: []string{"^metadata_csum", "^64bit"}, Populators: catalog},
		{Kind: Ext4, SizeBytes: 16 * MiB, Features: []string{"^dir_index"}, Populators: catalog},
		{Kind: Ext4, SizeBytes: 16 * MiB, Features: []string{"huge_file"}, Populators: withBoundary},
		{
			Kind:       Ext4,
			SizeBytes:  16 * MiB,
			Features:   []string{"encrypt"},
			Populators: []Populator{PopulateCatalog, PopulateEncrypted},
		},
		{
			Kind:           Ext4,
			BlockSize:      1024,
			InodeRatio:     1024,
			Suffix:         "large_dir",
			Populators:     []Populator{PopulateCatalog, PopulateLargeDir},
			LargeFileCount: 100000,
		},
		{
			Kind:       Ext4,
			BlockSize:  1024,
			InodeRatio: 1024,
			SizeBytes:  64 * MiB,
			Suffix:     "unicode",
			Populators: []Populator{PopulateCatalog, PopulateUnicode},
			UnicodeDB:  unicodeDB,
		},
	}
}
