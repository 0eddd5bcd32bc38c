package populate

import (
	"context"
	"fmt"
	"os"
	"path"
)

const (
	BoundaryDir  = "boundary"
	directBlocks = 12
)

// Tier is one block addressing tier and the apparent length that fills it.
type Tier struct {
	Name string
	Size int64
}

// BoundaryTiers returns the addressing tiers for the block size. The maximum
// file size tier only exists for extent mapped huge_file filesystems.
func BoundaryTiers(blockSize int, extents, hugeFile bool) []Tier {
	bs := int64(blockSize)
	p := bs / 4 // block pointers per indirect block

	tiers := []Tier{
		{Name: "direct", Size: directBlocks * bs},
		{Name: "single_indirect", Size: (directBlocks + p) * bs},
		{Name: "double_indirect", Size: (directBlocks + p + p*p) * bs},
	}
	if hugeFile && extents {
		tiers = append(tiers, Tier{Name: "max_size", Size: (1<<32 - 1) * bs})
	}
	return tiers
}

// BoundaryLine is the content that ends each boundary file.
func BoundaryLine(t Tier) string {
	return t.Name + " boundary\n"
}

func BoundaryStep(tiers []Tier) Step {
	provides := []string{BoundaryDir}
	for _, t := range tiers {
		provides = append(provides, path.Join(BoundaryDir, t.Name))
	}

	return Step{
		Name:     "sparse boundaries",
		Provides: provides,
		Do: func(ctx context.Context, env *Env) error {
			return Boundary(ctx, env, tiers)
		},
	}
}

// Boundary creates boundary/<tier> for every tier: a hole up to the tier
// length with one line of content ending at its last byte.
func Boundary(ctx context.Context, env *Env, tiers []Tier) error {
	dir := env.Path(BoundaryDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, t := range tiers {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := BoundaryLine(t)
		if t.Size < int64(len(line)) {
			return fmt.Errorf("tier %s: size %d is shorter than its content", t.Name, t.Size)
		}

		p := path.Join(dir, t.Name)
		if err := writeFile(p, nil); err != nil {
			return err
		}
		if err := env.Host.Truncate(p, t.Size); err != nil {
			return err
		}
		if err := overwriteAt(p, []byte(line), t.Size-int64(len(line))); err != nil {
			return err
		}

		env.Logger.DebugContext(ctx, "boundary file created", "tier", t.Name, "size", t.Size)
	}

	return nil
}

func overwriteAt(path string, data []byte, offset int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		f.Close()
		return fmt.Errorf("write %s at %d: %w", path, offset, err)
	}
	return f.Close()
}
