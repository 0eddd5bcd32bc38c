package populate

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
)

const (
	LargeDirName = "big_dir"

	// the seed step creates file_1 and FILE_2
	firstLargeIndex = 3
	cancelCheck     = 1024
)

// LargeFileName returns the name of the i-th file in big_dir: odd indices
// are lower case, even ones upper case.
func LargeFileName(i int) string {
	if i%2 == 0 {
		return "FILE_" + strconv.Itoa(i)
	}
	return "file_" + strconv.Itoa(i)
}

func largeDirSeedStep() Step {
	return Step{
		Name:     "large dir seed",
		Provides: []string{LargeDirName, filepath.Join(LargeDirName, LargeFileName(1)), filepath.Join(LargeDirName, LargeFileName(2))},
		Do: func(ctx context.Context, env *Env) error {
			dir := env.Path(LargeDirName)
			if err := os.Mkdir(dir, 0o755); err != nil {
				return err
			}
			for i := 1; i < firstLargeIndex; i++ {
				if err := writeFile(filepath.Join(dir, LargeFileName(i)), nil); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// LargeDirStep fills big_dir with count more files.
func LargeDirStep(count int) Step {
	return Step{
		Name:     "large dir",
		Requires: []string{LargeDirName},
		Do: func(ctx context.Context, env *Env) error {
			_, err := LargeDir(ctx, env, count)
			return err
		},
	}
}

// LargeDir creates count empty files in big_dir, indices 3 to count+2. It
// returns how many it created.
func LargeDir(ctx context.Context, env *Env, count int) (int, error) {
	dir := env.Path(LargeDirName)

	created := 0
	for i := firstLargeIndex; i < firstLargeIndex+count; i++ {
		if created%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return created, err
			}
		}

		f, err := os.OpenFile(filepath.Join(dir, LargeFileName(i)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return created, err
		}
		if err := f.Close(); err != nil {
			return created, err
		}
		created++
	}

	env.Logger.InfoContext(ctx, "large dir populated", "files", created)
	return created, nil
}
