package fs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FormatRequest is everything the formatter needs to lay a filesystem onto an
// allocated backing store.
type FormatRequest struct {
	Path       string
	Kind       string
	BlockSize  int
	InodeSize  int
	InodeRatio int
	Features   []string
	Label      string
	UUID       uuid.UUID
}

type Formatter interface {
	Format(ctx context.Context, req FormatRequest) error
}

// MkfsFormatter shells out to mkfs.<kind> from e2fsprogs.
type MkfsFormatter struct {
	runner   Runner
	fakeTime int64
}

// NewMkfsFormatter creates a formatter. A non-zero fakeTime pins every
// timestamp mkfs writes, so identical requests produce identical images.
func NewMkfsFormatter(runner Runner, fakeTime int64) *MkfsFormatter {
	return &MkfsFormatter{
		runner:   runner,
		fakeTime: fakeTime,
	}
}

func (f *MkfsFormatter) Format(ctx context.Context, req FormatRequest) error {
	cmd, err := f.Command(req)
	if err != nil {
		return err
	}
	return f.runner.Run(ctx, cmd)
}

// Command returns the mkfs invocation for req.
func (f *MkfsFormatter) Command(req FormatRequest) (Command, error) {
	switch req.Kind {
	case "ext2", "ext3", "ext4":
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}

	args := []string{"-F", "-q", "-b", strconv.Itoa(req.BlockSize)}
	if req.InodeSize > 0 {
		args = append(args, "-I", strconv.Itoa(req.InodeSize))
	}
	if req.InodeRatio > 0 {
		args = append(args, "-i", strconv.Itoa(req.InodeRatio))
	}
	if len(req.Features) > 0 {
		args = append(args, "-O", strings.Join(req.Features, ","))
	}
	if req.Label != "" {
		args = append(args, "-L", req.Label)
	}
	if req.UUID != uuid.Nil {
		args = append(args, "-U", req.UUID.String(), "-E", "hash_seed="+req.UUID.String())
	}
	args = append(args, req.Path)

	var env []string
	if f.fakeTime > 0 {
		env = append(env, "E2FSPROGS_FAKE_TIME="+strconv.FormatInt(f.fakeTime, 10))
	}

	return Command{Name: "mkfs." + req.Kind, Args: args, Env: env}, nil
}
