package fs

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// Command describes one invocation of an external tool.
type Command struct {
	Name       string
	Args       []string
	Env        []string // appended to the inherited environment
	Privileged bool     // needs root on the host
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes external tools. How privileged commands get elevated is up to
// the implementation.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// SudoRunner runs commands directly and prefixes privileged ones with sudo
// unless the process already runs as root.
type SudoRunner struct {
	isRoot bool
	logger *slog.Logger
}

func NewSudoRunner() *SudoRunner {
	return &SudoRunner{
		isRoot: unix.Geteuid() == 0,
		logger: slog.Default(),
	}
}

// WithLogger replaces the default logger.
func (r *SudoRunner) WithLogger(logger *slog.Logger) *SudoRunner {
	r.logger = logger
	return r
}

func (r *SudoRunner) Run(ctx context.Context, c Command) error {
	_, err := r.Output(ctx, c)
	return err
}

func (r *SudoRunner) Output(ctx context.Context, c Command) ([]byte, error) {
	cmd := r.command(ctx, c)
	r.logger.DebugContext(ctx, "running command", "cmd", c.String(), "privileged", c.Privileged)

	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = strings.TrimSpace(string(out))
		}
		return out, &CommandError{Cmd: c.String(), Output: output, Err: err}
	}

	return out, nil
}

func (r *SudoRunner) command(ctx context.Context, c Command) *exec.Cmd {
	if !c.Privileged || r.isRoot {
		cmd := exec.CommandContext(ctx, c.Name, c.Args...)
		if len(c.Env) > 0 {
			cmd.Env = append(os.Environ(), c.Env...)
		}
		return cmd
	}

	// sudo resets the environment, pass it through env(1)
	args := make([]string, 0, len(c.Env)+len(c.Args)+2)
	if len(c.Env) > 0 {
		args = append(args, "env")
		args = append(args, c.Env...)
	}
	args = append(args, c.Name)
	args = append(args, c.Args...)
	return exec.CommandContext(ctx, "sudo", args...)
}
