// Package populate fills a mounted specimen image with entities. Every populator
// works on the tree of an open mount.Session and nothing else.
package populate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maxdollinger/specimen.io/internal/mount"
	"github.com/maxdollinger/specimen.io/pkg/fs"
)

// Env is what a step gets to work with.
type Env struct {
	Session *mount.Session
	Host    fs.Host
	Runner  fs.Runner
	Logger  *slog.Logger
}

func NewEnv(session *mount.Session, host fs.Host, runner fs.Runner) *Env {
	return &Env{
		Session: session,
		Host:    host,
		Runner:  runner,
		Logger:  slog.Default(),
	}
}

// WithLogger replaces the default logger.
func (e *Env) WithLogger(logger *slog.Logger) *Env {
	e.Logger = logger
	return e
}

// Path resolves an entity path relative to the mount root.
func (e *Env) Path(rel string) string {
	return e.Session.Path(rel)
}

// Step is one ordered unit of population. Requires lists entity paths an
// earlier step must provide.
type Step struct {
	Name       string
	Provides   []string
	Requires   []string
	Privileged bool
	Do         func(ctx context.Context, env *Env) error
}

// Validate checks that every requirement is provided by an earlier step.
func Validate(steps []Step) error {
	provided := make(map[string]bool)
	for _, step := range steps {
		for _, req := range step.Requires {
			if !provided[filepath.Clean(req)] {
				return &StepError{Step: step.Name, Err: fmt.Errorf("%w: %s", ErrUnmetPrecondition, req)}
			}
		}
		for _, p := range step.Provides {
			provided[filepath.Clean(p)] = true
		}
	}
	return nil
}

// Run validates steps and executes them in order, stopping at the first
// failure.
func Run(ctx context.Context, env *Env, steps []Step) error {
	if err := Validate(steps); err != nil {
		return err
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}

		start := time.Now()
		if err := step.Do(ctx, env); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}
		env.Logger.DebugContext(ctx, "step done", "step", step.Name, "privileged", step.Privileged, "took", time.Since(start))
	}

	return nil
}

// Entities lists every path the steps provide, in order.
func Entities(steps []Step) []string {
	var paths []string
	for _, step := range steps {
		paths = append(paths, step.Provides...)
	}
	return paths
}
