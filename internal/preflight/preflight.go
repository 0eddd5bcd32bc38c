// Package preflight verifies the host toolchain before any image is touched.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/maxdollinger/specimen.io/internal/matrix"
)

var (
	ErrMissingTool  = errors.New("required tool not found")
	ErrMissingInput = errors.New("required input file not readable")
)

// MissingToolError names the first tool that could not be resolved.
type MissingToolError struct {
	Tool string
	Err  error
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("%s: %q: %v", ErrMissingTool, e.Tool, e.Err)
}

func (e *MissingToolError) Unwrap() []error {
	return []error{ErrMissingTool, e.Err}
}

// LookupFunc resolves a tool name to an executable path.
type LookupFunc func(name string) (string, error)

// Check resolves every tool in order and stops at the first missing one.
func Check(tools []string, lookup LookupFunc) error {
	if lookup == nil {
		lookup = exec.LookPath
	}

	for _, tool := range tools {
		if _, err := lookup(tool); err != nil {
			return &MissingToolError{Tool: tool, Err: err}
		}
	}

	return nil
}

// CheckFiles makes sure every input file exists and can be opened.
func CheckFiles(paths []string) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMissingInput, err)
		}
		_ = f.Close()
	}
	return nil
}

// RequiredTools lists the tools the given jobs will invoke, without duplicates
// and in a stable order.
func RequiredTools(jobs []matrix.Job, isRoot bool) []string {
	var tools []string
	seen := make(map[string]bool)
	add := func(names ...string) {
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				tools = append(tools, name)
			}
		}
	}

	if !isRoot {
		add("sudo")
	}
	add("mount", "umount", "chown", "mknod")

	for _, job := range jobs {
		add("mkfs." + string(job.Kind))
		if job.Has(matrix.PopulateEncrypted) {
			add("keyctl", "e4crypt")
		}
	}

	return tools
}

// RequiredFiles lists input files the jobs read, such as character databases.
func RequiredFiles(jobs []matrix.Job) []string {
	var files []string
	seen := make(map[string]bool)
	for _, job := range jobs {
		if job.Has(matrix.PopulateUnicode) && !seen[job.UnicodeDB] {
			seen[job.UnicodeDB] = true
			files = append(files, job.UnicodeDB)
		}
	}
	return files
}
