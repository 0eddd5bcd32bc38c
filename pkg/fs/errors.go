package fs

import (
	"errors"
	"fmt"
)

var (
	// Image errors
	ErrSizeNotSectorAligned = errors.New("size is not a positive multiple of the sector size")
	ErrUnknownKind          = errors.New("unknown filesystem kind")

	// Host operation errors
	ErrUnknownDeviceKind = errors.New("unknown device node kind")
)

// CommandError carries the combined output of a failed external tool.
type CommandError struct {
	Cmd    string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Cmd, e.Err, e.Output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
