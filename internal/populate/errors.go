package populate

import (
	"errors"
	"fmt"
)

var (
	ErrUnmetPrecondition  = errors.New("step requires an entity no earlier step provides")
	ErrNoEncryptionPolicy = errors.New("no encryption key in the session keyring")
	ErrInvalidUnicodeDB   = errors.New("invalid unicode database")
)

// StepError names the catalog step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
