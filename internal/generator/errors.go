package generator

import (
	"errors"
	"fmt"
)

var ErrOutputExists = errors.New("output directory already exists")

// Stage is the part of a job that failed.
type Stage string

const (
	StageBuild    Stage = "build"
	StageMount    Stage = "mount"
	StagePopulate Stage = "populate"
	StageUnmount  Stage = "unmount"
	StageRecord   Stage = "record"
)

// JobError aborts a run. It names the job and stage that failed.
type JobError struct {
	Job   string
	Stage Stage
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: %s: %v", e.Job, e.Stage, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
