package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/audiostudio/conductor/pkg/domain"
)

// ErrNoInputFile is returned when a run is started without a file.
var ErrNoInputFile = errors.New("no input file supplied")

// ErrPollTimeout is returned when the poll loop exceeds the configured
// maximum wait.
var ErrPollTimeout = errors.New("processing job did not finish within the maximum wait")

// ValidationError reports structural problems that abort a run before
// any network I/O.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "pipeline validation failed: " + strings.Join(e.Problems, "; ")
}

// UploadError reports a failed upload-target request or byte upload.
type UploadError struct {
	Op  string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed (%s): %v", e.Op, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ProcessingError reports a failed remote submit or a terminal
// FAILED/CANCELLED job status.
type ProcessingError struct {
	JobID   string
	Status  string
	Message string
	Err     error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("processing failed: %v", e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("processing job %s ended with status %s: %s", e.JobID, e.Status, e.Message)
	}
	return fmt.Sprintf("processing job %s ended with status %s", e.JobID, e.Status)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// RunFailure carries the internal attribution of a failed run: the
// phase it failed in and, when known, the module it is attributable to.
// The store projects this to module statuses per the configured
// failure mode.
type RunFailure struct {
	Phase    domain.ExecutionPhase
	ModuleID string
	Err      error
}

func (f *RunFailure) Error() string {
	return fmt.Sprintf("run failed during %s: %v", f.Phase, f.Err)
}

func (f *RunFailure) Unwrap() error { return f.Err }
