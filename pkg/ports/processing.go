package ports

import (
	"context"
	"errors"
	"time"

	"github.com/audiostudio/conductor/pkg/domain"
)

// RetryDelayer is implemented by errors carrying a server-provided
// retry hint, such as an HTTP 429 Retry-After.
type RetryDelayer interface {
	RetryDelay() time.Duration
}

// RetryDelay extracts a retry hint from an error chain.
func RetryDelay(err error) (time.Duration, bool) {
	var delayer RetryDelayer
	if errors.As(err, &delayer) {
		return delayer.RetryDelay(), true
	}
	return 0, false
}

// JobState is the remote job lifecycle state reported by the processing
// service.
type JobState string

const (
	JobStateSubmitted JobState = "SUBMITTED"
	JobStateQueued    JobState = "QUEUED"
	JobStatePending   JobState = "PENDING"
	JobStateRunning   JobState = "RUNNING"
	JobStateSucceeded JobState = "SUCCEEDED"
	JobStateFailed    JobState = "FAILED"
	JobStateCancelled JobState = "CANCELLED"
)

// Terminal reports whether the state ends a job.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateCancelled
}

// UploadTarget is an issued destination for one raw file upload.
type UploadTarget struct {
	UploadURL   string
	ResourceURI string
	TTLSeconds  int
}

// SubmitOptions carries the recognized diarization parameters harvested
// from module parameter maps. Nil pointers mean "not set".
type SubmitOptions struct {
	Model               string
	NumSpeakers         *int
	MinSpeakers         *int
	MaxSpeakers         *int
	TurnLevelConfidence bool
	Exclusive           bool
	Confidence          bool
	UseGPU              bool
	ProgressMonitoring  bool
	MemoryOptimized     bool
	EnhancedFeatures    bool
}

// SubmitResult is the final record returned by the processing service.
type SubmitResult struct {
	Status       string
	OutputURI    string
	SpeakerCount int
	SegmentCount int
}

// JobStatus is one status read of an asynchronous job.
type JobStatus struct {
	JobID   string
	State   JobState
	Message string
	Result  *SubmitResult
}

// StatusEvent is one push-style status update for a subscribed job.
type StatusEvent struct {
	JobID     string
	State     JobState
	Message   string
	Result    *SubmitResult
	Timestamp time.Time
}

// Processing is the remote audio-processing collaborator consumed by
// the orchestrator. Implementations must be safe for concurrent use.
type Processing interface {
	// Health checks the service is reachable and the credentials valid.
	Health(ctx context.Context) error

	// RequestUploadTarget issues an upload destination for one file.
	RequestUploadTarget(ctx context.Context, filename, contentType string) (UploadTarget, error)

	// UploadBytes uploads raw file bytes to a previously issued target.
	UploadBytes(ctx context.Context, uploadURL string, data []byte, contentType string) error

	// SubmitSync submits a job and blocks until the remote side returns
	// a final result record.
	SubmitSync(ctx context.Context, resourceURI string, opts SubmitOptions) (SubmitResult, error)

	// SubmitJob submits a job and returns its handle for polling or
	// streaming.
	SubmitJob(ctx context.Context, resourceURI string, opts SubmitOptions) (string, error)

	// GetJobStatus reads the current status of a submitted job.
	GetJobStatus(ctx context.Context, jobID string) (JobStatus, error)

	// CancelJob requests cancellation of a submitted job on the remote
	// side. Cancelling a job that already reached a terminal state is
	// not an error.
	CancelJob(ctx context.Context, jobID string) error

	// SubscribeProgress streams status events for a job until a terminal
	// event or context cancellation. The channel is closed by the
	// implementation.
	SubscribeProgress(ctx context.Context, jobID string) (<-chan StatusEvent, error)

	// FetchResultObject retrieves the segment list behind an output
	// resource URI. Implementations must accept both the wrapper-object
	// and bare-array payload shapes.
	FetchResultObject(ctx context.Context, resourceURI string) ([]domain.SpeakerSegment, error)
}
