// Package memory provides an in-process processing collaborator.
// This is for tests and demo mode; it mirrors the behavior of the real
// pyannote adapter without network I/O.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

// Processing is a scripted in-memory implementation of
// ports.Processing. The zero value succeeds every call with the
// configured Result.
type Processing struct {
	mu sync.Mutex

	// Result is returned by successful submits.
	Result ports.SubmitResult
	// Segments backs FetchResultObject.
	Segments []domain.SpeakerSegment

	// JobStates scripts the poll path: successive GetJobStatus calls
	// walk this list, holding the last entry.
	JobStates []ports.JobState
	stateIdx  int

	// Failure knobs. A non-nil error makes the corresponding call fail.
	HealthErr  error
	TargetErr  error
	UploadErr  error
	SubmitErr  error
	StatusErr  error
	CancelErr  error
	FetchErr   error
	FailStatus ports.JobState

	// StatusErrOnce fails the next GetJobStatus call only, then clears.
	StatusErrOnce error

	// Recorded calls.
	Uploads     []string
	Submitted   []ports.SubmitOptions
	Cancelled   []string
	StatusReads int
}

var _ ports.Processing = (*Processing)(nil)

// New creates a fake that succeeds with the given result.
func New(result ports.SubmitResult) *Processing {
	return &Processing{Result: result}
}

func (p *Processing) Health(ctx context.Context) error {
	return p.HealthErr
}

func (p *Processing) RequestUploadTarget(ctx context.Context, filename, contentType string) (ports.UploadTarget, error) {
	if p.TargetErr != nil {
		return ports.UploadTarget{}, p.TargetErr
	}
	id := uuid.NewString()
	return ports.UploadTarget{
		UploadURL:   "memory://upload/" + id,
		ResourceURI: "media://memory/" + id + "/" + filename,
		TTLSeconds:  3600,
	}, nil
}

func (p *Processing) UploadBytes(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	if p.UploadErr != nil {
		return p.UploadErr
	}
	p.mu.Lock()
	p.Uploads = append(p.Uploads, uploadURL)
	p.mu.Unlock()
	return nil
}

func (p *Processing) SubmitSync(ctx context.Context, resourceURI string, opts ports.SubmitOptions) (ports.SubmitResult, error) {
	if p.SubmitErr != nil {
		return ports.SubmitResult{}, p.SubmitErr
	}
	p.mu.Lock()
	p.Submitted = append(p.Submitted, opts)
	p.mu.Unlock()
	if p.FailStatus != "" {
		return ports.SubmitResult{}, fmt.Errorf("job ended with status %s", p.FailStatus)
	}
	return p.Result, nil
}

func (p *Processing) SubmitJob(ctx context.Context, resourceURI string, opts ports.SubmitOptions) (string, error) {
	if p.SubmitErr != nil {
		return "", p.SubmitErr
	}
	p.mu.Lock()
	p.Submitted = append(p.Submitted, opts)
	p.mu.Unlock()
	return "job-" + uuid.NewString(), nil
}

func (p *Processing) GetJobStatus(ctx context.Context, jobID string) (ports.JobStatus, error) {
	p.mu.Lock()
	if p.StatusErrOnce != nil {
		err := p.StatusErrOnce
		p.StatusErrOnce = nil
		p.mu.Unlock()
		return ports.JobStatus{}, err
	}
	p.mu.Unlock()
	if p.StatusErr != nil {
		return ports.JobStatus{}, p.StatusErr
	}

	p.mu.Lock()
	p.StatusReads++
	state := ports.JobStateSucceeded
	if len(p.JobStates) > 0 {
		if p.stateIdx >= len(p.JobStates) {
			p.stateIdx = len(p.JobStates) - 1
		}
		state = p.JobStates[p.stateIdx]
		p.stateIdx++
	} else if p.FailStatus != "" {
		state = p.FailStatus
	}
	p.mu.Unlock()

	status := ports.JobStatus{JobID: jobID, State: state}
	if state == ports.JobStateSucceeded {
		result := p.Result
		status.Result = &result
	}
	return status, nil
}

func (p *Processing) CancelJob(ctx context.Context, jobID string) error {
	if p.CancelErr != nil {
		return p.CancelErr
	}
	p.mu.Lock()
	p.Cancelled = append(p.Cancelled, jobID)
	p.mu.Unlock()
	return nil
}

func (p *Processing) SubscribeProgress(ctx context.Context, jobID string) (<-chan ports.StatusEvent, error) {
	events := make(chan ports.StatusEvent, 8)
	go func() {
		defer close(events)
		for {
			status, err := p.GetJobStatus(ctx, jobID)
			if err != nil {
				return
			}
			event := ports.StatusEvent{
				JobID:     jobID,
				State:     status.State,
				Result:    status.Result,
				Timestamp: time.Now().UTC(),
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
			if status.State.Terminal() {
				return
			}
		}
	}()
	return events, nil
}

func (p *Processing) FetchResultObject(ctx context.Context, resourceURI string) ([]domain.SpeakerSegment, error) {
	if p.FetchErr != nil {
		return nil, p.FetchErr
	}
	if p.Segments == nil {
		return []domain.SpeakerSegment{}, nil
	}
	out := make([]domain.SpeakerSegment, len(p.Segments))
	copy(out, p.Segments)
	return out, nil
}

// ErrScripted is a convenience error for failure-path tests.
var ErrScripted = errors.New("scripted failure")
