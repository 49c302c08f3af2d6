package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/audiostudio/conductor/internal/catalog"
	"github.com/audiostudio/conductor/internal/history"
	"github.com/audiostudio/conductor/internal/pipeline"
	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

// ExecutionMode selects how the dispatch phase talks to the processing
// service.
type ExecutionMode string

const (
	// ModeSync blocks on a single call returning the final result.
	ModeSync ExecutionMode = "sync"
	// ModePoll submits a job and polls its status until terminal.
	ModePoll ExecutionMode = "poll"
	// ModeStream submits a job and consumes a push status stream.
	ModeStream ExecutionMode = "stream"
)

// Config holds orchestrator tunables.
type Config struct {
	Mode         ExecutionMode
	PollInterval time.Duration
	MaxWait      time.Duration
	// GraceDelay keeps the terminal state visible before the execution
	// gate clears. Zero tears down synchronously.
	GraceDelay  time.Duration
	FailureMode pipeline.FailureMode
}

// InputFile is the raw audio handed to ExecutePipeline.
type InputFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Orchestrator drives one run end to end: validate, upload, dispatch,
// poll or stream, fan results out, record history. At most one run is
// in flight at a time; the store's execution gate rejects re-entry.
type Orchestrator struct {
	store       *pipeline.Store
	processing  ports.Processing
	persistence ports.Persistence
	history     *history.Store
	recorder    *Recorder
	validator   *Validator
	metrics     ports.MetricsCollector
	logger      *zap.Logger
	cfg         Config

	// workflowID is set once the current pipeline has been persisted;
	// runs without it skip execution bookkeeping on the gateway.
	workflowMu sync.RWMutex
	workflowID string

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	// activeJob is the remote job handle of the in-flight dispatch, so
	// StopExecution can cancel it server-side as well.
	jobMu     sync.Mutex
	activeJob string
}

// participants is the module set captured once at validation time and
// honored for the whole run. Graph edits mid-run affect the next run
// only.
type participants struct {
	inputIDs   []string
	diarIDs    []string
	outputIDs  []string
	diarNames  map[string]string
	parameters map[string]map[string]interface{}
}

// progressTargets are the modules whose displayed progress tracks the
// run milestones: the input module and every diarization-capable one.
func (p participants) progressTargets() []string {
	return append(append([]string{}, p.inputIDs...), p.diarIDs...)
}

// resultTargets are the modules guaranteed a result after success.
func (p participants) resultTargets() []string {
	return append(append([]string{}, p.diarIDs...), p.outputIDs...)
}

// New creates an orchestrator. Zero config fields get defaults
// (poll mode, 5s interval, 30m max wait, 2s grace, pipeline-wide
// failure projection).
func New(
	store *pipeline.Store,
	processing ports.Processing,
	persistence ports.Persistence,
	historyStore *history.Store,
	recorder *Recorder,
	validator *Validator,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.Mode == "" {
		cfg.Mode = ModePoll
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Minute
	}
	if cfg.FailureMode == "" {
		cfg.FailureMode = pipeline.FailureModePipelineWide
	}
	return &Orchestrator{
		store:       store,
		processing:  processing,
		persistence: persistence,
		history:     historyStore,
		recorder:    recorder,
		validator:   validator,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// SetWorkflowID binds runs to a persisted workflow.
func (o *Orchestrator) SetWorkflowID(id string) {
	o.workflowMu.Lock()
	o.workflowID = id
	o.workflowMu.Unlock()
}

// WorkflowID returns the bound persisted workflow id, if any.
func (o *Orchestrator) WorkflowID() string {
	o.workflowMu.RLock()
	defer o.workflowMu.RUnlock()
	return o.workflowID
}

// ValidatePipeline runs the full structural check on the current
// pipeline.
func (o *Orchestrator) ValidatePipeline() ValidationResult {
	return o.validator.Validate(o.store.Snapshot().Pipeline)
}

// ExecutePipeline runs the current pipeline against the input file.
// It returns pipeline.ErrRunInProgress when a run is already active.
// Any other error has already been projected onto module statuses and
// the execution log before it is returned.
func (o *Orchestrator) ExecutePipeline(ctx context.Context, input *InputFile) error {
	started := time.Now()

	if err := o.store.BeginExecution(domain.ExecutionLogEntry{
		Timestamp: started.UTC(),
		Level:     domain.LogLevelInfo,
		Message:   "run started",
	}); err != nil {
		return err
	}

	o.metrics.RecordRunStarted()
	o.metrics.SetActiveRuns(1)

	runCtx, cancel := context.WithCancel(ctx)
	o.cancelMu.Lock()
	o.cancel = cancel
	o.cancelMu.Unlock()

	defer func() {
		cancel()
		o.cancelMu.Lock()
		o.cancel = nil
		o.cancelMu.Unlock()
		o.metrics.SetActiveRuns(0)
		o.teardown()
	}()

	o.recorder.publish(runCtx, ports.EventTypeExecutionStarted, o.store.Snapshot(), nil)

	err := o.run(runCtx, input, started)
	if err != nil {
		// A cancelled run was already reset by StopExecution; projecting
		// the failure would overwrite the stopped state.
		if errors.Is(err, context.Canceled) {
			o.metrics.RecordRunCompleted("stopped", time.Since(started))
			return err
		}
		o.fail(runCtx, err, started)
		return err
	}

	o.metrics.RecordRunCompleted("completed", time.Since(started))
	return nil
}

// run executes the phases and returns a RunFailure on error.
func (o *Orchestrator) run(ctx context.Context, input *InputFile, started time.Time) error {
	// Validation phase. The participant set and its parameters are
	// captured here, once, for the whole run.
	o.store.SetPhase(domain.PhaseValidating)
	parts, err := o.validate(ctx, input)
	if err != nil {
		return &RunFailure{Phase: domain.PhaseValidating, Err: err}
	}

	opts := harvestOptions(parts, o.store.Snapshot().Pipeline)

	// Upload phase.
	o.store.SetPhase(domain.PhaseUploading)
	resourceURI, err := o.upload(ctx, input, parts)
	if err != nil {
		return &RunFailure{Phase: domain.PhaseUploading, Err: err}
	}

	// Dispatch and processing phases.
	o.store.SetPhase(domain.PhaseDispatching)
	result, err := o.dispatch(ctx, resourceURI, opts, parts)
	if err != nil {
		return &RunFailure{Phase: domain.PhaseProcessing, Err: err}
	}

	o.complete(ctx, input, parts, result, started)
	return nil
}

// validate performs the pre-flight checks of the execution path: an
// input module, at least one diarization-capable module, and a file.
func (o *Orchestrator) validate(ctx context.Context, input *InputFile) (participants, error) {
	snap := o.store.Snapshot()

	parts := participants{
		diarNames:  map[string]string{},
		parameters: map[string]map[string]interface{}{},
	}
	for _, m := range snap.Pipeline.Modules {
		params := make(map[string]interface{}, len(m.Parameters))
		for k, v := range m.Parameters {
			params[k] = v
		}
		parts.parameters[m.ID] = params

		switch {
		case m.Type == domain.ModuleTypeInput:
			parts.inputIDs = append(parts.inputIDs, m.ID)
		case m.Type == domain.ModuleTypeOutput:
			parts.outputIDs = append(parts.outputIDs, m.ID)
		case catalog.IsDiarizationCapable(m.DefinitionID):
			parts.diarIDs = append(parts.diarIDs, m.ID)
			parts.diarNames[m.ID] = m.Name
		}
	}

	var problems []string
	if len(parts.inputIDs) == 0 {
		problems = append(problems, "pipeline must have an input module")
	}
	if len(parts.diarIDs) == 0 {
		problems = append(problems, "pipeline must have a diarization-capable module")
	}
	if len(problems) > 0 {
		err := &ValidationError{Problems: problems}
		o.recorder.Log(ctx, domain.LogLevelError, err.Error(), "", nil)
		return parts, err
	}

	if input == nil || len(input.Data) == 0 {
		o.recorder.Log(ctx, domain.LogLevelError, ErrNoInputFile.Error(), "", nil)
		return parts, ErrNoInputFile
	}

	o.recorder.Log(ctx, domain.LogLevelInfo,
		fmt.Sprintf("pipeline validated: %d diarization module(s)", len(parts.diarIDs)), "", nil)
	return parts, nil
}

// upload requests an upload target, pushes the raw bytes, and records
// execution bookkeeping with the persistence gateway when a workflow is
// bound. Bookkeeping failures are logged and never abort the run.
func (o *Orchestrator) upload(ctx context.Context, input *InputFile, parts participants) (string, error) {
	phaseStart := time.Now()
	o.recorder.Progress(ctx, parts.progressTargets(), 15)
	o.store.SetModuleStatus(parts.progressTargets(), domain.ModuleStatusRunning, "")
	o.recorder.Log(ctx, domain.LogLevelInfo, fmt.Sprintf("uploading %s", input.Name), "", nil)

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	target, err := o.processing.RequestUploadTarget(ctx, input.Name, contentType)
	if err != nil {
		return "", &UploadError{Op: "request target", Err: err}
	}

	if err := o.processing.UploadBytes(ctx, target.UploadURL, input.Data, contentType); err != nil {
		return "", &UploadError{Op: "put bytes", Err: err}
	}

	o.recorder.Progress(ctx, parts.progressTargets(), 30)
	o.recorder.Log(ctx, domain.LogLevelSuccess, "upload complete", "", nil)
	o.metrics.RecordPhase(domain.PhaseUploading, time.Since(phaseStart))

	if workflowID := o.WorkflowID(); workflowID != "" {
		o.beginPersistedExecution(ctx, workflowID, input, target.ResourceURI)
	}
	return target.ResourceURI, nil
}

// beginPersistedExecution mirrors file metadata and opens an execution
// record. Best-effort: failures leave the run without an execution id.
func (o *Orchestrator) beginPersistedExecution(ctx context.Context, workflowID string, input *InputFile, resourceURI string) {
	audioFileID, err := o.persistence.SaveAudioFileMetadata(ctx, ports.AudioFileMetadata{
		Filename:    input.Name,
		ResourceURI: resourceURI,
		SizeBytes:   int64(len(input.Data)),
		ContentType: input.ContentType,
	})
	if err != nil {
		o.metrics.RecordPersistenceError("save_audio_metadata")
		o.logger.Warn("audio metadata mirror write failed", zap.Error(err))
	}

	executionID, err := o.persistence.StartExecution(ctx, workflowID, audioFileID, map[string]interface{}{
		"filename": input.Name,
		"size":     len(input.Data),
	})
	if err != nil {
		o.metrics.RecordPersistenceError("start_execution")
		o.logger.Warn("execution record open failed", zap.Error(err))
		return
	}
	o.store.SetExecutionState(&domain.ExecutionState{
		ExecutionID: executionID,
		AudioFileID: audioFileID,
	})
}

// dispatch submits the job in the configured mode and waits for a
// terminal outcome.
func (o *Orchestrator) dispatch(ctx context.Context, resourceURI string, opts ports.SubmitOptions, parts participants) (ports.SubmitResult, error) {
	phaseStart := time.Now()
	o.recorder.Progress(ctx, parts.progressTargets(), 50)
	o.recorder.Log(ctx, domain.LogLevelInfo,
		fmt.Sprintf("dispatching job (%s mode)", o.cfg.Mode), "", nil)

	var result ports.SubmitResult
	var err error
	switch o.cfg.Mode {
	case ModeSync:
		result, err = o.processing.SubmitSync(ctx, resourceURI, opts)
		if err != nil {
			err = &ProcessingError{Err: err}
		}
	case ModeStream:
		result, err = o.dispatchStream(ctx, resourceURI, opts, parts)
	default:
		result, err = o.dispatchPoll(ctx, resourceURI, opts, parts)
	}
	if err != nil {
		return ports.SubmitResult{}, err
	}

	o.metrics.RecordPhase(domain.PhaseProcessing, time.Since(phaseStart))
	return result, nil
}

// dispatchPoll submits a job and polls its status until a terminal
// state, the maximum wait, or cancellation. Only status reads are
// retried; the submit call runs once.
func (o *Orchestrator) dispatchPoll(ctx context.Context, resourceURI string, opts ports.SubmitOptions, parts participants) (ports.SubmitResult, error) {
	jobID, err := o.processing.SubmitJob(ctx, resourceURI, opts)
	if err != nil {
		return ports.SubmitResult{}, &ProcessingError{Err: err}
	}
	o.setActiveJob(jobID)
	defer o.takeActiveJob()

	o.store.SetPhase(domain.PhaseProcessing)
	o.recorder.Progress(ctx, parts.progressTargets(), 60)
	o.recorder.Log(ctx, domain.LogLevelInfo, fmt.Sprintf("job %s submitted", jobID), "", nil)

	deadline := time.Now().Add(o.cfg.MaxWait)
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ports.SubmitResult{}, ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return ports.SubmitResult{}, fmt.Errorf("%w (job %s, waited %s)", ErrPollTimeout, jobID, o.cfg.MaxWait)
		}

		o.metrics.RecordPollTick()
		status, err := o.processing.GetJobStatus(ctx, jobID)
		if err != nil {
			// Bounded read retry: a failed status read is not terminal.
			// A rate-limited read waits out the advertised window first.
			o.logger.Warn("status read failed", zap.String("job_id", jobID), zap.Error(err))
			if delay, ok := ports.RetryDelay(err); ok && delay > 0 {
				select {
				case <-ctx.Done():
					return ports.SubmitResult{}, ctx.Err()
				case <-time.After(delay):
				}
			}
			continue
		}

		o.logger.Debug("job status",
			zap.String("job_id", jobID),
			zap.String("state", string(status.State)))

		if status.State == ports.JobStateRunning {
			o.recorder.Progress(ctx, parts.progressTargets(), 75)
		}
		if !status.State.Terminal() {
			continue
		}
		return o.finishJob(jobID, status.State, status.Message, status.Result)
	}
}

// dispatchStream submits a job and consumes the push status stream
// until a terminal event, the maximum wait, or cancellation.
func (o *Orchestrator) dispatchStream(ctx context.Context, resourceURI string, opts ports.SubmitOptions, parts participants) (ports.SubmitResult, error) {
	jobID, err := o.processing.SubmitJob(ctx, resourceURI, opts)
	if err != nil {
		return ports.SubmitResult{}, &ProcessingError{Err: err}
	}
	o.setActiveJob(jobID)
	defer o.takeActiveJob()

	o.store.SetPhase(domain.PhaseProcessing)
	o.recorder.Progress(ctx, parts.progressTargets(), 60)

	events, err := o.processing.SubscribeProgress(ctx, jobID)
	if err != nil {
		return ports.SubmitResult{}, &ProcessingError{JobID: jobID, Err: err}
	}

	timeout := time.NewTimer(o.cfg.MaxWait)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ports.SubmitResult{}, ctx.Err()
		case <-timeout.C:
			return ports.SubmitResult{}, fmt.Errorf("%w (job %s, waited %s)", ErrPollTimeout, jobID, o.cfg.MaxWait)
		case event, ok := <-events:
			if !ok {
				return ports.SubmitResult{}, &ProcessingError{JobID: jobID, Message: "status stream closed before a terminal event"}
			}
			if event.State == ports.JobStateRunning {
				o.recorder.Progress(ctx, parts.progressTargets(), 75)
			}
			if !event.State.Terminal() {
				continue
			}
			return o.finishJob(jobID, event.State, event.Message, event.Result)
		}
	}
}

// finishJob converts a terminal job state into a result or error.
func (o *Orchestrator) finishJob(jobID string, state ports.JobState, message string, result *ports.SubmitResult) (ports.SubmitResult, error) {
	if state != ports.JobStateSucceeded {
		return ports.SubmitResult{}, &ProcessingError{JobID: jobID, Status: string(state), Message: message}
	}
	if result == nil {
		return ports.SubmitResult{}, &ProcessingError{JobID: jobID, Status: string(state), Message: "succeeded without a result record"}
	}
	return *result, nil
}

// complete fans the result out, marks the participant set completed,
// appends the history entry and closes the execution record.
func (o *Orchestrator) complete(ctx context.Context, input *InputFile, parts participants, result ports.SubmitResult, started time.Time) {
	snap := o.store.Snapshot()

	diarResult := domain.DiarizationResult{
		Status:       "completed",
		OutputURI:    result.OutputURI,
		SpeakerCount: result.SpeakerCount,
		SegmentCount: result.SegmentCount,
		Timestamp:    time.Now().UTC(),
	}
	targets := parts.resultTargets()
	o.store.SetResult(diarResult, targets)
	o.recorder.publish(ctx, ports.EventTypeResult, o.store.Snapshot(), map[string]interface{}{
		"moduleIds":    targets,
		"speakerCount": result.SpeakerCount,
		"segmentCount": result.SegmentCount,
	})

	executionID := ""
	if snap.Execution != nil {
		executionID = snap.Execution.ExecutionID
	}
	for _, moduleID := range targets {
		speakers, segments := result.SpeakerCount, result.SegmentCount
		record := ports.ResultRecord{
			WorkflowID:   snap.Pipeline.ID,
			ExecutionID:  executionID,
			ModuleID:     moduleID,
			ModuleName:   moduleName(snap.Pipeline, moduleID),
			Status:       "completed",
			OutputURI:    result.OutputURI,
			SpeakerCount: &speakers,
			SegmentCount: &segments,
		}
		if err := o.persistence.SaveResult(ctx, record); err != nil {
			o.metrics.RecordPersistenceError("save_result")
			o.logger.Warn("result mirror write failed",
				zap.String("module_id", moduleID), zap.Error(err))
		}
	}

	elapsed := time.Since(started).Seconds()
	o.recorder.Progress(ctx, parts.progressTargets(), 100)

	selected := ""
	if len(parts.diarIDs) > 0 {
		selected = parts.diarIDs[0]
	}
	o.store.CompleteExecution(parts.progressTargets(), selected, elapsed)
	o.recorder.Log(ctx, domain.LogLevelSuccess,
		fmt.Sprintf("run completed: %d speakers, %d segments", result.SpeakerCount, result.SegmentCount), "", nil)
	o.recorder.publish(ctx, ports.EventTypeExecutionCompleted, o.store.Snapshot(), map[string]interface{}{
		"speakerCount": result.SpeakerCount,
		"segmentCount": result.SegmentCount,
	})

	if executionID != "" {
		if err := o.persistence.CompleteExecution(ctx, executionID, "completed", ""); err != nil {
			o.metrics.RecordPersistenceError("complete_execution")
			o.logger.Warn("execution record close failed", zap.Error(err))
		}
	}

	entry := domain.ExecutionHistoryEntry{
		ID:            uuid.NewString(),
		WorkflowName:  snap.Pipeline.Name,
		Timestamp:     time.Now().UTC(),
		Parameters:    parts.parameters,
		AudioFileName: input.Name,
		AudioFileSize: int64(len(input.Data)),
		Result:        diarResult,
	}
	o.history.Append(snap.Pipeline.ID, entry)

	o.logger.Info("run completed",
		zap.String("pipeline_id", snap.Pipeline.ID),
		zap.Int("speaker_count", result.SpeakerCount),
		zap.Int("segment_count", result.SegmentCount),
		zap.Float64("elapsed_s", elapsed))
}

// fail projects the failure onto module statuses, logs it, closes the
// execution record and publishes the terminal event.
func (o *Orchestrator) fail(ctx context.Context, err error, started time.Time) {
	var failure *RunFailure
	moduleID := ""
	if errors.As(err, &failure) {
		moduleID = failure.ModuleID
	}

	o.store.FailExecution(o.cfg.FailureMode, moduleID, err.Error())
	o.recorder.Log(ctx, domain.LogLevelError, err.Error(), "", nil)

	snap := o.store.Snapshot()
	if snap.Execution != nil && snap.Execution.ExecutionID != "" {
		if persistErr := o.persistence.CompleteExecution(ctx, snap.Execution.ExecutionID, "failed", err.Error()); persistErr != nil {
			o.metrics.RecordPersistenceError("complete_execution")
			o.logger.Warn("execution record close failed", zap.Error(persistErr))
		}
	}

	o.metrics.RecordRunCompleted("failed", time.Since(started))
	o.recorder.publish(ctx, ports.EventTypeExecutionFailed, snap, map[string]interface{}{
		"error": err.Error(),
	})

	o.logger.Error("run failed",
		zap.String("pipeline_id", snap.Pipeline.ID),
		zap.Error(err))
}

// teardown clears the execution gate after the grace delay so
// observers can read the terminal state before the reset.
func (o *Orchestrator) teardown() {
	if o.cfg.GraceDelay <= 0 {
		o.store.Teardown()
		return
	}
	time.AfterFunc(o.cfg.GraceDelay, o.store.Teardown)
}

// StopExecution forces the run state down. It cancels the in-flight
// run context, so outstanding uploads, submits and poll waits abort at
// their next suspension point, and asks the processing service to
// cancel the remote job when one is in flight. The remote cancel is
// best-effort; a failure only logs.
func (o *Orchestrator) StopExecution(ctx context.Context) {
	// Take the job handle before cancelling the local context; the
	// dispatch loop clears it on its way out.
	jobID := o.takeActiveJob()

	o.cancelMu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.cancelMu.Unlock()

	if jobID != "" {
		if err := o.processing.CancelJob(ctx, jobID); err != nil {
			o.logger.Warn("remote job cancel failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	o.store.StopExecution()
	o.recorder.publish(ctx, ports.EventTypeExecutionStopped, o.store.Snapshot(), nil)
	o.logger.Info("execution stopped")
}

func (o *Orchestrator) setActiveJob(jobID string) {
	o.jobMu.Lock()
	o.activeJob = jobID
	o.jobMu.Unlock()
}

func (o *Orchestrator) takeActiveJob() string {
	o.jobMu.Lock()
	defer o.jobMu.Unlock()
	jobID := o.activeJob
	o.activeJob = ""
	return jobID
}

func moduleName(p domain.Pipeline, moduleID string) string {
	if m := p.Module(moduleID); m != nil {
		return m.Name
	}
	return ""
}
