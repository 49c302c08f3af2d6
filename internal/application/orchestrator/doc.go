// Package orchestrator implements the execution engine of the pipeline
// editor.
//
// The orchestrator drives one run end to end:
//   - Validating pipeline structure before any network I/O
//   - Uploading the input file to the processing service
//   - Dispatching the job (sync call, poll loop or status stream)
//   - Aggregating progress and logs into the pipeline store
//   - Fanning results out and appending the execution history entry
//
// The validator checks graph structure: required input/output modules,
// disconnected modules, cycles, and reachability from inputs.
package orchestrator
