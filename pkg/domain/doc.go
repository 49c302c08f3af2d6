// Package domain defines the shared model of the pipeline engine:
// module definitions and instances, connections, pipelines, execution
// phases, logs, diarization results and execution history entries.
//
// Types here are plain data. Behavior lives in internal/pipeline (state
// transitions) and internal/application/orchestrator (execution).
package domain
