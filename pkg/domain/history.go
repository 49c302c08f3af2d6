package domain

import "time"

// ExecutionHistoryEntry is an immutable record of one completed run,
// kept for two-way comparison between runs. Entries are appended and
// never edited; retention is left to the persistence collaborator.
type ExecutionHistoryEntry struct {
	ID            string                            `json:"id"`
	WorkflowName  string                            `json:"workflowName"`
	Timestamp     time.Time                         `json:"timestamp"`
	Parameters    map[string]map[string]interface{} `json:"parameters"`
	AudioFileName string                            `json:"audioFileName"`
	AudioFileSize int64                             `json:"audioFileSize"`
	Result        DiarizationResult                 `json:"result"`
}

// Clone returns a deep copy of the entry.
func (e ExecutionHistoryEntry) Clone() ExecutionHistoryEntry {
	out := e
	out.Parameters = make(map[string]map[string]interface{}, len(e.Parameters))
	for moduleID, params := range e.Parameters {
		copied := make(map[string]interface{}, len(params))
		for k, v := range params {
			copied[k] = v
		}
		out.Parameters[moduleID] = copied
	}
	return out
}
