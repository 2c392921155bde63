package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// SessionState is the persisted form of an incremental training session:
// the shared hyperparameter belief plus every batch's cached output message
// and latest logged evidence. It is sufficient to resume the session.
type SessionState struct {
	VersionedRecord
	RunID      string       `json:"run_id"`
	Family     string       `json:"family"`
	Features   int          `json:"features"`
	BatchCount int          `json:"batch_count"`
	Shared     [][2]float64 `json:"shared_state"`
	Batches    []BatchState `json:"batches"`
}

// BatchState is one batch's persisted contribution.
type BatchState struct {
	OutputMessage [][2]float64 `json:"output_message"`
	LogEvidence   float64      `json:"log_evidence"`
	Trained       bool         `json:"trained"`
}
