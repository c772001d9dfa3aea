package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusLoading  RunStatus = "loading"
	RunStatusReducing RunStatus = "reducing"
	RunStatusBuilding RunStatus = "building"
	RunStatusWriting  RunStatus = "writing"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunInput describes what a run was asked to fit.
type RunInput struct {
	XTrain     string `json:"x_train"`
	YTrain     string `json:"y_train"`
	Rows       int    `json:"rows"`
	Features   int    `json:"features"`
	ConfigHash string `json:"config_hash"`
}

// Run represents a single scorecard pipeline run.
type Run struct {
	ID        string     `json:"id"`
	Input     RunInput   `json:"input"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	SelectedFeatures []string      `json:"selected_features"`
	ClusterCount     int           `json:"cluster_count"`
	CVScore          float64       `json:"cv_score"`
	BasePoints       int           `json:"base_points"`
	ArtifactDir      string        `json:"artifact_dir"`
	Phases           []PhaseResult `json:"phases"`
}

// RunPhase tracks a single phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name        string      `json:"name"`
	Status      PhaseStatus `json:"status"`
	Duration    int64       `json:"duration_ms"`
	FeaturesIn  int         `json:"features_in"`
	FeaturesOut int         `json:"features_out"`
	Error       string      `json:"error,omitempty"`
}
