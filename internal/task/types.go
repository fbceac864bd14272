package task

import (
	"time"
)

// Status is a task's lifecycle state. Transitions only move forward:
// PENDING -> PROCESSING -> SUCCESS or FAILURE. Terminal states are final;
// there is no retry, a failed task id stays failed.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailure    Status = "FAILURE"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Task is one per-installation rendering job. Records are stored and read
// by value, so every observer sees a whole consistent snapshot.
type Task struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Message      string    `json:"message"`
	ArtifactName string    `json:"artifact_name,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Submission is the validated input of one map-creation request. It is
// consumed at dispatch: each worker receives its own copy of the image
// payload.
type Submission struct {
	Image   []byte
	Config  string
	MapName string
}

// Ref ties a created task to the installation it renders for.
type Ref struct {
	Hostname string `json:"hostname"`
	TaskID   string `json:"task_id"`
}
