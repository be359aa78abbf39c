package pipeline

import (
	"sync"
	"time"
)

// Stage names the pipeline step a submission last reached.
type Stage string

// Pipeline stages, in execution order.
const (
	StageClassify Stage = "classify"
	StageExtract  Stage = "extract"
	StageGenerate Stage = "generate"
	StageConfirm  Stage = "confirm"
	StageDeliver  Stage = "deliver"
)

// Outcome is the terminal state of one submission's processing.
type Outcome string

// Terminal outcomes.
const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// ProcessingResult records how one submission's processing terminated.
// Immutable once appended to a BatchRun.
type ProcessingResult struct {
	SubmissionID string  `json:"submission_id"`
	StudentID    string  `json:"student_id"`
	Outcome      Outcome `json:"outcome"`
	StageReached Stage   `json:"stage_reached"`
	ErrorDetail  string  `json:"error_detail,omitempty"`
}

// BatchRun accumulates the results of one pipeline invocation.  Appends are
// serialized; result order follows completion order, not submission order,
// but each submission id appears exactly once.  Owned exclusively by the
// caller after the pipeline returns it.
type BatchRun struct {
	RunID        string             `json:"run_id"`
	CourseID     string             `json:"course_id"`
	AssignmentID string             `json:"assignment_id"`
	StartTime    time.Time          `json:"start_time"`
	EndTime      time.Time          `json:"end_time"`
	Results      []ProcessingResult `json:"results"`
	Delivered    int                `json:"delivered"`
	Skipped      int                `json:"skipped"`
	Failed       int                `json:"failed"`
	// Aborted marks a partial run terminated by a batch-fatal failure.
	// Results recorded before the abort remain valid.
	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abort_reason,omitempty"`

	mutex *sync.Mutex
}

// NewBatchRun creates an empty accumulator for one run.
func NewBatchRun(runID, courseID, assignmentID string) *BatchRun {
	return &BatchRun{
		RunID:        runID,
		CourseID:     courseID,
		AssignmentID: assignmentID,
		StartTime:    time.Now(),
		mutex:        &sync.Mutex{},
	}
}

// Record appends one submission's terminal result and updates the aggregate
// counts.
func (b *BatchRun) Record(result ProcessingResult) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.Results = append(b.Results, result)
	switch result.Outcome {
	case OutcomeDelivered:
		b.Delivered++
	case OutcomeSkipped:
		b.Skipped++
	case OutcomeFailed:
		b.Failed++
	}
}

// Abort marks the run as terminated early.  The first reason wins.
func (b *BatchRun) Abort(reason string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.Aborted {
		b.Aborted = true
		b.AbortReason = reason
	}
}

// Finish stamps the end time.
func (b *BatchRun) Finish() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.EndTime = time.Now()
}

// Size returns the number of recorded results.
func (b *BatchRun) Size() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.Results)
}
