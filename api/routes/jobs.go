package routes

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/api/queue"
	"github.com/classroom-tools/grader-pipeline/config"
)

// QueuedJob describes one grading request waiting in the queue.
type QueuedJob struct {
	RunID        string `json:"run_id"`
	CourseID     string `json:"course_id"`
	AssignmentID string `json:"assignment_id"`
}

// JobsRequest returns the grading requests waiting in the queue.
func JobsRequest(cfg *config.Config, requestQueue queue.RequestQueue) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		contents, err := requestQueue.GetAll()
		if err != nil {
			handleErrorType(w, err, http.StatusInternalServerError, cfg.Logger)
			return
		}

		jobs := make([]QueuedJob, 0, len(contents))
		for _, entry := range contents {
			request, ok := entry.(pipeline.KeyedGradeRequest)
			if !ok {
				handleErrorType(w, errors.New("failed to generate response, unexpected datatype found"), http.StatusInternalServerError, cfg.Logger)
				return
			}
			jobs = append(jobs, QueuedJob{
				RunID:        request.RunID,
				CourseID:     request.CourseID,
				AssignmentID: request.AssignmentID,
			})
		}

		if err := handleJSON(w, jobs); err != nil {
			handleErrorType(w, errors.New("failed to generate response"), http.StatusInternalServerError, cfg.Logger)
		}
	}
}
