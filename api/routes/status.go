package routes

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/api/queue"
	"github.com/classroom-tools/grader-pipeline/config"
)

// StatusResponse provides the number of requests currently queued, whether
// the runner routine is servicing the queue, and the id of the run in
// flight, if any.
type StatusResponse struct {
	Count     int    `json:"count"`
	IsRunning bool   `json:"is_running"`
	ActiveRun string `json:"active_run,omitempty"`
}

// StatusRequest creates a get request handler that returns status info for
// the request queue and grading runner.
func StatusRequest(cfg *config.Config, requestQueue queue.RequestQueue, runner *pipeline.GradingRunner) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		status := StatusResponse{
			Count:     requestQueue.Size(),
			IsRunning: runner.Running(),
			ActiveRun: runner.ActiveRun(),
		}
		if err := handleJSON(w, status); err != nil {
			handleErrorType(w, errors.New("failed to generate response"), http.StatusInternalServerError, cfg.Logger)
		}
	}
}
