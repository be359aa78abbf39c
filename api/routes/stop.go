package routes

import (
	"net/http"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/config"
)

// StopRequest stops the grading runner.  Requests can still be enqueued, but
// the queue will not be serviced.
func StopRequest(cfg *config.Config, runner *pipeline.GradingRunner) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		runner.Stop()
	}
}
