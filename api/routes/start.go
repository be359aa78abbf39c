package routes

import (
	"net/http"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/config"
)

// StartRequest will start the grading runner task.  If it's already running
// then the request does nothing.
func StartRequest(cfg *config.Config, runner *pipeline.GradingRunner) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		runner.Start()
	}
}
