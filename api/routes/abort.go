package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/config"
)

// AbortRequest cancels an in-flight grading run.  In-flight collaborator
// calls finish or time out; no further submissions are started.  Results
// recorded before the abort remain available.
func AbortRequest(cfg *config.Config, runner *pipeline.GradingRunner) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "runID")
		if !runner.Abort(runID) {
			handleErrorType(w, errors.Errorf("run %s is not active", runID), http.StatusNotFound, cfg.Logger)
		}
	}
}
