package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/config"
)

// RunResults creates a get request handler returning the BatchRun for a
// finished grading run.  Runs still in flight or unknown ids return 404.
func RunResults(cfg *config.Config, runner *pipeline.GradingRunner) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "runID")
		batch, ok := runner.Results(runID)
		if !ok {
			handleErrorType(w, errors.Errorf("no results for run %s", runID), http.StatusNotFound, cfg.Logger)
			return
		}
		if err := handleJSON(w, batch); err != nil {
			handleErrorType(w, errors.New("failed to generate response"), http.StatusInternalServerError, cfg.Logger)
		}
	}
}
