package routes

import (
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/api/queue"
	"github.com/classroom-tools/grader-pipeline/config"
)

// ConfirmMessage is a reviewer's verdict on a run's generated feedback.  In
// per-submission confirmation mode submission_id selects the submission the
// verdict covers; in batch mode it must be omitted.
type ConfirmMessage struct {
	Approve      bool   `json:"approve"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// ConfirmRequest creates a post request handler that records a reviewer
// decision and unblocks the pipeline workers waiting on it.  Decisions are
// only accepted for the active run or one still waiting in the queue, so
// confirms against made-up run ids never accumulate in the gate.
func ConfirmRequest(cfg *config.Config, gate *pipeline.SignalGate, runner *pipeline.GradingRunner, requestQueue queue.RequestQueue) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "runID")

		if runner.ActiveRun() != runID && !runQueued(requestQueue, runID) {
			handleErrorType(w, errors.Errorf("run %s is not active or queued", runID), http.StatusNotFound, cfg.Logger)
			return
		}

		body, err := ioutil.ReadAll(r.Body)
		defer r.Body.Close()
		if err != nil {
			handleErrorType(w, errors.Wrap(err, "failed to read confirm request body"), http.StatusBadRequest, cfg.Logger)
			return
		}

		var confirmMsg ConfirmMessage
		if err := json.Unmarshal(body, &confirmMsg); err != nil {
			handleErrorType(w, errors.Wrap(err, "failed to unmarshal confirm request body"), http.StatusBadRequest, cfg.Logger)
			return
		}

		if gate.PerSubmission() && confirmMsg.SubmissionID == "" {
			handleErrorType(w, errors.New("submission_id missing"), http.StatusBadRequest, cfg.Logger)
			return
		}
		if !gate.PerSubmission() && confirmMsg.SubmissionID != "" {
			handleErrorType(w, errors.New("submission_id not expected in batch confirmation mode"), http.StatusBadRequest, cfg.Logger)
			return
		}

		gate.Signal(runID, confirmMsg.SubmissionID, confirmMsg.Approve)
	}
}

func runQueued(requestQueue queue.RequestQueue, runID string) bool {
	contents, err := requestQueue.GetAll()
	if err != nil {
		return false
	}
	for _, entry := range contents {
		if request, ok := entry.(pipeline.KeyedGradeRequest); ok && request.RunID == runID {
			return true
		}
	}
	return false
}
