package routes

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vova616/xxhash"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/api/queue"
	"github.com/classroom-tools/grader-pipeline/config"
)

// EnqueueResponse returns the run id assigned to an accepted grading
// request, which callers use to confirm and to fetch results.
type EnqueueResponse struct {
	RunID string `json:"run_id"`
}

// EnqueueRequest adds a grading request to the queue if there is space, or
// returns an error if the queue is currently at maximum capacity.  Requests
// for an already-queued course/assignment pair are dropped when idempotency
// checks are on.
func EnqueueRequest(cfg *config.Config, requestQueue queue.RequestQueue) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var gradeMsg pipeline.GradeRequest

		body, err := ioutil.ReadAll(r.Body)
		defer r.Body.Close()
		if err != nil {
			handleErrorType(w, errors.Wrap(err, "failed to read enqueue request body"), http.StatusBadRequest, cfg.Logger)
			return
		}

		if err := json.Unmarshal(body, &gradeMsg); err != nil {
			handleErrorType(w, errors.Wrap(err, "failed to unmarshal enqueue request body"), http.StatusBadRequest, cfg.Logger)
			return
		}

		if gradeMsg.CourseID == "" {
			handleErrorType(w, errors.New("course_id missing"), http.StatusBadRequest, cfg.Logger)
			return
		}
		if gradeMsg.AssignmentID == "" {
			handleErrorType(w, errors.New("assignment_id missing"), http.StatusBadRequest, cfg.Logger)
			return
		}

		// two runs over the same assignment with the same channel flags are
		// the same work, so the key covers exactly those fields: hash the
		// canonical re-serialization, not the raw bytes, so whitespace and
		// field order don't defeat the duplicate check
		canonical, err := json.Marshal(gradeMsg)
		if err != nil {
			handleErrorType(w, errors.Wrap(err, "failed to key enqueue request"), http.StatusInternalServerError, cfg.Logger)
			return
		}
		paramHash := xxhash.Checksum32(canonical)

		keyed := pipeline.KeyedGradeRequest{
			GradeRequest: gradeMsg,
			RunID:        uuid.New().String(),
			RequestKey:   int32(paramHash),
			EnqueuedAt:   time.Now(),
		}

		var ok bool
		if cfg.Environment.QueueIdempotencyChecks {
			ok, err = requestQueue.EnqueueHashed(int(keyed.RequestKey), keyed)
		} else {
			ok, err = requestQueue.Enqueue(keyed)
		}
		if err != nil {
			handleErrorType(w, err, http.StatusInternalServerError, cfg.Logger)
			return
		}
		if !ok {
			handleErrorType(w, errors.New("request queue full"), http.StatusServiceUnavailable, cfg.Logger)
			return
		}

		if err := handleJSON(w, EnqueueResponse{RunID: keyed.RunID}); err != nil {
			handleErrorType(w, errors.New("failed to generate response"), http.StatusInternalServerError, cfg.Logger)
		}
	}
}
