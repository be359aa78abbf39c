package routes

import (
	"net/http"

	"github.com/classroom-tools/grader-pipeline/api/queue"
	"github.com/classroom-tools/grader-pipeline/config"
)

// WaitingResponse provides the number of grading requests waiting in the
// queue.
type WaitingResponse struct {
	Count int `json:"count"`
}

// Waiting creates a get request handler that returns the number of requests
// currently waiting in the queue.
func Waiting(cfg *config.Config, requestQueue queue.RequestQueue) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handleJSON(w, WaitingResponse{Count: requestQueue.Size()}); err != nil {
			handleErrorType(w, err, http.StatusInternalServerError, cfg.Logger)
		}
	}
}
