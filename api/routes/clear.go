package routes

import (
	"net/http"

	"github.com/classroom-tools/grader-pipeline/api/queue"
	"github.com/classroom-tools/grader-pipeline/config"
)

// ClearRequest clears the request queue.
func ClearRequest(cfg *config.Config, requestQueue queue.RequestQueue) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requestQueue.Clear(); err != nil {
			handleErrorType(w, err, http.StatusInternalServerError, cfg.Logger)
		}
	}
}
