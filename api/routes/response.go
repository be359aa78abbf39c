package routes

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

func handleJSON(w http.ResponseWriter, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(payload)
	return err
}

func handleErrorType(w http.ResponseWriter, err error, code int, logger *zap.SugaredLogger) {
	logger.Errorf("%+v", err)
	errMessage := "An error occured on the server while processing the request"
	http.Error(w, errMessage, code)
}
