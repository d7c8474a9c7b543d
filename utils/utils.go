package utils

import (
	"encoding/json"
	"net/http"

	"github.com/nijaru/yt-itinerary/errors"
	"github.com/sirupsen/logrus"
)

// HandleError writes {"detail": message} with statusCode.
func HandleError(w http.ResponseWriter, message string, statusCode int) {
	RespondWithError(w, errors.E("HandleError", nil, message, statusCode))
}

// RespondWithError reports err as {"detail": ...}. AppErrors keep their code
// and message; any other error becomes a 500 carrying err's text.
func RespondWithError(w http.ResponseWriter, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Internal("RespondWithError", err, err.Error())
	}

	entry := logrus.WithFields(logrus.Fields{
		"status_code": appErr.Code,
		"op":          appErr.Op,
		"error":       appErr.Error(),
	})
	if appErr.Code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request failed")
	}

	RespondWithJSON(w, appErr.Code, appErr)
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
		code = http.StatusInternalServerError
		body = []byte(`{"detail":"Failed to encode response"}`)
	}
	RespondWithRawJSON(w, code, body)
}

// RespondWithRawJSON writes body as-is; it must already be valid JSON.
func RespondWithRawJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logrus.WithError(err).Error("Failed to write response")
	}
}
