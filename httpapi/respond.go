package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/unkn0wn-root/reccache"
	"github.com/unkn0wn-root/reccache/runner"
	"github.com/unkn0wn-root/reccache/store"
)

// Client-facing messages.
const (
	msgNoFilePart     = "No file part"
	msgNoSelectedFile = "No selected file"
	msgInvalidFormat  = "Invalid file format"
	msgFileTooLarge   = "File too large"
	msgUploadStarted  = "File uploaded and data insertion started"
	msgIDRequired     = "Passenger ID is required"
	msgIDNotInteger   = "Passenger ID must be a non-negative integer"
	msgUpdateRequired = "Passenger ID and update data are required"
	msgUpdated        = "Record updated"
	msgNotFound       = "Record not found"
	msgInvalidGender  = "Invalid gender specified. Use 'male' or 'female'."
	msgInvalidJSON    = "Invalid JSON body"
	msgShuttingDown   = "Service is shutting down"
	msgInternal       = "internal server error"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps service errors to responses. Anything unrecognized is a
// backend fault: logged with the request id and answered with a generic 500.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reccache.ErrInvalidGender):
		badRequest(w, msgInvalidGender)
	case errors.Is(err, reccache.ErrInvalidArgument):
		badRequest(w, err.Error())
	case errors.Is(err, reccache.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: msgNotFound})
	case errors.Is(err, runner.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: msgShuttingDown})
	default:
		h.log.Error("request failed", reccache.Fields{
			"request_id": RequestID(r.Context()),
			"path":       r.URL.Path,
			"err":        err,
		})
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgInternal})
	}
}
