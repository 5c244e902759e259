package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"provision-risk-lab/internal/ingestion"
	"provision-risk-lab/internal/reporting"
	"provision-risk-lab/internal/service"
	"provision-risk-lab/internal/storage"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(APIResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(APIResponse{Status: "error", Message: message})
}

// statusFor maps sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidMethod),
		errors.Is(err, service.ErrInvalidSamples),
		errors.Is(err, service.ErrInvalidAlpha),
		errors.Is(err, service.ErrMissingLedger),
		errors.Is(err, service.ErrInvalidDirection),
		errors.Is(err, service.ErrInvalidRiskLevel),
		errors.Is(err, service.ErrInvalidTarget),
		errors.Is(err, ingestion.ErrInvalidLedger),
		errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotCompleted),
		errors.Is(err, reporting.ErrNotCompleted):
		return http.StatusConflict
	case errors.Is(err, service.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		message = "internal error"
	}
	writeError(w, code, message)
}
