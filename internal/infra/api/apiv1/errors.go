package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"learnhub-billing/internal/domain"
)

var errRateLimited = errors.New("too many checkout attempts, try again shortly")

func statusOf(code domain.Code) int {
	switch code {
	case domain.CodeNotAuthenticated:
		return http.StatusUnauthorized
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeLocked:
		return http.StatusForbidden
	case domain.CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodeGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageOf keeps internal details out of responses.
func messageOf(code domain.Code, err error) string {
	if code == domain.CodeInternal {
		return "internal error"
	}
	return err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errRateLimited) {
		writeJSON(w, http.StatusTooManyRequests, ErrorBody{Error: ErrorDetail{Code: "rate_limited", Message: err.Error()}})
		return
	}
	code := domain.CodeOf(err)
	status := statusOf(code)
	if status >= 500 {
		s.logger(r).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: string(code), Message: messageOf(code, err)}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
