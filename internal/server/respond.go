package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"feedchain/pkg/types"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

// writeError maps an error kind to its status code. Errors without a kind are
// logged and reported as a bare 500.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		kind   error
	)

	switch {
	case errors.Is(err, types.ErrNotFound):
		status, kind = http.StatusNotFound, types.ErrNotFound
	case errors.Is(err, types.ErrValidation):
		status, kind = http.StatusBadRequest, types.ErrValidation
	case errors.Is(err, types.ErrConflict):
		status, kind = http.StatusConflict, types.ErrConflict
	case errors.Is(err, types.ErrUnauthorized):
		status, kind = http.StatusUnauthorized, types.ErrUnauthorized
	case errors.Is(err, types.ErrForbidden):
		status, kind = http.StatusForbidden, types.ErrForbidden
	default:
		s.logger.WithError(err).
			WithField("path", r.URL.Path).
			WithField("request_id", requestIDFromContext(r.Context())).
			Error("request failed")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error", Detail: "internal server error"})
		return
	}

	s.writeJSON(w, status, errorResponse{Error: kind.Error(), Detail: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return types.Validationf("request body is required")
		}
		return types.Validationf("invalid request body: %s", err)
	}
	return nil
}

// actor is only called behind RequireAuth.
func (s *Service) actor(r *http.Request) types.Actor {
	actor, _ := actorFromContext(r.Context())
	return actor
}
