package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medflowhq/hospital-booking/internal/auth"
)

func registerHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		user, err := svc.Register(r.Context(), req.Username, req.Password, req.Role)
		if err != nil {
			if errors.Is(err, auth.ErrDuplicateUser) {
				writeError(w, http.StatusConflict, "duplicate_user", err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_registration", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

func loginHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		token, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, TokenResponse{Token: token})
	}
}
