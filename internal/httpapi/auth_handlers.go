package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/synapselabs/synapse-api/internal/auth"
	"github.com/synapselabs/synapse-api/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type authResp struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	*auth.TokenPair
}

// handleRegister creates an account and issues its first token pair.
// Duplicate email is a 409.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := store.User{
		ID:       uuid.New().String(),
		Email:    req.Email,
		IsActive: true,
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("password hashing failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	user.PasswordHash = hash

	if err := s.Users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Error().Err(err).Msg("user creation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	pair, err := s.Tokens.Issue(user.ID)
	if err != nil {
		log.Error().Err(err).Msg("token issuance failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, authResp{UserID: user.ID, Email: user.Email, TokenPair: pair})
}

// handleLogin verifies credentials and issues a token pair. Wrong email or
// password is a 401; a deactivated account is a 403.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.Users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Error().Err(err).Msg("user lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusForbidden, "account is deactivated")
		return
	}

	pair, err := s.Tokens.Issue(user.ID)
	if err != nil {
		log.Error().Err(err).Msg("token issuance failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, authResp{UserID: user.ID, Email: user.Email, TokenPair: pair})
}

// handleRefresh exchanges a valid refresh token for a fresh pair. The
// account must still exist and be active.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := s.Tokens.ValidateRefresh(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	user, err := s.Users.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		log.Error().Err(err).Msg("user lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusForbidden, "account is deactivated")
		return
	}

	pair, err := s.Tokens.Issue(user.ID)
	if err != nil {
		log.Error().Err(err).Msg("token issuance failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, authResp{UserID: user.ID, Email: user.Email, TokenPair: pair})
}

// decodeValid decodes a JSON body and runs struct validation.
func decodeValid(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("malformed request body")
	}
	if err := validate.Struct(v); err != nil {
		return errors.New("invalid request: " + err.Error())
	}
	return nil
}
