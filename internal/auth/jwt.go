// Package auth issues and validates the HS256 bearer tokens that carry an
// authenticated user id into every request.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const CtxUserID ctxKey = "uid"

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken covers bad signatures, expiry, and malformed claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongTokenType means a refresh token was presented where an
	// access token is required, or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Tokens holds signing configuration for issuing and validating JWTs.
type Tokens struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenPair is one issuance result.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "bearer"
}

// Issue signs a fresh access/refresh pair for userID.
func (t *Tokens) Issue(userID string) (*TokenPair, error) {
	access, err := t.sign(userID, tokenTypeAccess, t.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := t.sign(userID, tokenTypeRefresh, t.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func (t *Tokens) sign(userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"type": tokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

// ValidateAccess checks an access token and returns its user id.
func (t *Tokens) ValidateAccess(token string) (string, error) {
	return t.validate(token, tokenTypeAccess)
}

// ValidateRefresh checks a refresh token and returns its user id.
func (t *Tokens) ValidateRefresh(token string) (string, error) {
	return t.validate(token, tokenTypeRefresh)
}

func (t *Tokens) validate(token, wantType string) (string, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	if typ, _ := claims["type"].(string); typ != wantType {
		return "", ErrWrongTokenType
	}
	return sub, nil
}

// Middleware rejects requests without a valid bearer access token and puts
// the token's user id on the request context.
func Middleware(tokens *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				tok = h[7:]
			}
			if tok == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := tokens.ValidateAccess(tok)
			if err != nil {
				log.Warn().Err(err).Msg("jwt validation failed")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CtxUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user id from request context. Empty
// only before the middleware has run.
func UserID(ctx context.Context) string {
	if s, ok := ctx.Value(CtxUserID).(string); ok {
		return s
	}
	return ""
}
