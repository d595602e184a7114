package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/pkg/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer signs HS256 tokens carrying the profile id, role and admin flag.
type TokenIssuer struct {
	secret   []byte
	duration time.Duration
}

func NewTokenIssuer(secret string, duration time.Duration) *TokenIssuer {
	if duration <= 0 {
		duration = 7 * 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), duration: duration}
}

func (t *TokenIssuer) Issue(p *models.Profile) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      p.ID,
		"role":     string(p.Role),
		"is_admin": p.IsAdmin,
		"iat":      now.Unix(),
		"exp":      now.Add(t.duration).Unix(),
	})
	return token.SignedString(t.secret)
}

// Verify checks a token signed by this issuer and returns its identity.
func (t *TokenIssuer) Verify(tokenString string) (Identity, error) {
	return parseToken(t.secret, tokenString)
}

type AuthHandler struct {
	profiles repository.ProfileRepo
	tokens   *TokenIssuer
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(profiles repository.ProfileRepo, tokens *TokenIssuer) *AuthHandler {
	return &AuthHandler{profiles: profiles, tokens: tokens}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password,omitempty"`
}

type loginResponse struct {
	Success bool            `json:"success"`
	User    *models.Profile `json:"user"`
	Token   string          `json:"token"`
}

// Login looks the profile up by email. Profiles created with a password must
// present it; profiles without one log in by email alone.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !validate(w, &req) {
		return
	}

	p, err := h.profiles.GetProfileByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if p.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)) != nil {
			http.Error(w, "Credentials not found", http.StatusUnauthorized)
			return
		}
	}
	if p.IsBlocked {
		http.Error(w, "Account is blocked", http.StatusForbidden)
		return
	}

	token, err := h.tokens.Issue(p)
	if err != nil {
		http.Error(w, "Error signing token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, loginResponse{Success: true, User: p, Token: token}, http.StatusOK)
}
