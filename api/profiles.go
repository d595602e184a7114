package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/internal/schema"
	"github.com/garnizeh/clinicmatch/pkg/repository"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

type ProfileHandler struct {
	profiles repository.ProfileRepo
	schemas  *schema.Loader
	tokens   *TokenIssuer
}

func NewProfileHandler(profiles repository.ProfileRepo, schemas *schema.Loader, tokens *TokenIssuer) *ProfileHandler {
	if schemas == nil {
		schemas = schema.Default()
	}
	return &ProfileHandler{profiles: profiles, schemas: schemas, tokens: tokens}
}

type profileRequest struct {
	Email              string            `json:"email" validate:"required,email,max=254"`
	Role               string            `json:"role" validate:"required,oneof=STAFF CLINIC"`
	Name               string            `json:"name" validate:"required,max=200"`
	Bio                string            `json:"bio" validate:"max=2000"`
	Positions          []string          `json:"positions" validate:"max=50,dive,max=100"`
	WorkplaceTypes     []string          `json:"workplace_types" validate:"max=50,dive,max=100"`
	Location           string            `json:"location" validate:"max=200"`
	Availability       json.RawMessage   `json:"availability"`
	Salary             models.SalaryInfo `json:"salary_info"`
	IsUrgent           bool              `json:"is_urgent"`
	ScreenerEnabled    bool              `json:"is_auto_screener_active"`
	ScreeningQuestions []string          `json:"screening_questions" validate:"max=20,dive,max=500"`
	Password           string            `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
}

type profileResponse struct {
	User  *models.Profile `json:"user"`
	Token string          `json:"token"`
}

// Upsert creates or updates the profile keyed by email and returns it with a
// fresh token. An existing profile keeps its original role and can only be
// changed with its owner's token or, when it has one, its current password.
func (h *ProfileHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if role, ok := models.ParseRole(req.Role); ok {
		req.Role = string(role)
	}
	if !validate(w, &req) {
		return
	}

	ctx := r.Context()
	if err := h.schemas.Validate(ctx, "availability", req.Availability); err != nil {
		if errors.Is(err, schema.ErrInvalid) {
			http.Error(w, "availability: "+err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, r, err)
		return
	}

	existing, err := h.profiles.GetProfileByEmail(ctx, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	viaPassword := false
	if existing != nil {
		var status int
		viaPassword, status = h.authorizeUpdate(r, existing, req.Password)
		if status != 0 {
			logger.Warn("profile update refused", slog.String("profile_id", existing.ID), slog.Int("status", status))
			http.Error(w, http.StatusText(status), status)
			return
		}
	}

	p := &models.Profile{
		Email:              req.Email,
		Role:               models.Role(req.Role),
		Name:               strings.TrimSpace(req.Name),
		Bio:                req.Bio,
		Positions:          cleanTags(req.Positions),
		WorkplaceTypes:     cleanTags(req.WorkplaceTypes),
		Location:           strings.TrimSpace(req.Location),
		Availability:       models.RawJSON(req.Availability),
		Salary:             req.Salary.Amount,
		IsUrgent:           req.IsUrgent,
		ScreenerEnabled:    req.ScreenerEnabled,
		ScreeningQuestions: cleanTags(req.ScreeningQuestions),
	}
	// a password used to prove ownership is the stored one already
	if req.Password != "" && !viaPassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "Error hashing password", http.StatusInternalServerError)
			return
		}
		p.PasswordHash = string(hash)
	}

	saved, err := h.profiles.UpsertProfile(ctx, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.tokens.Issue(saved)
	if err != nil {
		http.Error(w, "Error signing token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, profileResponse{User: saved, Token: token}, http.StatusCreated)
}

// authorizeUpdate decides whether the request may overwrite existing. A
// bearer token must belong to the profile; without one the stored password
// must match. Profiles without a password need the token. A non-zero status
// means the update is refused.
func (h *ProfileHandler) authorizeUpdate(r *http.Request, existing *models.Profile, password string) (viaPassword bool, status int) {
	if existing.IsBlocked {
		return false, http.StatusForbidden
	}
	if raw := bearerToken(r); raw != "" {
		id, err := h.tokens.Verify(raw)
		if err != nil {
			return false, http.StatusUnauthorized
		}
		if id.ProfileID != existing.ID {
			return false, http.StatusForbidden
		}
		return false, 0
	}
	if existing.PasswordHash == "" || password == "" {
		return false, http.StatusUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(password)) != nil {
		return false, http.StatusUnauthorized
	}
	return true, 0
}

// Get returns any unblocked profile; blocked ones are visible to admins and
// to their owner only. Other callers get the public view.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	caller, _ := IdentityFrom(r.Context())

	p, err := h.profiles.GetProfileByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil || (p.IsBlocked && !caller.IsAdmin && caller.ProfileID != p.ID) {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}
	if !caller.IsAdmin && caller.ProfileID != p.ID {
		writeJSON(w, p.Public(), http.StatusOK)
		return
	}

	writeJSON(w, p, http.StatusOK)
}

// cleanTags trims entries, drops blanks and never returns nil.
func cleanTags(in []string) models.StringList {
	out := make(models.StringList, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
