package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/garnizeh/clinicmatch/internal/ai"
	"github.com/garnizeh/clinicmatch/pkg/repository"
)

// TextGenerator is the part of ai.Generator the handlers call.
type TextGenerator interface {
	GenerateBio(ctx context.Context, in ai.BioInput) (string, error)
	GenerateQuestions(ctx context.Context, in ai.QuestionsInput) ([]string, error)
}

type AIHandler struct {
	gen      TextGenerator
	profiles repository.ProfileRepo
}

func NewAIHandler(gen TextGenerator, profiles repository.ProfileRepo) *AIHandler {
	return &AIHandler{gen: gen, profiles: profiles}
}

type bioRequest struct {
	Keywords string `json:"keywords" validate:"required,max=500"`
	Role     string `json:"role" validate:"omitempty,max=50"`
	// Save writes the generated bio to the caller's profile.
	Save bool `json:"save"`
}

type bioResponse struct {
	Bio   string `json:"bio"`
	Saved bool   `json:"saved,omitempty"`
}

func (h *AIHandler) GenerateBio(w http.ResponseWriter, r *http.Request) {
	if h.gen == nil {
		http.Error(w, "AI service is not configured", http.StatusServiceUnavailable)
		return
	}
	var req bioRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Keywords = strings.TrimSpace(req.Keywords)
	if !validate(w, &req) {
		return
	}

	caller, _ := IdentityFrom(r.Context())
	role := req.Role
	if role == "" {
		role = string(caller.Role)
	}

	bio, err := h.gen.GenerateBio(r.Context(), ai.BioInput{Role: role, Keywords: req.Keywords})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := bioResponse{Bio: bio}
	if req.Save {
		if err := h.profiles.UpdateBio(r.Context(), caller.ProfileID, bio); err != nil {
			writeError(w, r, err)
			return
		}
		resp.Saved = true
	}

	writeJSON(w, resp, http.StatusOK)
}

type questionsRequest struct {
	Position      string `json:"position" validate:"required,max=100"`
	WorkplaceType string `json:"workplace_type" validate:"max=100"`
}

type questionsResponse struct {
	Questions []string `json:"questions"`
}

func (h *AIHandler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	if h.gen == nil {
		http.Error(w, "AI service is not configured", http.StatusServiceUnavailable)
		return
	}
	var req questionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Position = strings.TrimSpace(req.Position)
	if !validate(w, &req) {
		return
	}

	qs, err := h.gen.GenerateQuestions(r.Context(), ai.QuestionsInput{Position: req.Position, WorkplaceType: req.WorkplaceType})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, questionsResponse{Questions: qs}, http.StatusOK)
}
