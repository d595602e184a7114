package api

import (
	"net/http"
	"strings"

	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/pkg/repository"
	"github.com/gorilla/mux"
)

type MatchHandler struct {
	matches  repository.MatchRepo
	messages repository.MessageRepo
}

func NewMatchHandler(matches repository.MatchRepo, messages repository.MessageRepo) *MatchHandler {
	return &MatchHandler{matches: matches, messages: messages}
}

// ListMatches returns the caller's matches, newest first, each with the
// counterpart's public details.
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	caller, _ := IdentityFrom(r.Context())
	if caller.ProfileID != userID && !caller.IsAdmin {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	rows, err := h.matches.ListMatchesForProfile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.MatchSummary{}
	}

	writeJSON(w, rows, http.StatusOK)
}

// loadMatchFor returns the match when caller may read it, writing the error
// response otherwise.
func (h *MatchHandler) loadMatchFor(w http.ResponseWriter, r *http.Request, matchID string, caller Identity) (*models.Match, bool) {
	m, err := h.matches.GetMatch(r.Context(), matchID)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if m == nil {
		http.Error(w, "Match not found", http.StatusNotFound)
		return nil, false
	}
	if !m.Has(caller.ProfileID) && !caller.IsAdmin {
		http.Error(w, "Access denied", http.StatusForbidden)
		return nil, false
	}
	return m, true
}

// ListMessages returns the conversation oldest first.
func (h *MatchHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	caller, _ := IdentityFrom(r.Context())
	if _, ok := h.loadMatchFor(w, r, matchID, caller); !ok {
		return
	}

	rows, err := h.messages.ListMessages(r.Context(), matchID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.Message{}
	}

	writeJSON(w, rows, http.StatusOK)
}

type messageRequest struct {
	MatchID  string `json:"match_id" validate:"required"`
	SenderID string `json:"sender_id" validate:"required"`
	Content  string `json:"content" validate:"required,max=4000"`
}

func (h *MatchHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller, _ := IdentityFrom(r.Context())
	if caller.ProfileID != req.SenderID {
		http.Error(w, "Identity mismatch", http.StatusForbidden)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if !validate(w, &req) {
		return
	}

	m, ok := h.loadMatchFor(w, r, req.MatchID, caller)
	if !ok {
		return
	}
	// admins may read any conversation but only participants may write
	if !m.Has(req.SenderID) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	msg := &models.Message{
		MatchID:  m.ID,
		SenderID: req.SenderID,
		Content:  req.Content,
		Kind:     models.MessageKindChat,
	}
	if _, err := h.messages.CreateMessage(r.Context(), msg); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, msg, http.StatusCreated)
}
