package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/pkg/repository"
	"github.com/gorilla/mux"
)

type AdminHandler struct {
	profiles repository.ProfileRepo
}

func NewAdminHandler(profiles repository.ProfileRepo) *AdminHandler {
	return &AdminHandler{profiles: profiles}
}

// ListProfiles pages through every profile, blocked ones included.
// Query params: limit (default 50, max 200) and offset.
func (h *AdminHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	rows, err := h.profiles.ListProfiles(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.Profile{}
	}

	writeJSON(w, rows, http.StatusOK)
}

func (h *AdminHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *AdminHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *AdminHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	p, err := h.profiles.GetProfileByID(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}
	if err := h.profiles.SetBlocked(ctx, id, blocked); err != nil {
		writeError(w, r, err)
		return
	}

	caller, _ := IdentityFrom(ctx)
	logger.Info("profile block state changed",
		slog.String("profile_id", id),
		slog.Bool("blocked", blocked),
		slog.String("admin_id", caller.ProfileID),
	)
	p.IsBlocked = blocked
	writeJSON(w, p, http.StatusOK)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
