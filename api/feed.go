package api

import (
	"net/http"

	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/pkg/repository"
	"github.com/gorilla/mux"
)

const (
	feedLimit = 20
	// rows read from storage before the tag filter runs
	feedScanLimit = 500
)

type FeedHandler struct {
	profiles repository.ProfileRepo
}

func NewFeedHandler(profiles repository.ProfileRepo) *FeedHandler {
	return &FeedHandler{profiles: profiles}
}

// Feed lists profiles of the opposite role the viewer may swipe on next.
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	caller, _ := IdentityFrom(r.Context())
	if caller.ProfileID != userID && !caller.IsAdmin {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	ctx := r.Context()
	viewer, err := h.profiles.GetProfileByID(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if viewer == nil {
		writeJSON(w, []models.PublicProfile{}, http.StatusOK)
		return
	}

	candidates, err := h.profiles.FeedCandidates(ctx, viewer.ID, viewer.Role.Opposite(), viewer.Location, feedScanLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	feed := filterFeed(viewer, candidates, feedLimit)
	out := make([]models.PublicProfile, 0, len(feed))
	for i := range feed {
		out = append(out, feed[i].Public())
	}
	writeJSON(w, out, http.StatusOK)
}

// filterFeed keeps candidates sharing a workplace type and a position with
// the viewer. An empty list on the viewer's side matches everything. Input
// order is preserved.
func filterFeed(viewer *models.Profile, candidates []models.Profile, limit int) []models.Profile {
	out := make([]models.Profile, 0, min(len(candidates), limit))
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		if len(viewer.WorkplaceTypes) > 0 && !viewer.WorkplaceTypes.Overlaps(c.WorkplaceTypes) {
			continue
		}
		if len(viewer.Positions) > 0 && !viewer.Positions.Overlaps(c.Positions) {
			continue
		}
		out = append(out, c)
	}
	return out
}
