package api

import (
	"context"
	"net/http"

	"github.com/garnizeh/clinicmatch/internal/matching"
	"github.com/garnizeh/clinicmatch/internal/models"
)

// SwipeRecorder is the engine operation behind POST /v1/swipe.
type SwipeRecorder interface {
	RecordSwipe(ctx context.Context, callerID, swiperID, swipedID string, t models.SwipeType) (matching.Result, error)
}

type SwipeHandler struct {
	engine SwipeRecorder
}

func NewSwipeHandler(engine SwipeRecorder) *SwipeHandler {
	return &SwipeHandler{engine: engine}
}

type swipeRequest struct {
	SwiperID string `json:"swiper_id" validate:"required"`
	SwipedID string `json:"swiped_id" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=LIKE PASS"`
}

func (h *SwipeHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	var req swipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller, _ := IdentityFrom(r.Context())
	if req.SwiperID != "" && caller.ProfileID != req.SwiperID {
		http.Error(w, "Identity mismatch", http.StatusForbidden)
		return
	}
	if !validate(w, &req) {
		return
	}

	res, err := h.engine.RecordSwipe(r.Context(), caller.ProfileID, req.SwiperID, req.SwipedID, models.SwipeType(req.Type))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, res, http.StatusOK)
}
