// Package matching records swipes and turns reciprocal likes into matches.
//
// The engine holds no locks. A match is created by a single conditional
// insert keyed by the unordered pair, so two opposite likes racing each other
// both end up with the same match id, and reciprocity is always re-queried
// rather than remembered.
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garnizeh/clinicmatch/internal/metrics"
	"github.com/garnizeh/clinicmatch/internal/models"
)

var (
	// ErrAuthorizationMismatch means the caller tried to swipe as someone else.
	ErrAuthorizationMismatch = errors.New("caller is not the swiper")
	ErrNotFound              = errors.New("profile not found")
	// ErrInvalidOperation is returned for swipes between profiles of the same role.
	ErrInvalidOperation = errors.New("profiles must have opposite roles")
	ErrInvalidSwipeType = errors.New("swipe type must be LIKE or PASS")
)

// JobScreenerDeliver is the background job type that retries a failed screener.
const JobScreenerDeliver = "screener.deliver"

// Store is the persistence the engine needs.
type Store interface {
	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
	CreateSwipe(ctx context.Context, s *models.Swipe) (bool, error)
	HasSwiped(ctx context.Context, swiperID, swipedID string, t models.SwipeType) (bool, error)
	CreateMatch(ctx context.Context, a, b string) (*models.Match, bool, error)
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	CreateMessage(ctx context.Context, m *models.Message) (bool, error)
}

// Enqueuer hands work to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (string, error)
}

// Result is the outcome of a swipe.
type Result struct {
	IsMatch bool   `json:"isMatch"`
	MatchID string `json:"matchId,omitempty"`
}

type Engine struct {
	store  Store
	queue  Enqueuer
	logger *slog.Logger
}

type Option func(*Engine)

// WithQueue makes failed screener deliveries retry in the background.
func WithQueue(q Enqueuer) Option {
	return func(e *Engine) { e.queue = q }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RecordSwipe stores a swipe from swiperID on swipedID on behalf of callerID
// and reports whether the pair is now matched. The swipe stays recorded even
// when a later step fails.
func (e *Engine) RecordSwipe(ctx context.Context, callerID, swiperID, swipedID string, t models.SwipeType) (Result, error) {
	if callerID == "" || callerID != swiperID {
		return Result{}, ErrAuthorizationMismatch
	}
	if !t.Valid() {
		return Result{}, ErrInvalidSwipeType
	}

	swiper, err := e.store.GetProfileByID(ctx, swiperID)
	if err != nil {
		return Result{}, fmt.Errorf("load swiper: %w", err)
	}
	if swiper == nil {
		return Result{}, ErrNotFound
	}
	target, err := e.store.GetProfileByID(ctx, swipedID)
	if err != nil {
		return Result{}, fmt.Errorf("load target: %w", err)
	}
	if target == nil || target.IsBlocked {
		return Result{}, ErrNotFound
	}
	if swiper.Role == target.Role {
		return Result{}, ErrInvalidOperation
	}

	created, err := e.store.CreateSwipe(ctx, &models.Swipe{SwiperID: swiperID, SwipedID: swipedID, Type: t})
	if err != nil {
		return Result{}, fmt.Errorf("record swipe: %w", err)
	}
	if created {
		metrics.Swipes.WithLabelValues(string(t)).Inc()
	}

	if t != models.SwipeLike {
		return Result{IsMatch: false}, nil
	}

	reciprocal, err := e.store.HasSwiped(ctx, swipedID, swiperID, models.SwipeLike)
	if err != nil {
		return Result{}, fmt.Errorf("check reciprocal like: %w", err)
	}
	if !reciprocal {
		return Result{IsMatch: false}, nil
	}

	m, matchCreated, err := e.store.CreateMatch(ctx, swiperID, swipedID)
	if err != nil {
		return Result{}, fmt.Errorf("create match: %w", err)
	}
	if matchCreated {
		metrics.MatchesCreated.Inc()
		e.logger.Info("match created", "match_id", m.ID, "swiper_id", swiperID, "swiped_id", swipedID)
		if _, err := e.Screen(ctx, m); err != nil {
			e.screenerFailed(ctx, m.ID, err)
		}
	}

	return Result{IsMatch: true, MatchID: m.ID}, nil
}

// DeliverScreener runs the screener for an existing match. It is safe to
// repeat: storage keeps at most one screener message per match.
func (e *Engine) DeliverScreener(ctx context.Context, matchID string) (bool, error) {
	m, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return false, fmt.Errorf("load match: %w", err)
	}
	if m == nil {
		return false, ErrNotFound
	}
	return e.Screen(ctx, m)
}

func (e *Engine) screenerFailed(ctx context.Context, matchID string, cause error) {
	metrics.ScreenerMessages.WithLabelValues(metrics.ScreenerFailed).Inc()
	e.logger.Warn("auto-screener failed", "match_id", matchID, "err", cause)
	if e.queue == nil {
		return
	}

	// the request may already be cancelled; the retry must still be queued
	qctx := context.WithoutCancel(ctx)
	payload := ScreenerPayload{MatchID: matchID}
	if _, err := e.queue.Enqueue(qctx, JobScreenerDeliver, payload, 10, 0); err != nil {
		e.logger.Error("enqueue screener retry", "match_id", matchID, "err", err)
	}
}

// ScreenerPayload is the body of a screener.deliver job.
type ScreenerPayload struct {
	MatchID string `json:"match_id"`
}

// ScreenerJobHandler decodes a screener.deliver payload and delivers it.
func (e *Engine) ScreenerJobHandler(ctx context.Context, payload json.RawMessage) error {
	var p ScreenerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode screener payload: %w", err)
	}
	if p.MatchID == "" {
		return fmt.Errorf("screener payload: match_id is empty")
	}
	_, err := e.DeliverScreener(ctx, p.MatchID)
	return err
}
