package repository

import (
	"context"

	"github.com/garnizeh/clinicmatch/internal/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Lookups return (nil, nil) when the row does not exist.

type ProfileRepo interface {
	// UpsertProfile inserts or updates by email and returns the stored row.
	// The role of an existing profile is never changed.
	UpsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	ListProfiles(ctx context.Context, limit, offset int) ([]models.Profile, error)
	SetBlocked(ctx context.Context, id string, blocked bool) error
	UpdateBio(ctx context.Context, id, bio string) error
	// FeedCandidates returns unblocked profiles of role in location that
	// viewerID has not swiped yet, urgent first then newest, at most limit rows.
	FeedCandidates(ctx context.Context, viewerID string, role models.Role, location string, limit int) ([]models.Profile, error)
}

type SwipeRepo interface {
	// CreateSwipe records a directed swipe. created is false when the same
	// (swiper, swiped, type) already existed.
	CreateSwipe(ctx context.Context, s *models.Swipe) (created bool, err error)
	HasSwiped(ctx context.Context, swiperID, swipedID string, t models.SwipeType) (bool, error)
}

type MatchRepo interface {
	// CreateMatch creates the match for the unordered pair {a, b} or returns
	// the existing one. It is a single conditional insert keyed by the pair,
	// so concurrent callers always observe the same match.
	CreateMatch(ctx context.Context, a, b string) (m *models.Match, created bool, err error)
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	ListMatchesForProfile(ctx context.Context, profileID string) ([]models.MatchSummary, error)
}

type MessageRepo interface {
	// CreateMessage stores m. created is false when m is a screener message
	// and the match already has one.
	CreateMessage(ctx context.Context, m *models.Message) (created bool, err error)
	ListMessages(ctx context.Context, matchID string) ([]models.Message, error)
}

type TemplateRepo interface {
	CreateTemplate(ctx context.Context, name, version, templateText string, metadata *string) error
	GetTemplate(ctx context.Context, name, version string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
}

type JobRepo interface {
	Enqueue(ctx context.Context, j *models.BackgroundJob) (string, error)
	// ClaimNext marks the next runnable job as running and returns it, or
	// (nil, nil) when nothing is due.
	ClaimNext(ctx context.Context) (*models.BackgroundJob, error)
	UpdateJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
}

// Repository groups the repositories used by the HTTP layer.
type Repository struct {
	Profile  ProfileRepo
	Swipe    SwipeRepo
	Match    MatchRepo
	Message  MessageRepo
	Template TemplateRepo
	Job      JobRepo
}
