package sqlstore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gocraft/dbr/v2"

	"github.com/garnizeh/clinicmatch/internal/db"
	"github.com/garnizeh/clinicmatch/pkg/repository"
)

// DefaultJobLease is how long a running job may go without an update before
// another worker may claim it again.
const DefaultJobLease = 10 * time.Minute

// Store implements the repository interfaces on top of the internal DB
// wrapper. Every statement is written with ? placeholders and interpolated
// by dbr for the connection's dialect, so the same code serves SQLite and
// Postgres.
type Store struct {
	db       *db.DB
	logger   *slog.Logger
	jobLease time.Duration
}

var (
	_ repository.ProfileRepo  = (*Store)(nil)
	_ repository.SwipeRepo    = (*Store)(nil)
	_ repository.MatchRepo    = (*Store)(nil)
	_ repository.MessageRepo  = (*Store)(nil)
	_ repository.TemplateRepo = (*Store)(nil)
	_ repository.JobRepo      = (*Store)(nil)
)

func New(d *db.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: d, logger: logger, jobLease: DefaultJobLease}
}

// SetJobLease changes the lease after which a running job is reclaimed.
func (s *Store) SetJobLease(d time.Duration) {
	if d > 0 {
		s.jobLease = d
	}
}

// Repository returns a repository.Repository backed entirely by s.
func (s *Store) Repository() *repository.Repository {
	return &repository.Repository{
		Profile:  s,
		Swipe:    s,
		Match:    s,
		Message:  s,
		Template: s,
		Job:      s,
	}
}

func (s *Store) sess() *dbr.Session {
	return s.db.Session()
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

// notFound folds dbr.ErrNotFound into the (nil, nil) lookup convention.
func notFound(err error) bool {
	return errors.Is(err, dbr.ErrNotFound)
}
