// Package mock provides an in-memory implementation of the repository
// interfaces with hooks for injecting failures in tests.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/pkg/repository"
)

// Store keeps every entity in maps guarded by one mutex. The *Err fields,
// when set, are returned by the matching method before it touches state.
type Store struct {
	mu        sync.Mutex
	profiles  map[string]*models.Profile
	swipes    map[swipeKey]models.Swipe
	matches   map[string]*models.Match
	messages  []models.Message
	templates map[string]models.Template
	jobs      map[string]*models.BackgroundJob
	dead      []models.BackgroundJob
	clock     int64

	CreateSwipeErr   error
	HasSwipedErr     error
	CreateMatchErr   error
	CreateMessageErr error
	EnqueueErr       error

	// Enqueued records every job passed to Enqueue.
	Enqueued []models.BackgroundJob
}

type swipeKey struct {
	swiper, swiped string
	typ            models.SwipeType
}

var (
	_ repository.ProfileRepo  = (*Store)(nil)
	_ repository.SwipeRepo    = (*Store)(nil)
	_ repository.MatchRepo    = (*Store)(nil)
	_ repository.MessageRepo  = (*Store)(nil)
	_ repository.TemplateRepo = (*Store)(nil)
	_ repository.JobRepo      = (*Store)(nil)
)

func New() *Store {
	return &Store{
		profiles:  map[string]*models.Profile{},
		swipes:    map[swipeKey]models.Swipe{},
		matches:   map[string]*models.Match{},
		templates: map[string]models.Template{},
		jobs:      map[string]*models.BackgroundJob{},
	}
}

func (s *Store) Repository() *repository.Repository {
	return &repository.Repository{Profile: s, Swipe: s, Match: s, Message: s, Template: s, Job: s}
}

// tick returns a strictly increasing timestamp so ordering is stable.
func (s *Store) tick() int64 {
	s.clock++
	return s.clock
}

func (s *Store) UpsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(p.Email))
	for _, existing := range s.profiles {
		if existing.Email == email {
			cp := *p
			cp.ID, cp.Email, cp.Role = existing.ID, existing.Email, existing.Role
			cp.IsAdmin, cp.IsBlocked, cp.Created = existing.IsAdmin, existing.IsBlocked, existing.Created
			if cp.PasswordHash == "" {
				cp.PasswordHash = existing.PasswordHash
			}
			s.profiles[cp.ID] = &cp
			out := cp
			return &out, nil
		}
	}
	cp := *p
	cp.Email = email
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Created = s.tick()
	s.profiles[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		out := *p
		return &out, nil
	}
	return nil, nil
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range s.profiles {
		if p.Email == email {
			out := *p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListProfiles(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created > out[j].Created })
	if offset >= len(out) {
		return []models.Profile{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetBlocked(ctx context.Context, id string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		p.IsBlocked = blocked
	}
	return nil
}

func (s *Store) UpdateBio(ctx context.Context, id, bio string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		p.Bio = bio
	}
	return nil
}

func (s *Store) FeedCandidates(ctx context.Context, viewerID string, role models.Role, location string, limit int) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Profile
	for _, p := range s.profiles {
		if p.Role != role || p.Location != location || p.IsBlocked || p.ID == viewerID {
			continue
		}
		if s.swipedAnyLocked(viewerID, p.ID) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsUrgent != out[j].IsUrgent {
			return out[i].IsUrgent
		}
		return out[i].Created > out[j].Created
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) swipedAnyLocked(swiper, swiped string) bool {
	for k := range s.swipes {
		if k.swiper == swiper && k.swiped == swiped {
			return true
		}
	}
	return false
}

func (s *Store) CreateSwipe(ctx context.Context, sw *models.Swipe) (bool, error) {
	if s.CreateSwipeErr != nil {
		return false, s.CreateSwipeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := swipeKey{sw.SwiperID, sw.SwipedID, sw.Type}
	if _, ok := s.swipes[k]; ok {
		return false, nil
	}
	cp := *sw
	cp.Created = s.tick()
	s.swipes[k] = cp
	return true, nil
}

func (s *Store) HasSwiped(ctx context.Context, swiperID, swipedID string, t models.SwipeType) (bool, error) {
	if s.HasSwipedErr != nil {
		return false, s.HasSwipedErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.swipes[swipeKey{swiperID, swipedID, t}]
	return ok, nil
}

// SwipeCount returns the number of stored swipes.
func (s *Store) SwipeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.swipes)
}

func (s *Store) CreateMatch(ctx context.Context, a, b string) (*models.Match, bool, error) {
	if s.CreateMatchErr != nil {
		return nil, false, s.CreateMatchErr
	}
	if a == b {
		return nil, false, fmt.Errorf("create match: a profile cannot match itself")
	}
	one, two := a, b
	if two < one {
		one, two = two, one
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.UserOneID == one && m.UserTwoID == two {
			out := *m
			return &out, false, nil
		}
	}
	m := &models.Match{ID: uuid.NewString(), UserOneID: one, UserTwoID: two, Created: s.tick()}
	s.matches[m.ID] = m
	out := *m
	return &out, true, nil
}

func (s *Store) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[id]; ok {
		out := *m
		return &out, nil
	}
	return nil, nil
}

// MatchCount returns the number of stored matches.
func (s *Store) MatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

func (s *Store) ListMatchesForProfile(ctx context.Context, profileID string) ([]models.MatchSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.MatchSummary{}
	for _, m := range s.matches {
		if !m.Has(profileID) {
			continue
		}
		other, ok := s.profiles[m.Other(profileID)]
		if !ok {
			continue
		}
		out = append(out, models.MatchSummary{
			MatchID:   m.ID,
			ProfileID: other.ID,
			Name:      other.Name,
			Positions: other.Positions,
			Location:  other.Location,
			Created:   m.Created,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created > out[j].Created })
	return out, nil
}

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) (bool, error) {
	if s.CreateMessageErr != nil {
		return false, s.CreateMessageErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Kind == "" {
		m.Kind = models.MessageKindChat
	}
	if m.Kind == models.MessageKindScreener {
		for _, existing := range s.messages {
			if existing.MatchID == m.MatchID && existing.Kind == models.MessageKindScreener {
				return false, nil
			}
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Created == 0 {
		m.Created = s.tick()
	}
	s.messages = append(s.messages, *m)
	return true, nil
}

func (s *Store) ListMessages(ctx context.Context, matchID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Message{}
	for _, m := range s.messages {
		if m.MatchID == matchID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created < out[j].Created })
	return out, nil
}

func (s *Store) CreateTemplate(ctx context.Context, name, version, templateText string, metadata *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tick()
	key := name + ":" + version
	t, ok := s.templates[key]
	if !ok {
		t = models.Template{Name: name, Version: version, Created: ts}
	}
	t.TemplateTxt, t.Metadata, t.Updated = templateText, metadata, ts
	s.templates[key] = t
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.templates[name+":"+version]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (s *Store) Enqueue(ctx context.Context, j *models.BackgroundJob) (string, error) {
	if s.EnqueueErr != nil {
		return "", s.EnqueueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = time.Now()
	}
	cp := *j
	cp.Status = models.JobQueued
	s.jobs[cp.ID] = &cp
	s.Enqueued = append(s.Enqueued, cp)
	return cp.ID, nil
}

func (s *Store) ClaimNext(ctx context.Context) (*models.BackgroundJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var best *models.BackgroundJob
	for _, j := range s.jobs {
		if j.Status != models.JobQueued && j.Status != models.JobRetry {
			continue
		}
		if j.NextTryAt != nil && j.NextTryAt.After(now) {
			continue
		}
		if best == nil || j.Priority < best.Priority || (j.Priority == best.Priority && j.ScheduledAt.Before(best.ScheduledAt)) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Status = models.JobRunning
	out := *best
	return &out, nil
}

func (s *Store) UpdateJob(ctx context.Context, j *models.BackgroundJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		cp := *j
		s.jobs[j.ID] = &cp
	}
	return nil
}

func (s *Store) MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, j.ID)
	s.dead = append(s.dead, *j)
	return nil
}

// DeadLetters returns a copy of the dead-lettered jobs.
func (s *Store) DeadLetters() []models.BackgroundJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.BackgroundJob(nil), s.dead...)
}

// Job returns the current state of a queued job, if any.
func (s *Store) Job(id string) (*models.BackgroundJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	out := *j
	return &out, true
}

// Queue adapts Store to an Enqueue(ctx, type, payload, priority, maxAttempts)
// style producer without a worker pool.
type Queue struct {
	Store *Store
}

func (q Queue) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return q.Store.Enqueue(ctx, &models.BackgroundJob{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts})
}
