package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role classifies which side of the market a profile belongs to.
type Role string

const (
	RoleStaff  Role = "STAFF"
	RoleClinic Role = "CLINIC"
)

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleClinic
}

// Opposite returns the role on the other side of the market. Unknown roles map to "".
func (r Role) Opposite() Role {
	switch r {
	case RoleStaff:
		return RoleClinic
	case RoleClinic:
		return RoleStaff
	default:
		return ""
	}
}

type SwipeType string

const (
	SwipeLike SwipeType = "LIKE"
	SwipePass SwipeType = "PASS"
)

func (t SwipeType) Valid() bool {
	return t == SwipeLike || t == SwipePass
}

const (
	MessageKindChat     = "chat"
	MessageKindScreener = "screener"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

type Profile struct {
	ID                 string     `json:"id" db:"id"`
	Email              string     `json:"email" db:"email"`
	Role               Role       `json:"role" db:"role"`
	Name               string     `json:"name" db:"name"`
	Bio                string     `json:"bio,omitempty" db:"bio"`
	Positions          StringList `json:"positions" db:"positions"`
	WorkplaceTypes     StringList `json:"workplace_types" db:"workplace_types"`
	Location           string     `json:"location" db:"location"`
	Availability       RawJSON    `json:"availability,omitempty" db:"availability"`
	Salary             int64      `json:"salary_info" db:"salary"`
	IsUrgent           bool       `json:"is_urgent" db:"is_urgent"`
	ScreenerEnabled    bool       `json:"is_auto_screener_active" db:"is_auto_screener_active"`
	ScreeningQuestions StringList `json:"screening_questions" db:"screening_questions"`
	IsAdmin            bool       `json:"is_admin" db:"is_admin"`
	IsBlocked          bool       `json:"is_blocked" db:"is_blocked"`
	PasswordHash       string     `json:"-" db:"password_hash"`
	Created            int64      `json:"created" db:"created"`
}

// PublicProfile is what other users see of a profile: no contact, admin or
// screening details.
type PublicProfile struct {
	ID             string     `json:"id"`
	Role           Role       `json:"role"`
	Name           string     `json:"name"`
	Bio            string     `json:"bio,omitempty"`
	Positions      StringList `json:"positions"`
	WorkplaceTypes StringList `json:"workplace_types"`
	Location       string     `json:"location"`
	Salary         int64      `json:"salary_info"`
	IsUrgent       bool       `json:"is_urgent"`
}

func (p *Profile) Public() PublicProfile {
	return PublicProfile{
		ID:             p.ID,
		Role:           p.Role,
		Name:           p.Name,
		Bio:            p.Bio,
		Positions:      p.Positions,
		WorkplaceTypes: p.WorkplaceTypes,
		Location:       p.Location,
		Salary:         p.Salary,
		IsUrgent:       p.IsUrgent,
	}
}

type Swipe struct {
	SwiperID string    `json:"swiper_id" db:"swiper_id"`
	SwipedID string    `json:"swiped_id" db:"swiped_id"`
	Type     SwipeType `json:"type" db:"type"`
	Created  int64     `json:"created" db:"created"`
}

// Match is stored with the pair normalised so that UserOneID < UserTwoID.
type Match struct {
	ID        string `json:"id" db:"id"`
	UserOneID string `json:"user_one_id" db:"user_one_id"`
	UserTwoID string `json:"user_two_id" db:"user_two_id"`
	Created   int64  `json:"created" db:"created"`
}

// Has reports whether profileID is one of the two matched profiles.
func (m *Match) Has(profileID string) bool {
	return m != nil && (m.UserOneID == profileID || m.UserTwoID == profileID)
}

// Other returns the counterpart of profileID in the match.
func (m *Match) Other(profileID string) string {
	if m.UserOneID == profileID {
		return m.UserTwoID
	}
	return m.UserOneID
}

// MatchSummary is a match seen from one participant's side.
type MatchSummary struct {
	MatchID   string     `json:"match_id" db:"match_id"`
	ProfileID string     `json:"profile_id" db:"profile_id"`
	Name      string     `json:"name" db:"name"`
	Positions StringList `json:"positions" db:"positions"`
	Location  string     `json:"location" db:"location"`
	Created   int64      `json:"created" db:"created"`
}

type Message struct {
	ID       string `json:"id" db:"id"`
	MatchID  string `json:"match_id" db:"match_id"`
	SenderID string `json:"sender_id" db:"sender_id"`
	Content  string `json:"content" db:"content"`
	Kind     string `json:"kind" db:"kind"`
	Created  int64  `json:"created" db:"created"`
}

type Template struct {
	Name        string  `json:"name" db:"name"`
	Version     string  `json:"version" db:"version"`
	TemplateTxt string  `json:"template_text" db:"template_text"`
	Metadata    *string `json:"metadata,omitempty" db:"metadata"`
	Created     int64   `json:"created" db:"created"`
	Updated     int64   `json:"updated" db:"updated"`
}

// StringList is a list of tags persisted as a JSON array in a TEXT column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("scan StringList: unsupported type %T", src)
	}
	if len(b) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("scan StringList: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// Overlaps reports whether l and other share at least one tag.
func (l StringList) Overlaps(other StringList) bool {
	seen := make(map[string]struct{}, len(l))
	for _, s := range l {
		seen[s] = struct{}{}
	}
	for _, s := range other {
		if _, ok := seen[s]; ok {
			return true
		}
	}
	return false
}

// RawJSON is an opaque JSON document persisted as TEXT.
type RawJSON json.RawMessage

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawJSON) UnmarshalJSON(b []byte) error {
	if r == nil {
		return fmt.Errorf("RawJSON: UnmarshalJSON on nil pointer")
	}
	*r = append((*r)[0:0], b...)
	return nil
}

func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 || string(r) == "null" {
		return nil, nil
	}
	return string(r), nil
}

func (r *RawJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
	case string:
		*r = RawJSON(v)
	case []byte:
		*r = append((*r)[0:0], v...)
	default:
		return fmt.Errorf("scan RawJSON: unsupported type %T", src)
	}
	return nil
}

// Job statuses.
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobRetry   = "retry"
	JobDone    = "done"
	JobFailed  = "failed"
)

// BackgroundJob is a row of the jobs table. Times are stored as unix millis.
type BackgroundJob struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
