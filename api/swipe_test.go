package api_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/garnizeh/clinicmatch/internal/matching"
	"github.com/garnizeh/clinicmatch/internal/models"
)

func TestSwipe_MatchFlow(t *testing.T) {
	f := newFixture(t)
	staff := f.profile(t, "staff@example.com", models.RoleStaff)
	clinic := f.profile(t, "clinic@example.com", models.RoleClinic, func(p *models.Profile) {
		p.Name = "Smile Dental"
		p.ScreenerEnabled = true
		p.ScreeningQuestions = models.StringList{"Do you have a license?", "When can you start?"}
	})

	w := f.do(t, http.MethodPost, "/v1/swipe", tokenFor(t, staff), map[string]string{
		"swiper_id": staff.ID, "swiped_id": clinic.ID, "type": "LIKE",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("first like: want 200 got %d: %s", w.Code, w.Body.String())
	}
	if res := decode[matching.Result](t, w); res.IsMatch {
		t.Fatalf("one-sided like must not match")
	}
	if strings.Contains(w.Body.String(), "matchId") {
		t.Fatalf("matchId must be omitted without a match: %s", w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/v1/swipe", tokenFor(t, clinic), map[string]string{
		"swiper_id": clinic.ID, "swiped_id": staff.ID, "type": "LIKE",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reverse like: want 200 got %d: %s", w.Code, w.Body.String())
	}
	res := decode[matching.Result](t, w)
	if !res.IsMatch || res.MatchID == "" {
		t.Fatalf("expected match, got %+v", res)
	}

	// resubmitting is idempotent and reports the same match
	w = f.do(t, http.MethodPost, "/v1/swipe", tokenFor(t, clinic), map[string]string{
		"swiper_id": clinic.ID, "swiped_id": staff.ID, "type": "LIKE",
	})
	if again := decode[matching.Result](t, w); again.MatchID != res.MatchID {
		t.Fatalf("duplicate swipe returned match %q, want %q", again.MatchID, res.MatchID)
	}
	if f.store.MatchCount() != 1 {
		t.Fatalf("want 1 match, got %d", f.store.MatchCount())
	}

	w = f.do(t, http.MethodGet, "/v1/messages/"+res.MatchID, tokenFor(t, staff), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("messages: want 200 got %d", w.Code)
	}
	msgs := decode[[]models.Message](t, w)
	if len(msgs) != 1 {
		t.Fatalf("want exactly one screener message, got %d", len(msgs))
	}
	if msgs[0].SenderID != clinic.ID || !strings.Contains(msgs[0].Content, "• When can you start?") {
		t.Fatalf("unexpected screener message: %+v", msgs[0])
	}
}

func TestSwipe_Errors(t *testing.T) {
	f := newFixture(t)
	staff := f.profile(t, "staff@example.com", models.RoleStaff)
	staff2 := f.profile(t, "staff2@example.com", models.RoleStaff)
	clinic := f.profile(t, "clinic@example.com", models.RoleClinic)

	cases := []struct {
		name  string
		token string
		body  any
		want  int
	}{
		{name: "NoToken", body: map[string]string{"swiper_id": staff.ID, "swiped_id": clinic.ID, "type": "LIKE"}, want: http.StatusUnauthorized},
		{name: "IdentityMismatch", token: tokenFor(t, staff2), body: map[string]string{"swiper_id": staff.ID, "swiped_id": clinic.ID, "type": "LIKE"}, want: http.StatusForbidden},
		{name: "SameRole", token: tokenFor(t, staff), body: map[string]string{"swiper_id": staff.ID, "swiped_id": staff2.ID, "type": "LIKE"}, want: http.StatusUnprocessableEntity},
		{name: "SelfSwipe", token: tokenFor(t, staff), body: map[string]string{"swiper_id": staff.ID, "swiped_id": staff.ID, "type": "PASS"}, want: http.StatusUnprocessableEntity},
		{name: "UnknownTarget", token: tokenFor(t, staff), body: map[string]string{"swiper_id": staff.ID, "swiped_id": "nobody", "type": "LIKE"}, want: http.StatusNotFound},
		{name: "BadType", token: tokenFor(t, staff), body: map[string]string{"swiper_id": staff.ID, "swiped_id": clinic.ID, "type": "SUPERLIKE"}, want: http.StatusBadRequest},
		{name: "MissingSwiped", token: tokenFor(t, staff), body: map[string]string{"swiper_id": staff.ID, "type": "PASS"}, want: http.StatusBadRequest},
		{name: "NotJSON", token: tokenFor(t, staff), body: "[", want: http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/swipe", c.token, c.body)
			if w.Code != c.want {
				t.Fatalf("want %d got %d: %s", c.want, w.Code, w.Body.String())
			}
		})
	}
	if f.store.SwipeCount() != 0 {
		t.Fatalf("rejected swipes must not be stored, got %d", f.store.SwipeCount())
	}

	t.Run("StorageFailure", func(t *testing.T) {
		f.store.CreateSwipeErr = errors.New("disk on fire")
		defer func() { f.store.CreateSwipeErr = nil }()
		w := f.do(t, http.MethodPost, "/v1/swipe", tokenFor(t, staff), map[string]string{"swiper_id": staff.ID, "swiped_id": clinic.ID, "type": "LIKE"})
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("want 500 got %d", w.Code)
		}
		if strings.Contains(w.Body.String(), "disk on fire") {
			t.Fatalf("storage error leaked to client: %s", w.Body.String())
		}
	})
}

func TestFeed(t *testing.T) {
	f := newFixture(t)
	viewer := f.profile(t, "viewer@example.com", models.RoleStaff, func(p *models.Profile) {
		p.Positions = models.StringList{"hygienist"}
	})
	old := f.profile(t, "old@example.com", models.RoleClinic, func(p *models.Profile) { p.Positions = models.StringList{"hygienist"} })
	urgent := f.profile(t, "urgent@example.com", models.RoleClinic, func(p *models.Profile) {
		p.Positions = models.StringList{"hygienist", "assistant"}
		p.IsUrgent = true
	})
	newer := f.profile(t, "newer@example.com", models.RoleClinic, func(p *models.Profile) { p.Positions = models.StringList{"hygienist"} })
	f.profile(t, "nomatch@example.com", models.RoleClinic, func(p *models.Profile) { p.Positions = models.StringList{"surgeon"} })
	f.profile(t, "elsewhere@example.com", models.RoleClinic, func(p *models.Profile) {
		p.Positions = models.StringList{"hygienist"}
		p.Location = "Porto"
	})
	f.profile(t, "blocked@example.com", models.RoleClinic, func(p *models.Profile) {
		p.Positions = models.StringList{"hygienist"}
		p.IsBlocked = true
	})
	swiped := f.profile(t, "swiped@example.com", models.RoleClinic, func(p *models.Profile) { p.Positions = models.StringList{"hygienist"} })
	f.profile(t, "peer@example.com", models.RoleStaff, func(p *models.Profile) { p.Positions = models.StringList{"hygienist"} })

	if w := f.do(t, http.MethodPost, "/v1/swipe", tokenFor(t, viewer), map[string]string{"swiper_id": viewer.ID, "swiped_id": swiped.ID, "type": "PASS"}); w.Code != http.StatusOK {
		t.Fatalf("pass: want 200 got %d", w.Code)
	}

	w := f.do(t, http.MethodGet, "/v1/feed/"+viewer.ID, tokenFor(t, viewer), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("feed: want 200 got %d: %s", w.Code, w.Body.String())
	}
	for _, field := range []string{`"email"`, `"is_admin"`, `"screening_questions"`} {
		if strings.Contains(w.Body.String(), field) {
			t.Fatalf("feed exposes %s: %s", field, w.Body.String())
		}
	}
	feed := decode[[]models.PublicProfile](t, w)
	var got []string
	for _, p := range feed {
		got = append(got, p.ID)
	}
	want := []string{urgent.ID, newer.ID, old.ID}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("feed order: want %v got %v", want, got)
	}

	stranger := f.profile(t, "stranger@example.com", models.RoleClinic)
	if w := f.do(t, http.MethodGet, "/v1/feed/"+viewer.ID, tokenFor(t, stranger), nil); w.Code != http.StatusForbidden {
		t.Fatalf("other viewer: want 403 got %d", w.Code)
	}
	admin := f.profile(t, "admin@example.com", models.RoleClinic, func(p *models.Profile) { p.IsAdmin = true })
	if w := f.do(t, http.MethodGet, "/v1/feed/"+viewer.ID, tokenFor(t, admin), nil); w.Code != http.StatusOK {
		t.Fatalf("admin: want 200 got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/v1/feed/ghost", tokenFor(t, admin), nil); w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("unknown viewer: want 200 [] got %d %s", w.Code, w.Body.String())
	}
}
