package api_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/garnizeh/clinicmatch/api"
	"github.com/garnizeh/clinicmatch/internal/config"
	"github.com/garnizeh/clinicmatch/internal/matching"
	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/pkg/ollama"
	"github.com/garnizeh/clinicmatch/pkg/repository/mock"
)

func TestAI_GenerateBio(t *testing.T) {
	f := newFixture(t)
	staff := f.profile(t, "staff@example.com", models.RoleStaff)

	w := f.do(t, http.MethodPost, "/v1/ai/generate-bio", tokenFor(t, staff), map[string]any{"keywords": "pediatric, night shifts"})
	if w.Code != http.StatusOK {
		t.Fatalf("want 200 got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Bio   string `json:"bio"`
		Saved bool   `json:"saved"`
	}
	mustUnmarshal(t, w.Body.Bytes(), &resp)
	if resp.Bio != "Caring and punctual (STAFF)" || resp.Saved {
		t.Fatalf("unexpected response: %+v", resp)
	}

	w = f.do(t, http.MethodPost, "/v1/ai/generate-bio", tokenFor(t, staff), map[string]any{"keywords": "x", "role": "nurse", "save": true})
	if w.Code != http.StatusOK {
		t.Fatalf("save: want 200 got %d", w.Code)
	}
	p, _ := f.store.GetProfileByID(context.Background(), staff.ID)
	if p.Bio != "Caring and punctual (nurse)" {
		t.Fatalf("bio not saved: %q", p.Bio)
	}

	if w := f.do(t, http.MethodPost, "/v1/ai/generate-bio", tokenFor(t, staff), map[string]any{"keywords": " "}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank keywords: want 400 got %d", w.Code)
	}
}

func TestAI_GenerateQuestions(t *testing.T) {
	f := newFixture(t)
	clinic := f.profile(t, "clinic@example.com", models.RoleClinic)

	w := f.do(t, http.MethodPost, "/v1/ai/generate-questions", tokenFor(t, clinic), map[string]string{"position": "hygienist", "workplace_type": "private"})
	if w.Code != http.StatusOK {
		t.Fatalf("want 200 got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Questions []string `json:"questions"`
	}
	mustUnmarshal(t, w.Body.Bytes(), &resp)
	if len(resp.Questions) != 2 {
		t.Fatalf("unexpected questions: %v", resp.Questions)
	}

	if w := f.do(t, http.MethodPost, "/v1/ai/generate-questions", tokenFor(t, clinic), map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing position: want 400 got %d", w.Code)
	}
}

func TestAI_Errors(t *testing.T) {
	f := newFixture(t)
	staff := f.profile(t, "staff@example.com", models.RoleStaff)

	f.gen.err = fmt.Errorf("generate: %w", ollama.ErrCircuitOpen)
	if w := f.do(t, http.MethodPost, "/v1/ai/generate-bio", tokenFor(t, staff), map[string]string{"keywords": "x"}); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("circuit open: want 503 got %d", w.Code)
	}
	f.gen.err = fmt.Errorf("generate: connection refused")
	if w := f.do(t, http.MethodPost, "/v1/ai/generate-questions", tokenFor(t, staff), map[string]string{"position": "x"}); w.Code != http.StatusInternalServerError {
		t.Fatalf("llm failure: want 500 got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/v1/ai/generate-bio", "", map[string]string{"keywords": "x"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want 401 got %d", w.Code)
	}
}

func TestAI_RateLimited(t *testing.T) {
	f := newFixture(t)
	a := f.profile(t, "a@example.com", models.RoleStaff)
	b := f.profile(t, "b@example.com", models.RoleStaff)

	// burst is 3 in the fixture
	for i := range 3 {
		if w := f.do(t, http.MethodPost, "/v1/ai/generate-bio", tokenFor(t, a), map[string]string{"keywords": "x"}); w.Code != http.StatusOK {
			t.Fatalf("call %d: want 200 got %d", i, w.Code)
		}
	}
	w := f.do(t, http.MethodPost, "/v1/ai/generate-bio", tokenFor(t, a), map[string]string{"keywords": "x"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over burst: want 429 got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if w := f.do(t, http.MethodPost, "/v1/ai/generate-bio", tokenFor(t, b), map[string]string{"keywords": "x"}); w.Code != http.StatusOK {
		t.Fatalf("other profile: want 200 got %d", w.Code)
	}
	if f.gen.calls != 4 {
		t.Fatalf("limited call reached the generator: %d calls", f.gen.calls)
	}
}

func TestAI_NotConfigured(t *testing.T) {
	store := mock.New()
	cfg := &config.Config{JWTSecret: testSecret, TokenDuration: time.Hour}
	r := api.SetupRoutes(cfg, "test", "now", api.Deps{Repo: store.Repository(), Engine: matching.NewEngine(store)})
	f := &fixture{store: store, router: r}
	p := f.profile(t, "a@example.com", models.RoleStaff)

	if w := f.do(t, http.MethodPost, "/v1/ai/generate-bio", tokenFor(t, p), map[string]string{"keywords": "x"}); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 got %d", w.Code)
	}
}
