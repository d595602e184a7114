package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garnizeh/clinicmatch/api"
	"github.com/garnizeh/clinicmatch/internal/ai"
	"github.com/garnizeh/clinicmatch/internal/config"
	"github.com/garnizeh/clinicmatch/internal/matching"
	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/internal/schema"
	"github.com/garnizeh/clinicmatch/pkg/repository/mock"
)

const testSecret = "testsecret"

type fakeGen struct {
	bio       string
	questions []string
	err       error
	calls     int
}

func (g *fakeGen) GenerateBio(ctx context.Context, in ai.BioInput) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.bio + " (" + in.Role + ")", nil
}

func (g *fakeGen) GenerateQuestions(ctx context.Context, in ai.QuestionsInput) ([]string, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.questions, nil
}

type fixture struct {
	store  *mock.Store
	gen    *fakeGen
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api.SetLogger(slog.New(slog.DiscardHandler))

	store := mock.New()
	gen := &fakeGen{bio: "Caring and punctual", questions: []string{"Do you have a license?", "When can you start?"}}
	cfg := &config.Config{
		JWTSecret:     testSecret,
		TokenDuration: time.Hour,
		RateLimit:     config.RateLimit{AIPerMinute: 60, Burst: 3},
	}
	r := api.SetupRoutes(cfg, "test", "now", api.Deps{
		Repo:      store.Repository(),
		Engine:    matching.NewEngine(store),
		Generator: gen,
		Schemas:   schema.Default(),
	})
	return &fixture{store: store, gen: gen, router: r}
}

func (f *fixture) profile(t *testing.T, email string, role models.Role, mutate ...func(*models.Profile)) *models.Profile {
	t.Helper()
	p := &models.Profile{
		Email:          email,
		Role:           role,
		Name:           email,
		Location:       "Lisbon",
		Positions:      models.StringList{},
		WorkplaceTypes: models.StringList{},
	}
	for _, m := range mutate {
		m(p)
	}
	saved, err := f.store.UpsertProfile(context.Background(), p)
	if err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	return saved
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, p *models.Profile) string {
	t.Helper()
	tok, err := api.NewTokenIssuer(testSecret, time.Hour).Issue(p)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return v
}

func mustUnmarshal(t *testing.T, b []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("unmarshal %q: %v", string(b), err)
	}
}
