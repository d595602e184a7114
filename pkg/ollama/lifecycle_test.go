package ollama_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garnizeh/clinicmatch/internal/config"
	"github.com/garnizeh/clinicmatch/pkg/ollama"
	"go.uber.org/goleak"
)

// trackingTransport counts CloseIdleConnections calls and forwards them.
type trackingTransport struct {
	http.RoundTripper
	closed atomic.Int32
}

func (t *trackingTransport) CloseIdleConnections() {
	t.closed.Add(1)
	if tr, ok := t.RoundTripper.(interface{ CloseIdleConnections() }); ok {
		tr.CloseIdleConnections()
	}
}

func TestClient_CloseAfterConcurrentGenerate(t *testing.T) {
	baseline := goleak.IgnoreCurrent()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		writeSequence(w, []map[string]any{
			{"response": "Hi from ", "done": false},
			{"response": "Smile Dental", "done": true},
		}, time.Millisecond)
	}))

	tr := &trackingTransport{RoundTripper: &http.Transport{}}
	client, err := ollama.NewClient(config.OllamaConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}, &http.Client{Transport: tr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			res, err := client.Generate(context.Background(), "m", "screener intro")
			if err != nil {
				t.Errorf("Generate: %v", err)
				return
			}
			if res.Text != "Hi from Smile Dental" {
				t.Errorf("unexpected text %q", res.Text)
			}
		})
	}
	wg.Wait()

	if got := client.CircuitState(); got != "closed" {
		t.Fatalf("successful calls left the circuit %s", got)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := tr.closed.Load(); got != 1 {
		t.Fatalf("expected one CloseIdleConnections call, got %d", got)
	}

	srv.Close()
	goleak.VerifyNone(t, baseline)
}

func TestClient_CloseWithoutTransport(t *testing.T) {
	client, err := ollama.NewClient(config.OllamaConfig{BaseURL: "http://localhost:11434", Timeout: time.Second}, &http.Client{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var nilClient *ollama.Client
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}
