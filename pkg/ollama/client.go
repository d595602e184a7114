package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sony/gobreaker/v2"

	"github.com/garnizeh/clinicmatch/internal/config"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// Client wraps the Ollama API client and adds retries, timeout, and a circuit breaker.
type Client struct {
	api    *api.Client
	cfg    config.OllamaConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker[any]
	closed int32 // atomic flag for Close()
}

// GenerateResult is a typed representation of a model response.
type GenerateResult struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw"`
	Meta map[string]any  `json:"meta,omitempty"`
}

// ModelInfo is a lightweight model descriptor returned by ListModels.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// package-level logger for pkg/ollama; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/ollama. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// NewClient creates a new Ollama client wrapper.
func NewClient(cfg config.OllamaConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	threshold := cfg.CircuitFailureThreshold
	if threshold <= 0 {
		threshold = config.DefaultOllamaConfig().CircuitFailureThreshold
	}
	reset := cfg.CircuitReset
	if reset <= 0 {
		reset = config.DefaultOllamaConfig().CircuitReset
	}

	c := &Client{
		api:    api.NewClient(u, httpClient),
		cfg:    cfg,
		client: httpClient,
	}
	c.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "ollama",
		MaxRequests: 1,
		Timeout:     reset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		// a caller giving up says nothing about the server
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ollama: circuit state changed", slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})

	logger.Info("ollama: NewClient created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

func NewDefaultClient(cfg config.OllamaConfig) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient)
}

// Close releases idle connections on the underlying HTTP transport when
// supported. Close is idempotent and safe to call multiple times.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
			logger.Info("ollama: client Close() called - CloseIdleConnections invoked")
		}
	}
	return nil
}

// CircuitState reports the breaker state ("closed", "half-open" or "open").
func (c *Client) CircuitState() string {
	return c.cb.State().String()
}

// call runs fn through the circuit breaker, mapping its rejections to ErrCircuitOpen.
func (c *Client) call(fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// Health checks the Ollama instance by listing its models.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	models, err := c.ListModels(ctx)
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return err
		}
		return fmt.Errorf("health check failed: %w", err)
	}
	if len(models) == 0 {
		return fmt.Errorf("health check failed: no models returned")
	}
	return nil
}

// ListModels returns the models installed on the Ollama instance.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out []ModelInfo
	err := c.call(func() error {
		resp, err := c.api.List(ctx)
		if err != nil {
			return err
		}
		out = make([]ModelInfo, 0, len(resp.Models))
		for _, m := range resp.Models {
			out = append(out, ModelInfo{Name: m.Name, Size: m.Size})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Generate sends a prompt to the model and returns the concatenated streamed
// response. Failed attempts are retried with linear backoff until the retry
// budget is spent, the context ends or the circuit opens.
func (c *Client) Generate(ctx context.Context, model string, prompt string) (GenerateResult, error) {
	var (
		lastErr error
		empty   GenerateResult
	)
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		var (
			text  strings.Builder
			final api.GenerateResponse
		)
		start := time.Now()
		err := c.call(func() error {
			ctxReq, cancel := context.WithTimeout(ctx, c.timeout())
			defer cancel()
			text.Reset()
			req := &api.GenerateRequest{Model: model, Prompt: prompt}
			return c.api.Generate(ctxReq, req, func(r api.GenerateResponse) error {
				text.WriteString(r.Response)
				final = r
				return nil
			})
		})
		if err == nil {
			raw, _ := json.Marshal(final)
			meta := map[string]any{"model": model, "latency_ms": time.Since(start).Milliseconds(), "attempts": attempt + 1}
			return GenerateResult{Text: strings.TrimSpace(text.String()), Raw: raw, Meta: meta}, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			return empty, ErrCircuitOpen
		}

		lastErr = err
		logger.Warn("ollama: generate attempt failed", slog.Int("attempt", attempt+1), slog.String("model", model), slog.Any("err", err))
		if attempt == c.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return empty, fmt.Errorf("generate canceled: %w", ctx.Err())
		case <-time.After(c.cfg.Backoff * time.Duration(attempt+1)):
		}
	}

	return empty, fmt.Errorf("generate failed after retries: %w", lastErr)
}

func (c *Client) timeout() time.Duration {
	if c.cfg.Timeout > 0 {
		return c.cfg.Timeout
	}
	return config.DefaultOllamaConfig().Timeout
}
