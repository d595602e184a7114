// Package ai turns profile hints into LLM prompts and model output into
// profile text: bios for either role and screening questions for clinics.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/clinicmatch/internal/config"
	"github.com/garnizeh/clinicmatch/internal/metrics"
	"github.com/garnizeh/clinicmatch/pkg/ollama"
	"github.com/garnizeh/clinicmatch/pkg/repository"
)

var (
	// ErrNoTemplate means the prompt template is missing from ai_templates.
	ErrNoTemplate = errors.New("prompt template not found")
	// ErrEmptyOutput means the model answered with nothing usable.
	ErrEmptyOutput = errors.New("model returned no usable text")
)

// LLM is the part of the Ollama client the generator uses.
type LLM interface {
	Generate(ctx context.Context, model string, prompt string) (ollama.GenerateResult, error)
}

// Generator renders prompts stored in ai_templates and sends them to the model.
// Templates are read on every call so edits take effect without a restart.
type Generator struct {
	llm       LLM
	templates repository.TemplateRepo
	cfg       config.AIConfig
	logger    *slog.Logger
}

func NewGenerator(llm LLM, templates repository.TemplateRepo, cfg config.AIConfig, logger *slog.Logger) (*Generator, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("template repo is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.TemplateVersion == "" {
		cfg.TemplateVersion = "v1"
	}
	if cfg.BioTemplate == "" {
		cfg.BioTemplate = "bio"
	}
	if cfg.QuestionsTemplate == "" {
		cfg.QuestionsTemplate = "questions"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{llm: llm, templates: templates, cfg: cfg, logger: logger}, nil
}

// BioInput feeds the bio template.
type BioInput struct {
	Role     string
	Keywords string
}

// QuestionsInput feeds the questions template.
type QuestionsInput struct {
	Position      string
	WorkplaceType string
}

// GenerateBio writes a short first-person profile summary.
func (g *Generator) GenerateBio(ctx context.Context, in BioInput) (string, error) {
	out, err := g.run(ctx, "bio", g.cfg.BioTemplate, in)
	if err != nil {
		return "", err
	}
	return out, nil
}

// GenerateQuestions asks the model for screening questions and returns one
// entry per non-empty line with list markers removed.
func (g *Generator) GenerateQuestions(ctx context.Context, in QuestionsInput) ([]string, error) {
	out, err := g.run(ctx, "questions", g.cfg.QuestionsTemplate, in)
	if err != nil {
		return nil, err
	}
	qs := ParseQuestions(out)
	if len(qs) == 0 {
		metrics.AIRequests.WithLabelValues("questions", "empty").Inc()
		return nil, ErrEmptyOutput
	}
	return qs, nil
}

func (g *Generator) run(ctx context.Context, kind, name string, data any) (string, error) {
	tpl, err := g.templates.GetTemplate(ctx, name, g.cfg.TemplateVersion)
	if err != nil {
		metrics.AIRequests.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("load template: %w", err)
	}
	if tpl == nil || strings.TrimSpace(tpl.TemplateTxt) == "" {
		metrics.AIRequests.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("%w: %s:%s", ErrNoTemplate, name, g.cfg.TemplateVersion)
	}

	prompt, err := ollama.RenderTemplate(tpl.TemplateTxt, data)
	if err != nil {
		metrics.AIRequests.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("render template: %w", err)
	}

	ctxReq, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	res, err := g.llm.Generate(ctxReq, g.cfg.Model, prompt)
	if err != nil {
		metrics.AIRequests.WithLabelValues(kind, "error").Inc()
		g.logger.Warn("ai generate failed", "kind", kind, "model", g.cfg.Model, "err", err)
		return "", fmt.Errorf("generate: %w", err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		metrics.AIRequests.WithLabelValues(kind, "empty").Inc()
		return "", ErrEmptyOutput
	}

	metrics.AIRequests.WithLabelValues(kind, "ok").Inc()
	g.logger.Debug("ai generate ok", "kind", kind, "model", g.cfg.Model, "meta", res.Meta)
	return text, nil
}

// ParseQuestions splits model output into questions: one per non-blank line,
// with leading "1.", "2)", "-", "*" or "•" markers stripped.
func ParseQuestions(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = stripListMarker(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func stripListMarker(line string) string {
	for _, p := range []string{"- ", "* ", "• "} {
		if rest, ok := strings.CutPrefix(line, p); ok {
			return strings.TrimSpace(rest)
		}
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
