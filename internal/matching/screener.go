package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/garnizeh/clinicmatch/internal/metrics"
	"github.com/garnizeh/clinicmatch/internal/models"
)

// BuildScreenerMessage renders the greeting a clinic sends on a new match:
// a greeting line, an instruction line, a blank line and one bullet per
// question in the given order. Blank questions are skipped.
func BuildScreenerMessage(clinicName string, questions []string) string {
	var b strings.Builder
	name := strings.TrimSpace(clinicName)
	if name == "" {
		b.WriteString("Hi, great to match with you! 👋\n")
	} else {
		fmt.Fprintf(&b, "Hi from %s, great to match with you! 👋\n", name)
	}
	b.WriteString("To move forward, please answer a few short questions:\n\n")

	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		lines = append(lines, "• "+q)
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// screenerQuestions returns the non-blank questions of p.
func screenerQuestions(p *models.Profile) []string {
	out := make([]string, 0, len(p.ScreeningQuestions))
	for _, q := range p.ScreeningQuestions {
		if strings.TrimSpace(q) != "" {
			out = append(out, q)
		}
	}
	return out
}

// Screen sends the clinic's screening questions into the match when the
// clinic has the screener enabled and at least one question. It reports
// whether a message was written by this call.
func (e *Engine) Screen(ctx context.Context, m *models.Match) (bool, error) {
	var clinic *models.Profile
	for _, id := range []string{m.UserOneID, m.UserTwoID} {
		p, err := e.store.GetProfileByID(ctx, id)
		if err != nil {
			return false, fmt.Errorf("load match profile %s: %w", id, err)
		}
		if p != nil && p.Role == models.RoleClinic {
			clinic = p
			break
		}
	}
	if clinic == nil || !clinic.ScreenerEnabled {
		metrics.ScreenerMessages.WithLabelValues(metrics.ScreenerSkipped).Inc()
		return false, nil
	}
	questions := screenerQuestions(clinic)
	if len(questions) == 0 {
		metrics.ScreenerMessages.WithLabelValues(metrics.ScreenerSkipped).Inc()
		return false, nil
	}

	created, err := e.store.CreateMessage(ctx, &models.Message{
		MatchID:  m.ID,
		SenderID: clinic.ID,
		Content:  BuildScreenerMessage(clinic.Name, questions),
		Kind:     models.MessageKindScreener,
	})
	if err != nil {
		return false, fmt.Errorf("store screener message: %w", err)
	}
	if !created {
		metrics.ScreenerMessages.WithLabelValues(metrics.ScreenerDuplicate).Inc()
		return false, nil
	}

	metrics.ScreenerMessages.WithLabelValues(metrics.ScreenerSent).Inc()
	e.logger.Info("auto-screener sent", "match_id", m.ID, "clinic_id", clinic.ID, "questions", len(questions))
	return true, nil
}
