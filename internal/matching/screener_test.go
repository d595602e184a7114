package matching_test

import (
	"strings"
	"testing"

	"github.com/garnizeh/clinicmatch/internal/matching"
)

func TestBuildScreenerMessage(t *testing.T) {
	msg := matching.BuildScreenerMessage("Smile Clinic", []string{"Do you have a licence?", "  ", "Can you start Monday?"})

	lines := strings.Split(msg, "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), msg)
	}
	if !strings.Contains(lines[0], "Smile Clinic") {
		t.Fatalf("greeting should name the clinic: %q", lines[0])
	}
	if lines[2] != "" {
		t.Fatalf("expected blank separator line, got %q", lines[2])
	}
	if lines[3] != "• Do you have a licence?" || lines[4] != "• Can you start Monday?" {
		t.Fatalf("unexpected question lines: %q", lines[3:])
	}

	if again := matching.BuildScreenerMessage("Smile Clinic", []string{"Do you have a licence?", "  ", "Can you start Monday?"}); again != msg {
		t.Fatalf("expected deterministic output")
	}
}

func TestBuildScreenerMessage_NoName(t *testing.T) {
	msg := matching.BuildScreenerMessage("  ", []string{"Q"})
	if !strings.HasPrefix(msg, "Hi, great to match with you!") {
		t.Fatalf("unexpected greeting: %q", msg)
	}
	if !strings.HasSuffix(msg, "\n\n• Q") {
		t.Fatalf("unexpected body: %q", msg)
	}
}
