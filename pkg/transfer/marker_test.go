package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantKind    Kind
		wantCleaned string
	}{
		{
			name:        "plain reply",
			raw:         "The turbocharger fits all 2.0L variants.",
			wantKind:    None,
			wantCleaned: "The turbocharger fits all 2.0L variants.",
		},
		{
			name:        "explicit marker at end",
			raw:         "Let me get someone who can help. [TRANSFER]",
			wantKind:    Explicit,
			wantCleaned: "Let me get someone who can help.",
		},
		{
			name:        "explicit marker mid text",
			raw:         "One moment [TRANSFER] please.",
			wantKind:    Explicit,
			wantCleaned: "One moment please.",
		},
		{
			name:        "silent marker",
			raw:         "I'll check our warehouse and get back to you shortly. [SILENT_TRANSFER]",
			wantKind:    Silent,
			wantCleaned: "I'll check our warehouse and get back to you shortly.",
		},
		{
			name:        "silent wins over explicit, both stripped",
			raw:         "[SILENT_TRANSFER] Sure thing. [TRANSFER]",
			wantKind:    Silent,
			wantCleaned: "Sure thing.",
		},
		{
			name:        "marker only",
			raw:         "[TRANSFER]",
			wantKind:    Explicit,
			wantCleaned: "",
		},
		{
			name:        "repeated marker",
			raw:         "[TRANSFER] Connecting. [TRANSFER]",
			wantKind:    Explicit,
			wantCleaned: "Connecting.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantCleaned, got.CleanedText)
		})
	}
}

func TestParseNeverLeaksMarkerText(t *testing.T) {
	raws := []string{
		"Let me check. [TRANSFER]",
		"Let me check. [SILENT_TRANSFER]",
		"[SILENT_TRANSFER] Let me check. [TRANSFER]",
		"[TRANSFER][SILENT_TRANSFER]",
		"[TRANSFER] mixed [SILENT_TRANSFER] order [TRANSFER]",
	}

	for _, raw := range raws {
		got := Parse(raw)
		assert.NotContains(t, got.CleanedText, "[TRANSFER]", "input: %q", raw)
		assert.NotContains(t, got.CleanedText, "[SILENT_TRANSFER]", "input: %q", raw)
	}
}
