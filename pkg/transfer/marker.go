package transfer

import (
	"regexp"
	"strings"
)

// The model signals a hand-off by embedding a marker in its free-text reply.
// Parse decodes the raw reply into a tagged variant exactly once; everything
// downstream branches on the Kind instead of re-scanning raw text.

type Kind int

const (
	// None: plain reply, no hand-off.
	None Kind = iota
	// Explicit: the visitor is told a manager is taking over; the raw model
	// phrasing around the marker is discarded in favor of a fixed line.
	Explicit
	// Silent: status flips to escalated but the model's natural phrasing is
	// kept, with only the marker removed. The visitor sees no hand-off notice.
	Silent
)

const (
	explicitMarker = "[TRANSFER]"
	silentMarker   = "[SILENT_TRANSFER]"
)

var spaceSquash = regexp.MustCompile(`[ \t]{2,}`)

type Result struct {
	Kind        Kind
	CleanedText string
}

func Parse(raw string) Result {
	kind := None
	if strings.Contains(raw, silentMarker) {
		kind = Silent
	} else if strings.Contains(raw, explicitMarker) {
		kind = Explicit
	}

	// Both marker strings are removed regardless of which kind won: no marker
	// text may ever reach the visitor.
	cleaned := strings.ReplaceAll(raw, silentMarker, "")
	cleaned = strings.ReplaceAll(cleaned, explicitMarker, "")
	cleaned = strings.TrimSpace(spaceSquash.ReplaceAllString(cleaned, " "))

	return Result{Kind: kind, CleanedText: cleaned}
}
