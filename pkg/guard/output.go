package guard

import (
	"regexp"
	"strconv"
	"strings"
)

// Output validation is a pure function of (reply text, known price). It runs
// on every AI reply before the text is persisted or shown, except replies
// that are themselves escalation signals.

const (
	ReasonPriceIntegrity = "price_integrity"
	ReasonLeakage        = "leakage"
)

type OutputVerdict struct {
	Rejected bool
	Reason   string
	Rule     string
}

// Currency amounts in assistant prose: "$120", "120.50 USD", "€ 99,90".
var currencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[$€£]\s*(\d[\d,]*(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d{1,2})?)\s*(?:usd|eur|dollars?|euros?|bucks)\b`),
}

// ExtractAmounts pulls every currency amount mentioned in the text.
func ExtractAmounts(text string) []float64 {
	var amounts []float64
	for _, p := range currencyPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			raw := strings.ReplaceAll(m[1], ",", "")
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				amounts = append(amounts, v)
			}
		}
	}
	return amounts
}

// ValidateOutput rejects a reply that quotes a price below half of the known
// authoritative price (a hallucinated or manipulated discount) or that leaks
// internals / claims administrative authority. knownPrice may be nil when the
// session has no subject context; the price check is skipped then.
func ValidateOutput(reply string, knownPrice *float64) OutputVerdict {
	if knownPrice != nil && *knownPrice > 0 {
		for _, amount := range ExtractAmounts(reply) {
			if amount < *knownPrice/2 {
				return OutputVerdict{Rejected: true, Reason: ReasonPriceIntegrity, Rule: "below-half-price"}
			}
		}
	}

	if r, ok := matchFirst(leakageRules, reply); ok {
		return OutputVerdict{Rejected: true, Reason: ReasonLeakage, Rule: r.Name}
	}

	return OutputVerdict{}
}
