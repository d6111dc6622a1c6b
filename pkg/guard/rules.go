package guard

import "regexp"

// Rule is one named pattern. Rule lists are plain data so new patterns are
// additive and each rule can be exercised on its own in tests.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

func matchFirst(rules []Rule, text string) (Rule, bool) {
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			return r, true
		}
	}
	return Rule{}, false
}

// Family A: prompt manipulation. Instructions to drop prior rules, role
// reassignment, attempts to read the system prompt, known jailbreak phrases.
var promptManipulationRules = []Rule{
	{"ignore-instructions", regexp.MustCompile(`(?i)\bignore\s+(all\s+)?(previous|prior|above|your)\s+(instructions|rules|prompts?)`)},
	{"forget-instructions", regexp.MustCompile(`(?i)\bforget\s+(everything|all|your)\s+(you|instructions|rules|training)`)},
	{"disregard-instructions", regexp.MustCompile(`(?i)\bdisregard\s+(all\s+)?(previous|prior|your)\s+(instructions|rules)`)},
	{"role-reassignment", regexp.MustCompile(`(?i)\byou\s+are\s+(now|no\s+longer)\b`)},
	{"act-as", regexp.MustCompile(`(?i)\b(act|behave)\s+as\s+(if\s+you\s+are\s+)?(a|an|the)\b`)},
	{"pretend", regexp.MustCompile(`(?i)\bpretend\s+(to\s+be|you\s+are)\b`)},
	{"reveal-prompt", regexp.MustCompile(`(?i)\b(reveal|show|print|repeat|output)\b.{0,40}\b(system\s+prompt|instructions|initial\s+prompt)`)},
	{"system-prompt-probe", regexp.MustCompile(`(?i)\bwhat\s+(is|are)\s+your\s+(system\s+prompt|instructions)\b`)},
	{"jailbreak-keyword", regexp.MustCompile(`(?i)\b(jailbreak|dan\s+mode|developer\s+mode|do\s+anything\s+now)\b`)},
	{"new-instructions", regexp.MustCompile(`(?i)\b(new|updated)\s+instructions\s*:`)},
}

// Family B: administrative and code injection. Destructive data operations,
// code-execution syntax, direct requests to alter the catalog.
var adminInjectionRules = []Rule{
	{"sql-destructive", regexp.MustCompile(`(?i)\b(drop\s+table|delete\s+from|truncate\s+table|insert\s+into|update\s+\w+\s+set)\b`)},
	{"code-execution", regexp.MustCompile(`(?i)(<script\b|\beval\s*\(|\bexec\s*\(|os\.system|subprocess|rm\s+-rf)`)},
	{"template-injection", regexp.MustCompile(`\{\{.+\}\}|\$\{.+\}`)},
	{"alter-price", regexp.MustCompile(`(?i)\b(change|set|update|lower|reduce)\b.{0,30}\bprice\b`)},
	{"alter-inventory", regexp.MustCompile(`(?i)\b(change|set|update|delete|remove)\b.{0,30}\b(inventory|stock|listing)\b`)},
	{"grant-discount", regexp.MustCompile(`(?i)\b(give|apply|grant)\s+(me\s+)?(a\s+)?\d{1,3}\s*%\s*discount\b`)},
}

// Output leakage and overreach. System-prompt fragments, internal token names,
// and wording where the assistant claims an administrative action it cannot
// perform.
var leakageRules = []Rule{
	{"system-prompt-echo", regexp.MustCompile(`(?i)\b(my\s+system\s+prompt|my\s+instructions\s+(are|say)|i\s+was\s+instructed\s+to)\b`)},
	{"config-token", regexp.MustCompile(`(?i)\b(OPERATOR_BOT_TOKEN|OPERATOR_WEBHOOK_SECRET|GOOGLE_GEMINI_API_KEY|DB_CONNECTION_STRING|API[_\s]?KEY)\b`)},
	{"rules-section-echo", regexp.MustCompile(`(?i)^\s*RULES\s*:`)},
	{"claimed-price-change", regexp.MustCompile(`(?i)\bi(\s+have|'ve)?\s+(changed|updated|lowered|set|adjusted)\b.{0,30}\bprice\b`)},
	{"claimed-discount", regexp.MustCompile(`(?i)\bi(\s+have|'ve)?\s+(applied|added|granted)\b.{0,30}\bdiscount\b`)},
	{"claimed-listing-change", regexp.MustCompile(`(?i)\bi(\s+have|'ve)?\s+(deleted|removed|edited|updated)\b.{0,30}\b(listing|order|inventory)\b`)},
}
