package guard

// Input filtering runs before any AI or operator routing. A match does not
// produce an error: the message is still persisted for audit, the pipeline
// just answers with a fixed deflection and moves on. Nothing is escalated,
// nothing confirms detection to the sender.

const (
	FamilyPromptManipulation = "prompt_manipulation"
	FamilyAdminInjection     = "admin_injection"
)

type InputVerdict struct {
	Blocked bool
	Family  string
	Rule    string
}

func CheckInput(text string) InputVerdict {
	if r, ok := matchFirst(promptManipulationRules, text); ok {
		return InputVerdict{Blocked: true, Family: FamilyPromptManipulation, Rule: r.Name}
	}
	if r, ok := matchFirst(adminInjectionRules, text); ok {
		return InputVerdict{Blocked: true, Family: FamilyAdminInjection, Rule: r.Name}
	}
	return InputVerdict{}
}
