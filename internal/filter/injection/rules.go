package injection

import "regexp"

// Category groups rules by the technique they look for.
type Category string

const (
	InstructionBypass Category = "instruction_bypass"
	RoleOverride      Category = "role_override"
	EncodingTrick     Category = "encoding_trick"
	OutputSteering    Category = "output_steering"
	PromptLeak        Category = "prompt_leak"
)

// Rule is one weighted injection heuristic. Severity is in [0, 1].
type Rule struct {
	Name     string
	Regex    *regexp.Regexp
	Severity float64
	Category Category
}

func rule(name string, severity float64, cat Category, expr string) Rule {
	return Rule{Name: name, Regex: regexp.MustCompile(expr), Severity: severity, Category: cat}
}

// DefaultRules returns the built-in heuristics, strongest first.
func DefaultRules() []Rule {
	return []Rule{
		rule("ignore_previous", 0.95, InstructionBypass, `(?i)ignore\s+(?:all\s+)?(?:previous|prior|above)\s+instructions`),
		rule("disregard_prior", 0.95, InstructionBypass, `(?i)disregard\s+(?:all\s+)?(?:prior|previous)\s+(?:instructions|context|rules)`),
		// DAN is only meaningful in capitals; lower case hits names like Daniel.
		rule("jailbreak", 0.9, RoleOverride, `\bDAN\b|(?i:do\s+anything\s+now|jailbreak|unrestricted\s+mode)`),
		rule("code_block_system", 0.9, RoleOverride, "(?i)```system"),
		rule("system_prefix", 0.85, RoleOverride, `(?im)^\s*system\s*:\s*`),
		rule("developer_mode", 0.85, RoleOverride, `(?i)(?:developer|debug|admin|root)\s+mode\s+(?:enabled|activated|on)\b`),
		rule("base64_instruction", 0.85, EncodingTrick, `(?i)(?:decode|execute|follow)\s+(?:the\s+)?base64`),
		rule("reveal_prompt", 0.8, PromptLeak, `(?i)(?:reveal|print|repeat|show)\s+(?:me\s+)?(?:your|the)\s+(?:system\s+prompt|hidden\s+instructions|initial\s+instructions)`),
		rule("new_instructions", 0.8, InstructionBypass, `(?i)(?:new|updated|revised)\s+instructions?\s*:`),
		rule("response_prefix", 0.75, OutputSteering, `(?i)respond\s+with\s*:\s*(?:sure|absolutely|of course)`),
		rule("you_are_now", 0.7, RoleOverride, `(?i)you\s+are\s+now\s+(?:a|an|the)\s+`),
	}
}
