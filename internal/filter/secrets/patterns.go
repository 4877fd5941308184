package secrets

import "regexp"

// Pattern is a named expression for one kind of credential.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
}

// Provider keys come first so a turn that pastes the gateway's own upstream
// credentials is reported under the most specific name.
var builtin = []struct{ name, expr string }{
	{"AWS Access Key", `AKIA[0-9A-Z]{16}`},
	{"OpenAI API Key", `sk-(?:proj-|svcacct-|admin-)?[A-Za-z0-9_-]{32,}`},
	{"Google API Key", `AIza[0-9A-Za-z_-]{35}`},
	{"GCP Service Account Key", `"private_key":\s*"-----BEGIN`},
	{"Gateway API Key", `chatgw-[a-z]+-[a-z0-9]{32}\b`},
	{"GitHub Token", `gh[pousr]_[A-Za-z0-9_]{36,}`},
	{"Slack Token", `xox[abprs]-[A-Za-z0-9-]{10,}`},
	{"Stripe Secret Key", `sk_live_[A-Za-z0-9]{24,}`},
	{"Private Key", `-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`},
	{"Connection String", `(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|rediss?|amqps?)://[^\s:@/]+:[^\s@/]+@[^\s]+`},
	{"JWT Token", `eyJ[A-Za-z0-9\-_]+\.eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`},
}

var defaultPatterns = compile(builtin)

func compile(defs []struct{ name, expr string }) []Pattern {
	out := make([]Pattern, len(defs))
	for i, d := range defs {
		out[i] = Pattern{Name: d.name, Regex: regexp.MustCompile(d.expr)}
	}
	return out
}

// DefaultPatterns returns the built-in credential patterns. The slice is a
// copy and may be extended by the caller.
func DefaultPatterns() []Pattern {
	return append([]Pattern(nil), defaultPatterns...)
}
