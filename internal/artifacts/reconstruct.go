package artifacts

import (
	"regexp"
	"strings"
)

// Reconstruct recovers the content of a file the code sandbox wrote but never
// returned. codes and outputs are parallel: outputs[i] is what codes[i]
// printed, or "" if it printed nothing.
//
// The most recent snippet that mentions name and printed something wins. If
// every mentioning snippet printed nothing, the first non-empty output after
// the most recent mention is used, since the model often writes a file in one
// step and prints it in the next. This is a heuristic; a false return means
// the file stays unresolved.
func Reconstruct(name string, codes, outputs []string) (string, bool) {
	if name == "" {
		return "", false
	}
	escaped := regexp.QuoteMeta(name)
	mentions := func(code string) bool {
		return strings.Contains(code, name) || strings.Contains(code, escaped)
	}

	for i := len(codes) - 1; i >= 0; i-- {
		if mentions(codes[i]) && i < len(outputs) && outputs[i] != "" {
			return outputs[i], true
		}
	}

	for i := len(codes) - 1; i >= 0; i-- {
		if !mentions(codes[i]) {
			continue
		}
		for j := i; j < len(outputs); j++ {
			if outputs[j] != "" {
				return outputs[j], true
			}
		}
	}
	return "", false
}

var sandboxLinkPattern = regexp.MustCompile(`\(sandbox:/[^)]+/([^/)]+)\)`)

// SandboxMountPath is the directory every sandbox reference is normalized to.
const SandboxMountPath = "/mnt/data/"

// RewriteSandboxLinks calls resolve for every "(sandbox:/.../name)" reference
// in text, in order, and rewrites each one to "(sandbox:/mnt/data/name)".
// Text without references is returned unchanged.
func RewriteSandboxLinks(text string, resolve func(name string)) string {
	if !strings.Contains(text, "(sandbox:/") {
		return text
	}
	return sandboxLinkPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := sandboxLinkPattern.FindStringSubmatch(match)[1]
		if resolve != nil {
			resolve(name)
		}
		return "(sandbox:" + SandboxMountPath + name + ")"
	})
}
