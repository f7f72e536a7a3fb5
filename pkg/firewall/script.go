package firewall

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// dangerousScriptPatterns are matched against the combined URL + target
// text: destructive deletion, pipe-to-shell installers, privilege
// escalation, executable-bit changes, and system binary directories.
var dangerousScriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-rf\b`),
	regexp.MustCompile(`(?i)curl\s+.*\|\s*bash`),
	regexp.MustCompile(`(?i)wget\s+.*\|\s*sh`),
	regexp.MustCompile(`(?i)\bsudo\b`),
	regexp.MustCompile(`(?i)\bchmod\s+\+x\b`),
	regexp.MustCompile(`(?i)/etc/|/bin/|/usr/`),
}

// ScriptClassifier grades download-and-execute intents. The classification
// is heuristic, not exhaustive; the allow reason says so.
type ScriptClassifier struct {
	root string
}

// NewScriptClassifier bounds script targets to sandboxRoot.
func NewScriptClassifier(sandboxRoot string) *ScriptClassifier {
	abs, err := filepath.Abs(sandboxRoot)
	if err != nil {
		abs = sandboxRoot
	}
	return &ScriptClassifier{root: abs}
}

// Classify grades a script intent.
func (c *ScriptClassifier) Classify(intent *contracts.Intent) Verdict {
	target := intent.Params.Target
	if strings.TrimSpace(target) == "" {
		return deny(contracts.SeverityHigh, "missing or invalid script target")
	}

	if !insideSandbox(c.root, target) {
		return deny(contracts.SeverityCritical, "script target outside sandbox workspace")
	}

	haystack := whitespaceRun.ReplaceAllString(strings.TrimSpace(intent.Params.URL+" "+target), " ")
	for _, p := range dangerousScriptPatterns {
		if p.MatchString(haystack) {
			return deny(contracts.SeverityCritical, "dangerous script execution pattern detected")
		}
	}

	return allow(contracts.SeverityLow, "script classified as safe by static analysis")
}

// insideSandbox resolves target against root and rejects anything that
// escapes it, including the root itself.
func insideSandbox(root, target string) bool {
	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return false
	}
	if rel == "" || rel == "." {
		return false
	}
	return !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}
