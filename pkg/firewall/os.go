package firewall

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// destructivePatterns match commands that can damage the host outright:
// force-recursive deletion, privilege escalation, world-writable permission
// changes, raw device writes, command chaining, background detaching, and
// filesystem formatting.
var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-rf\b`),
	regexp.MustCompile(`(?i)\bsudo\b`),
	regexp.MustCompile(`(?i)\bchmod\s+777\b`),
	regexp.MustCompile(`(?i)\bdd\s+if=`),
	regexp.MustCompile(`(?i)>\s*/dev/sd`),
	regexp.MustCompile(`\|\|`),
	regexp.MustCompile(`&&`),
	regexp.MustCompile(`\|\s+\w`),
	regexp.MustCompile(`(?i)\bnohup\b`),
	regexp.MustCompile(`(?i)\bmkfs\b`),
}

var scriptExtensions = []string{".sh", ".bat", ".ps1"}

// readOnlyCommands is the short allow-list of utilities that only list,
// read, print, or filter.
var readOnlyCommands = map[string]bool{
	"ls":   true,
	"cat":  true,
	"pwd":  true,
	"echo": true,
	"grep": true,
	"head": true,
	"tail": true,
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// OSClassifier grades OS-domain intents: direct command execution and
// script download-and-execute.
type OSClassifier struct {
	script *ScriptClassifier
}

// NewOSClassifier builds the OS classifier; script targets are bounded by
// sandboxRoot.
func NewOSClassifier(sandboxRoot string) *OSClassifier {
	return &OSClassifier{script: NewScriptClassifier(sandboxRoot)}
}

// Classify grades an OS intent by action.
func (c *OSClassifier) Classify(intent *contracts.Intent) Verdict {
	switch intent.Action {
	case contracts.ActionExecuteCommand:
		return c.classifyCommand(intent.Params.Command)
	case contracts.ActionDownloadAndExecute:
		return c.script.Classify(intent)
	default:
		return deny(contracts.SeverityMedium, fmt.Sprintf("unsupported OS action: %s", intent.Action))
	}
}

func (c *OSClassifier) classifyCommand(command string) Verdict {
	if strings.TrimSpace(command) == "" {
		return deny(contracts.SeverityHigh, "empty or invalid OS command")
	}

	normalized := whitespaceRun.ReplaceAllString(strings.TrimSpace(command), " ")

	for _, p := range destructivePatterns {
		if p.MatchString(normalized) {
			return deny(contracts.SeverityCritical, "destructive OS command blocked")
		}
	}

	lower := strings.ToLower(normalized)
	for _, ext := range scriptExtensions {
		if strings.Contains(lower, ext) {
			return deny(contracts.SeverityHigh, fmt.Sprintf("script execution blocked (%s)", ext))
		}
	}

	base := baseCommand(normalized)
	if !readOnlyCommands[base] {
		return deny(contracts.SeverityMedium, fmt.Sprintf("command not allow-listed: %s", base))
	}

	return allow(contracts.SeverityLow, "")
}

// baseCommand strips any directory prefix and a leading "./" from the first
// token, lower-cased.
func baseCommand(cmd string) string {
	token, _, _ := strings.Cut(cmd, " ")
	if i := strings.LastIndex(token, "/"); i >= 0 {
		token = token[i+1:]
	}
	token = strings.TrimPrefix(token, "./")
	return strings.ToLower(token)
}
