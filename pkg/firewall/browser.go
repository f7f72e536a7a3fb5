package firewall

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// blockedSchemes are local or browser-internal protocols an agent has no
// business reaching.
var blockedSchemes = map[string]bool{
	"file":   true,
	"chrome": true,
	"about":  true,
}

// blockedBrowserActions move data across the browser boundary.
var blockedBrowserActions = map[string]bool{
	"DOWNLOAD": true,
	"UPLOAD":   true,
}

// BrowserClassifier grades browser intents.
type BrowserClassifier struct{}

// Classify grades a browser intent.
func (c *BrowserClassifier) Classify(intent *contracts.Intent) Verdict {
	action := strings.TrimSpace(intent.Action)
	if action == "" {
		return deny(contracts.SeverityMedium, "missing or invalid browser action")
	}

	if blockedBrowserActions[action] {
		return deny(contracts.SeverityHigh, fmt.Sprintf("browser %s blocked", strings.ToLower(action)))
	}

	if raw := intent.Params.URL; raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" {
			return deny(contracts.SeverityMedium, "malformed URL")
		}
		if blockedSchemes[strings.ToLower(parsed.Scheme)] {
			return deny(contracts.SeverityCritical, "local browser access blocked")
		}
	}

	return allow(contracts.SeverityLow, "")
}
