package firewall

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// Filesystem action names.
const (
	FSActionRead   = "READ"
	FSActionList   = "LIST"
	FSActionWrite  = "WRITE"
	FSActionDelete = "DELETE"
)

// FSClassifier grades filesystem intents against the sandbox root. Writes
// inside the sandbox are allowed but graded MEDIUM so the gate's alerting
// still sees them.
type FSClassifier struct {
	root string
}

// NewFSClassifier bounds filesystem access to sandboxRoot.
func NewFSClassifier(sandboxRoot string) *FSClassifier {
	abs, err := filepath.Abs(sandboxRoot)
	if err != nil {
		abs = sandboxRoot
	}
	return &FSClassifier{root: abs}
}

// Classify grades a filesystem intent.
func (c *FSClassifier) Classify(intent *contracts.Intent) Verdict {
	if strings.TrimSpace(intent.Params.TargetPath) == "" {
		return deny(contracts.SeverityHigh, "missing or invalid file path")
	}
	if strings.TrimSpace(intent.Action) == "" {
		return deny(contracts.SeverityMedium, "missing or invalid filesystem action")
	}

	if !insideSandbox(c.root, intent.Params.TargetPath) {
		return deny(contracts.SeverityCritical, "access outside sandbox denied")
	}

	switch intent.Action {
	case FSActionWrite, FSActionDelete:
		return allow(contracts.SeverityMedium, "write operation inside sandbox")
	case FSActionRead, FSActionList:
		return allow(contracts.SeverityLow, "")
	default:
		return deny(contracts.SeverityMedium, fmt.Sprintf("unsupported filesystem action: %s", intent.Action))
	}
}
