package risk

import (
	"fmt"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// Decide maps an assessment's level to the gate's action. Anything the
// matrix does not recognize blocks: malformed input fails closed.
func Decide(assessment contracts.RiskAssessment) contracts.PolicyDecision {
	switch assessment.Level {
	case contracts.RiskHigh:
		return contracts.PolicyDecision{
			Action: contracts.PolicyRequireApproval,
			Alert:  true,
			Reason: "High risk transaction requires human approval",
		}
	case contracts.RiskMedium:
		return contracts.PolicyDecision{
			Action: contracts.PolicyAllow,
			Alert:  true,
			Reason: "Medium risk allowed with alert",
		}
	case contracts.RiskLow:
		return contracts.PolicyDecision{
			Action: contracts.PolicyAllow,
			Alert:  false,
			Reason: "Low risk auto-approved",
		}
	case "":
		return contracts.PolicyDecision{
			Action: contracts.PolicyBlock,
			Alert:  true,
			Reason: "Missing or invalid risk level",
		}
	default:
		return contracts.PolicyDecision{
			Action: contracts.PolicyBlock,
			Alert:  true,
			Reason: fmt.Sprintf("Unhandled risk level: %s", assessment.Level),
		}
	}
}
