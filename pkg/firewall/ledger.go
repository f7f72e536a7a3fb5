package firewall

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// ledgerParamsSchema validates the shape of a transfer's parameters: a
// positive integer amount in base units and a recipient account identifier.
// Full risk judgment is the risk engine's job, not the firewall's.
const ledgerParamsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["amount", "recipient"],
  "properties": {
    "amount": {"type": "integer", "minimum": 1},
    "recipient": {"type": "string", "pattern": "^0x[a-fA-F0-9]{64}$"}
  }
}`

// LedgerClassifier checks a transfer's parameter shape against a compiled
// JSON Schema.
type LedgerClassifier struct {
	schema *jsonschema.Schema
}

// NewLedgerClassifier compiles the parameter schema once.
func NewLedgerClassifier() (*LedgerClassifier, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://bulwark.schemas.local/firewall/ledger-params.schema.json"
	if err := c.AddResource(url, strings.NewReader(ledgerParamsSchema)); err != nil {
		return nil, fmt.Errorf("ledger schema load failed: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("ledger schema compile failed: %w", err)
	}
	return &LedgerClassifier{schema: compiled}, nil
}

// Classify grades a ledger intent's parameter shape.
func (c *LedgerClassifier) Classify(intent *contracts.Intent) Verdict {
	doc := map[string]any{
		"amount":    intent.Params.Amount,
		"recipient": intent.Params.Recipient,
	}

	// Round-trip through encoding/json so the schema sees plain JSON values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return deny(contracts.SeverityMedium, "malformed ledger intent parameters")
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return deny(contracts.SeverityMedium, "malformed ledger intent parameters")
	}

	if err := c.schema.Validate(decoded); err != nil {
		return deny(contracts.SeverityMedium, "malformed ledger intent parameters")
	}

	return allow(contracts.SeverityLow, "")
}
