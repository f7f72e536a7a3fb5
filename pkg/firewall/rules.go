package firewall

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// RuleSet holds operator-defined deny rules as CEL expressions over an
// intent's attributes. A rule that evaluates to true denies the intent HIGH
// with the rule source as reason. Compiled once at construction.
type RuleSet struct {
	programs []compiledRule
}

type compiledRule struct {
	source  string
	program cel.Program
}

// NewRuleSet compiles the given CEL expressions. Each expression sees the
// variables domain, action, command, url, amount, and recipient.
func NewRuleSet(exprs []string) (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("domain", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("command", cel.StringType),
		cel.Variable("url", cel.StringType),
		cel.Variable("amount", cel.IntType),
		cel.Variable("recipient", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}

	rs := &RuleSet{}
	for _, src := range exprs {
		ast, iss := env.Compile(src)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("rule %q: %w", src, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", src, err)
		}
		rs.programs = append(rs.programs, compiledRule{source: src, program: prg})
	}
	return rs, nil
}

// Evaluate runs every rule against the intent. Evaluation errors count as a
// match: a rule that cannot be evaluated denies.
func (rs *RuleSet) Evaluate(intent *contracts.Intent) (Verdict, bool) {
	input := map[string]any{
		"domain":    string(intent.Domain),
		"action":    intent.Action,
		"command":   intent.Params.Command,
		"url":       intent.Params.URL,
		"amount":    intent.Params.Amount,
		"recipient": intent.Params.Recipient,
	}

	for _, r := range rs.programs {
		out, _, err := r.program.Eval(input)
		if err != nil {
			return deny(contracts.SeverityHigh, fmt.Sprintf("deny rule failed to evaluate: %s", r.source)), true
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return deny(contracts.SeverityHigh, fmt.Sprintf("denied by rule: %s", r.source)), true
		}
	}
	return Verdict{}, false
}
