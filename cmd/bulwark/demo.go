package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
	"github.com/bulwarklabs/bulwark/pkg/risk"
)

const demoRecipient = "0xf3c2acfa854a5d6a76db76042d30d18ca78ba4487c9dbf7439b9e1c45a24a8fd"

var baseUnitsPerCoin = decimal.NewFromInt(1_000_000_000)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Interactive shell driving canned agent scenarios through the gate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		rt.startTelegram(ctx)

		return runShell(ctx, rt)
	},
}

func runShell(ctx context.Context, rt *runtime) error {
	fmt.Println(`
/**********************************************/
|  BULWARK SHELL                               |
|  Agent action governance gate                |
/**********************************************/`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		printMenu()
		fmt.Print("bulwark> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			runScenario(ctx, rt, "Normal Transaction", transferIntent(50_000_000), knownRecipient())
		case "2":
			runScenario(ctx, rt, "Medium Risk Transaction", transferIntent(150_000_000), knownRecipient())
		case "3":
			runScenario(ctx, rt, "High Risk Transaction (Approval Required)", transferIntent(500_000_000), knownRecipient())
		case "4":
			runScenario(ctx, rt, "Simulate OS Attack", osIntent("rm -rf ~/Documents"), risk.Context{})
		case "5":
			runScenario(ctx, rt, "Suspicious OS Command", osIntent("ls ~/.ssh"), risk.Context{})
		case "6":
			showStatus(ctx, rt)
		case "7":
			if err := rt.gate.ResetState(ctx, "DEMO_RESET"); err != nil {
				fmt.Println("reset failed:", err)
			} else {
				fmt.Println("State reset.")
			}
		case "0", "exit", "quit":
			return nil
		default:
			fmt.Println("Unknown selection.")
		}
	}
}

func printMenu() {
	fmt.Println(`
1  -> Normal Transaction
2  -> Medium Risk Transaction
3  -> High Risk Transaction (Approval Required)
4  -> Simulate OS Attack
5  -> Suspicious OS Command
6  -> Show Status
7  -> Reset State
0  -> Exit`)
}

func runScenario(ctx context.Context, rt *runtime, label string, intent *contracts.Intent, riskCtx risk.Context) {
	result := rt.gate.ProcessIntent(ctx, intent, riskCtx)
	printResult(label, intent, result)
}

func printResult(label string, intent *contracts.Intent, r contracts.Result) {
	fmt.Println("\n------------------------------------")
	fmt.Println(label)
	fmt.Println("Decision:", r.Outcome)
	layer := string(r.Layer)
	if layer == "" {
		layer = string(contracts.LayerExecution)
	}
	fmt.Println("Layer   :", layer)
	fmt.Println("OK      :", r.OK)
	if r.Reason != "" {
		fmt.Println("Reason  :", r.Reason)
	}
	if r.Risk != nil {
		fmt.Println("Risk    :", r.Risk.Level, "| Score:", r.Risk.Score)
	}
	if intent.Domain == contracts.DomainLedger && intent.Params.Amount > 0 {
		fmt.Println("Amount  :", formatCoins(intent.Params.Amount), "coins")
	}
	if r.Digest != "" {
		fmt.Println("Digest  :", r.Digest)
	}
	if r.AuditRef != "" {
		fmt.Println("Audit   :", r.AuditRef)
	}
	fmt.Println("------------------------------------")
}

func showStatus(ctx context.Context, rt *runtime) {
	state, err := rt.killSwch.Status(ctx)
	if err != nil {
		fmt.Println("status failed:", err)
		return
	}
	snap := rt.gate.State().Snapshot()
	mode := "ACTIVE"
	if state.Frozen {
		mode = "FROZEN"
	}
	fmt.Println("\nKill Switch       :", mode)
	if state.Reason != "" {
		fmt.Println("Reason            :", state.Reason)
	}
	fmt.Println("OS Violations     :", snap.RecentOSViolations)
	fmt.Println("High Risk Tx      :", snap.RecentHighRiskTx)
	fmt.Println("Pending Approvals :", rt.broker.PendingCount())
}

// formatCoins renders base units as whole coins for humans.
func formatCoins(amount int64) string {
	return decimal.NewFromInt(amount).Div(baseUnitsPerCoin).String()
}

func transferIntent(amount int64) *contracts.Intent {
	return contracts.NewIntent(
		contracts.DomainLedger,
		contracts.ActionTransfer,
		contracts.IntentParams{Amount: amount, Recipient: demoRecipient},
		contracts.IntentMetadata{
			Origin:  "USER_CHAT",
			Purpose: "Pay friend",
			Exec: &contracts.ExecCredentials{
				Signer:        demoSigner(),
				CapabilityRef: demoCapabilityRef(),
				Constraint:    contracts.NewConstraint(300_000_000, demoRecipient, 5*time.Minute),
			},
		},
	)
}

func osIntent(command string) *contracts.Intent {
	return contracts.NewIntent(
		contracts.DomainOS,
		contracts.ActionExecuteCommand,
		contracts.IntentParams{Command: command},
		contracts.IntentMetadata{Origin: "AGENT_AUTONOMY", Purpose: "Inspect environment"},
	)
}

func knownRecipient() risk.Context {
	known := true
	return risk.Context{RecipientKnown: &known}
}

func demoSigner() string {
	if v := os.Getenv("SIGNER"); v != "" {
		return v
	}
	return "demo-signer"
}

func demoCapabilityRef() string {
	if v := os.Getenv("CAPABILITY_REF"); v != "" {
		return v
	}
	return "demo-capability"
}
