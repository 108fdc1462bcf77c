package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/speedrun-hq/speedrun-go/pkg/config"
	"github.com/speedrun-hq/speedrun-go/pkg/gateway"
	"github.com/speedrun-hq/speedrun-go/pkg/logger"
	"github.com/speedrun-hq/speedrun-go/pkg/node"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted intent lifecycle",
	Long: `Demo drives one intent through the full lifecycle on a built-in
two-spoke topology: a sender locks funds on the source chain, a fulfiller
fronts the transfer on the destination chain ahead of settlement, and the
settlement routed through the hub reimburses the fulfiller.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

// demoTopology is a hub and two spokes with one token on both spokes
func demoTopology() *config.Topology {
	return &config.Topology{
		HubChain: 7000,
		Router:   "0x0000000000000000000000000000000000007000",
		Admin:    "0x00000000000000000000000000000000000000aa",
		Chains: []config.ChainTopology{
			{ID: 7000, Name: "ZETA", IntentContract: "0x0000000000000000000000000000000000007000"},
			{ID: 8453, Name: "BASE", IntentContract: "0x0000000000000000000000000000000000008453"},
			{ID: 42161, Name: "ARB", IntentContract: "0x0000000000000000000000000000000000042161"},
		},
		Tokens: []config.TokenTopology{
			{
				ID: "USDC",
				Associations: []config.AssociationEntry{
					{Chain: 8453, Address: "0x00000000000000000000000000000000000000c1"},
					{Chain: 42161, Address: "0x00000000000000000000000000000000000000c2"},
				},
			},
		},
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := logger.NewStdLogger(true, logger.InfoLevel)

	sim, err := node.NewSimulation(node.SimulationParams{
		Topology: demoTopology(),
		// Manual delivery keeps the transport stepped, so the fulfillment
		// can land before the settlement the way it does in production
		Mode:   gateway.DeliverManual,
		Logger: log,
	})
	if err != nil {
		return err
	}

	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol := common.HexToAddress("0x00000000000000000000000000000000000000c3")
	baseUSDC := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	arbUSDC := common.HexToAddress("0x00000000000000000000000000000000000000c2")

	base := sim.Node(8453)
	arb := sim.Node(42161)
	if err := base.Ledger().Mint(baseUSDC, alice, big.NewInt(1000)); err != nil {
		return err
	}
	if err := arb.Ledger().Mint(arbUSDC, bob, big.NewInt(500)); err != nil {
		return err
	}

	printBalances := func(stage string) {
		color.Cyan("\n%s", stage)
		fmt.Printf("  alice on BASE: %s USDC\n", base.Ledger().BalanceOf(baseUSDC, alice))
		fmt.Printf("  bob on ARB:    %s USDC\n", arb.Ledger().BalanceOf(arbUSDC, bob))
		fmt.Printf("  carol on ARB:  %s USDC\n", arb.Ledger().BalanceOf(arbUSDC, carol))
	}
	printBalances("Initial balances")

	amount := big.NewInt(100)
	tip := big.NewInt(5)
	id, err := base.Contract().Initiate(ctx, alice, baseUSDC, amount, 42161, carol.Bytes(), tip, big.NewInt(1))
	if err != nil {
		return err
	}
	color.Yellow("\nIntent %s initiated: 100 USDC from BASE to ARB, tip 5", id.Hex())
	printBalances("After initiation (amount + tip in custody)")

	// Bob fronts the transfer from his own liquidity before the hub has
	// even seen the intent
	if err := arb.Contract().Fulfill(ctx, bob, id, arbUSDC, amount, carol); err != nil {
		return err
	}
	color.Yellow("\nBob fulfilled the intent ahead of settlement")
	printBalances("After fulfillment (carol paid, bob out of pocket)")

	// Release the parked messages: the intent reaches the hub, the router
	// emits the settlement, and the settlement reimburses bob
	if err := sim.Gateway().Drain(ctx); err != nil {
		return err
	}
	status, err := arb.Contract().StatusOf(ctx, id)
	if err != nil {
		return err
	}
	color.Yellow("\nSettlement delivered, intent status: %s", status)
	printBalances("After settlement (bob reimbursed amount + tip)")
	fmt.Println()
	return nil
}
