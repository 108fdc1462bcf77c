package node

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/speedrun-go/pkg/config"
	"github.com/speedrun-hq/speedrun-go/pkg/gateway"
	"github.com/speedrun-hq/speedrun-go/pkg/intent"
	"github.com/speedrun-hq/speedrun-go/pkg/models"
	"github.com/speedrun-hq/speedrun-go/pkg/roles"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	baseUSDC = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	arbUSDC  = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

func testTopology() *config.Topology {
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

func newTestSimulation(t *testing.T, mode gateway.DeliveryMode) *Simulation {
	t.Helper()
	sim, err := NewSimulation(SimulationParams{
		Topology: testTopology(),
		Mode:     mode,
	})
	require.NoError(t, err)
	require.NoError(t, sim.Node(8453).Ledger().Mint(baseUSDC, alice, big.NewInt(1000)))
	require.NoError(t, sim.Node(42161).Ledger().Mint(arbUSDC, bob, big.NewInt(500)))
	return sim
}

func initiateTransfer(t *testing.T, sim *Simulation) common.Hash {
	t.Helper()
	id, err := sim.Node(8453).Contract().Initiate(
		context.Background(), alice, baseUSDC, big.NewInt(100), 42161, carol.Bytes(), big.NewInt(5), big.NewInt(1),
	)
	require.NoError(t, err)
	return id
}

func TestTransferSettlesWithoutFulfillment(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulation(t, gateway.DeliverManual)

	id := initiateTransfer(t, sim)
	assert.Equal(t, int64(895), sim.Node(8453).Ledger().BalanceOf(baseUSDC, alice).Int64())

	require.NoError(t, sim.Gateway().Drain(ctx))

	// No fulfiller stepped in: the settlement pays carol amount + tip directly
	assert.Equal(t, int64(105), sim.Node(42161).Ledger().BalanceOf(arbUSDC, carol).Int64())

	status, err := sim.Node(42161).Contract().StatusOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSettled, status)
}

func TestTransferReimbursesFulfiller(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulation(t, gateway.DeliverManual)

	id := initiateTransfer(t, sim)

	// Bob fronts the transfer before any message has moved
	require.NoError(t, sim.Node(42161).Contract().Fulfill(ctx, bob, id, arbUSDC, big.NewInt(100), carol))
	assert.Equal(t, int64(100), sim.Node(42161).Ledger().BalanceOf(arbUSDC, carol).Int64())
	assert.Equal(t, int64(400), sim.Node(42161).Ledger().BalanceOf(arbUSDC, bob).Int64())

	require.NoError(t, sim.Gateway().Drain(ctx))

	// Settlement reimburses bob with amount + tip; carol is not paid twice
	assert.Equal(t, int64(505), sim.Node(42161).Ledger().BalanceOf(arbUSDC, bob).Int64())
	assert.Equal(t, int64(100), sim.Node(42161).Ledger().BalanceOf(arbUSDC, carol).Int64())
}

func TestTransferInlineDelivery(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulation(t, gateway.DeliverInline)

	// Inline mode runs the whole lifecycle inside Initiate
	id, err := sim.Node(8453).Contract().Initiate(
		ctx, alice, baseUSDC, big.NewInt(100), 42161, carol.Bytes(), big.NewInt(5), big.NewInt(1),
	)
	require.NoError(t, err)

	assert.Equal(t, int64(105), sim.Node(42161).Ledger().BalanceOf(arbUSDC, carol).Int64())
	status, err := sim.Node(42161).Contract().StatusOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSettled, status)
}

func TestSettlementRedeliveryIsHarmless(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulation(t, gateway.DeliverManual)

	initiateTransfer(t, sim)

	// Step the intent to the hub; the settlement is now the parked message
	require.NoError(t, sim.Gateway().DeliverNext(ctx))
	pending := sim.Gateway().Pending()
	require.Len(t, pending, 1)
	settlementMsg := pending[0]

	require.NoError(t, sim.Gateway().Drain(ctx))
	assert.Equal(t, int64(105), sim.Node(42161).Ledger().BalanceOf(arbUSDC, carol).Int64())

	// The transport redelivers the same settlement; nothing moves again
	require.NoError(t, sim.Gateway().Redeliver(ctx, settlementMsg))
	require.NoError(t, sim.Gateway().Redeliver(ctx, settlementMsg))
	assert.Equal(t, int64(105), sim.Node(42161).Ledger().BalanceOf(arbUSDC, carol).Int64())
}

func TestUpgradePreservesState(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulation(t, gateway.DeliverManual)
	n := sim.Node(42161)

	id := initiateTransfer(t, sim)
	require.NoError(t, n.Contract().Fulfill(ctx, bob, id, arbUSDC, big.NewInt(100), carol))

	factory := func(previous *intent.Contract) (*intent.Contract, error) {
		replacement, err := intent.New(intent.Params{
			ChainID:     previous.ChainID(),
			HubChain:    7000,
			Address:     previous.Address(),
			Counterpart: sim.Router().Address().Bytes(),
			Ledger:      previous.Ledger(),
			Store:       previous.Store(),
			Roles:       sim.Roles(),
			Gateway:     sim.Gateway().Endpoint(previous.ChainID()),
			Version:     previous.Version() + 1,
		})
		if err != nil {
			return nil, err
		}
		return replacement, replacement.AddAccepted(admin, arbUSDC)
	}

	t.Run("Requires the upgrader role", func(t *testing.T) {
		assert.ErrorIs(t, n.UpgradeContract(alice, factory), roles.ErrUnauthorized)
	})

	require.NoError(t, n.UpgradeContract(admin, factory))
	assert.Equal(t, 2, n.Contract().Version())

	// The settlement arrives after the upgrade and still finds the
	// fulfillment recorded by v1
	require.NoError(t, sim.Gateway().Drain(ctx))
	assert.Equal(t, int64(505), n.Ledger().BalanceOf(arbUSDC, bob).Int64())

	status, err := n.Contract().StatusOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSettled, status)
}

func TestChainIsolation(t *testing.T) {
	sim := newTestSimulation(t, gateway.DeliverManual)

	// Balances live per chain: alice's base funds do not exist on arb
	assert.Equal(t, int64(0), sim.Node(42161).Ledger().BalanceOf(arbUSDC, alice).Int64())
	assert.Equal(t, int64(0), sim.Node(8453).Ledger().BalanceOf(baseUSDC, bob).Int64())
}

func TestRecordCounts(t *testing.T) {
	sim := newTestSimulation(t, gateway.DeliverManual)
	initiateTransfer(t, sim)

	counts, err := sim.Node(8453).RecordCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts["intents"])
	assert.Equal(t, 0, counts["settlements"])
}
