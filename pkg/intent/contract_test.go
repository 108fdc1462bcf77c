package intent

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/speedrun-go/pkg/ledger"
	"github.com/speedrun-hq/speedrun-go/pkg/models"
	"github.com/speedrun-hq/speedrun-go/pkg/roles"
	"github.com/speedrun-hq/speedrun-go/pkg/store"
)

var (
	admin        = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol        = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	asset        = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	contractAddr = common.HexToAddress("0x0000000000000000000000000000000000008453")
	routerAddr   = common.HexToAddress("0x0000000000000000000000000000000000007000")
)

type sentMessage struct {
	destChain uint64
	sender    []byte
	payload   []byte
	gasLimit  uint64
}

// captureSender records outbound messages instead of delivering them
type captureSender struct {
	sent []sentMessage
	err  error
}

func (s *captureSender) SendOutbound(_ context.Context, destChain uint64, sender []byte, payload []byte, gasLimit uint64) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{destChain: destChain, sender: sender, payload: payload, gasLimit: gasLimit})
	return nil
}

type recordingTarget struct {
	fulfills int
	settles  int
	err      error
}

func (r *recordingTarget) OnFulfill(_ context.Context, _ common.Hash, _ common.Address, _ *big.Int, _ []byte) error {
	r.fulfills++
	return r.err
}

func (r *recordingTarget) OnSettle(_ context.Context, _ common.Hash, _ common.Address, _ *big.Int, _ []byte, _ common.Hash) error {
	r.settles++
	return r.err
}

type fixture struct {
	contract *Contract
	ledger   *ledger.Ledger
	store    *store.MemoryStore
	sender   *captureSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := ledger.New(8453)
	s := store.NewMemoryStore()
	sender := &captureSender{}
	contract, err := New(Params{
		ChainID:     8453,
		HubChain:    7000,
		Address:     contractAddr,
		Counterpart: routerAddr.Bytes(),
		Ledger:      l,
		Store:       s,
		Roles:       roles.NewSet(admin),
		Gateway:     sender,
	})
	require.NoError(t, err)
	require.NoError(t, contract.AddAccepted(admin, asset))
	require.NoError(t, l.Mint(asset, alice, big.NewInt(1000)))
	require.NoError(t, l.Mint(asset, bob, big.NewInt(500)))
	return &fixture{contract: contract, ledger: l, store: s, sender: sender}
}

// settle delivers a settlement payload as the trusted counterpart
func (f *fixture) settle(t *testing.T, p *models.SettlementPayload) error {
	t.Helper()
	raw, err := p.Encode()
	require.NoError(t, err)
	return f.contract.OnInboundCall(context.Background(), 7000, routerAddr.Bytes(), raw)
}

func TestInitiate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 42161, carol.Bytes(), big.NewInt(5), big.NewInt(1))
	require.NoError(t, err)

	t.Run("Custody holds amount plus tip", func(t *testing.T) {
		assert.Equal(t, int64(895), f.ledger.BalanceOf(asset, alice).Int64())
		assert.Equal(t, int64(105), f.ledger.BalanceOf(asset, contractAddr).Int64())
	})

	t.Run("Record is pending", func(t *testing.T) {
		record, err := f.store.GetIntent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, record.Status)
		assert.Equal(t, alice, record.Sender)
	})

	t.Run("Outbound message targets the hub", func(t *testing.T) {
		require.Len(t, f.sender.sent, 1)
		msg := f.sender.sent[0]
		assert.Equal(t, uint64(7000), msg.destChain)
		assert.Equal(t, contractAddr.Bytes(), msg.sender)

		decoded, err := models.DecodeIntentPayload(msg.payload)
		require.NoError(t, err)
		assert.Equal(t, id, decoded.ID)
		assert.Equal(t, uint64(42161), decoded.TargetChain)
	})

	t.Run("Identical re-initiation fails and refunds", func(t *testing.T) {
		_, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 42161, carol.Bytes(), big.NewInt(5), big.NewInt(1))
		assert.ErrorIs(t, err, store.ErrIntentExists)
		assert.Equal(t, int64(895), f.ledger.BalanceOf(asset, alice).Int64())
		assert.Equal(t, int64(105), f.ledger.BalanceOf(asset, contractAddr).Int64())
	})

	t.Run("Different salt produces a new intent", func(t *testing.T) {
		other, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 42161, carol.Bytes(), big.NewInt(5), big.NewInt(2))
		require.NoError(t, err)
		assert.NotEqual(t, id, other)
	})
}

func TestInitiateValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare func(f *fixture)
		run     func(f *fixture) error
		wantErr error
	}{
		{
			name: "Zero amount",
			run: func(f *fixture) error {
				_, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(0), 42161, carol.Bytes(), nil, nil)
				return err
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "Negative tip",
			run: func(f *fixture) error {
				_, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 42161, carol.Bytes(), big.NewInt(-1), nil)
				return err
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "Unaccepted asset",
			run: func(f *fixture) error {
				other := common.HexToAddress("0x00000000000000000000000000000000000000c9")
				_, err := f.contract.Initiate(ctx, alice, other, big.NewInt(100), 42161, carol.Bytes(), nil, nil)
				return err
			},
			wantErr: ErrUnknownAsset,
		},
		{
			name: "Empty receiver",
			run: func(f *fixture) error {
				_, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 42161, nil, nil, nil)
				return err
			},
			wantErr: ErrInvalidReceiver,
		},
		{
			name: "Target is own chain",
			run: func(f *fixture) error {
				_, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 8453, carol.Bytes(), nil, nil)
				return err
			},
			wantErr: ErrInvalidTargetChain,
		},
		{
			name: "Zero target chain",
			run: func(f *fixture) error {
				_, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 0, carol.Bytes(), nil, nil)
				return err
			},
			wantErr: ErrInvalidTargetChain,
		},
		{
			name: "Paused",
			prepare: func(f *fixture) {
				require.NoError(t, f.contract.PauseInitiation(admin))
			},
			run: func(f *fixture) error {
				_, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 42161, carol.Bytes(), nil, nil)
				return err
			},
			wantErr: ErrPaused,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.prepare != nil {
				tc.prepare(f)
			}
			assert.ErrorIs(t, tc.run(f), tc.wantErr)
			assert.Equal(t, int64(1000), f.ledger.BalanceOf(asset, alice).Int64(), "no funds move on a rejected initiation")
			assert.Empty(t, f.sender.sent)
		})
	}
}

func TestInitiateUnwindsWhenEmitFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sender.err = errors.New("transport down")

	_, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 42161, carol.Bytes(), big.NewInt(5), big.NewInt(1))
	require.Error(t, err)

	// Custody and the record are both rolled back
	assert.Equal(t, int64(1000), f.ledger.BalanceOf(asset, alice).Int64())
	assert.Equal(t, int64(0), f.ledger.BalanceOf(asset, contractAddr).Int64())

	// The same intent can be initiated again once the transport recovers
	f.sender.err = nil
	_, err = f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 42161, carol.Bytes(), big.NewInt(5), big.NewInt(1))
	assert.NoError(t, err)
}

func TestFulfill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := common.HexToHash("0xab01")

	require.NoError(t, f.contract.Fulfill(ctx, bob, id, asset, big.NewInt(100), carol))

	t.Run("Receiver paid from fulfiller liquidity", func(t *testing.T) {
		assert.Equal(t, int64(400), f.ledger.BalanceOf(asset, bob).Int64())
		assert.Equal(t, int64(100), f.ledger.BalanceOf(asset, carol).Int64())
	})

	t.Run("First fulfiller wins", func(t *testing.T) {
		err := f.contract.Fulfill(ctx, alice, id, asset, big.NewInt(100), carol)
		assert.ErrorIs(t, err, store.ErrAlreadyFulfilled)
		assert.Equal(t, int64(1000), f.ledger.BalanceOf(asset, alice).Int64())
	})

	t.Run("Status is fulfilled", func(t *testing.T) {
		status, err := f.contract.StatusOf(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFulfilled, status)
	})
}

func TestFulfillValidation(t *testing.T) {
	ctx := context.Background()
	id := common.HexToHash("0xab01")

	t.Run("Paused", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.contract.PauseFulfillment(admin))
		err := f.contract.Fulfill(ctx, bob, id, asset, big.NewInt(100), carol)
		assert.ErrorIs(t, err, ErrPaused)
	})

	t.Run("Unaccepted asset", func(t *testing.T) {
		f := newFixture(t)
		other := common.HexToAddress("0x00000000000000000000000000000000000000c9")
		err := f.contract.Fulfill(ctx, bob, id, other, big.NewInt(100), carol)
		assert.ErrorIs(t, err, ErrUnknownAsset)
	})

	t.Run("Insufficient liquidity", func(t *testing.T) {
		f := newFixture(t)
		err := f.contract.Fulfill(ctx, bob, id, asset, big.NewInt(10000), carol)
		assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		assert.Equal(t, int64(0), f.ledger.BalanceOf(asset, carol).Int64())
	})

	t.Run("Already settled", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.settle(t, &models.SettlementPayload{
			ID:       id,
			Asset:    asset,
			Amount:   big.NewInt(100),
			Receiver: carol.Bytes(),
			Tip:      big.NewInt(5),
		}))
		err := f.contract.Fulfill(ctx, bob, id, asset, big.NewInt(100), carol)
		assert.ErrorIs(t, err, store.ErrAlreadySettled)
	})
}

func TestSettleWithoutFulfillment(t *testing.T) {
	f := newFixture(t)
	id := common.HexToHash("0xab01")

	require.NoError(t, f.settle(t, &models.SettlementPayload{
		ID:       id,
		Asset:    asset,
		Amount:   big.NewInt(100),
		Receiver: carol.Bytes(),
		Tip:      big.NewInt(5),
	}))

	// No fulfiller advanced funds, so the receiver gets amount + tip
	assert.Equal(t, int64(105), f.ledger.BalanceOf(asset, carol).Int64())
	assert.Equal(t, int64(0), f.ledger.BalanceOf(asset, contractAddr).Int64())

	status, err := f.contract.StatusOf(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSettled, status)
}

func TestSettleReimbursesFulfiller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := common.HexToHash("0xab01")

	require.NoError(t, f.contract.Fulfill(ctx, bob, id, asset, big.NewInt(100), carol))
	require.NoError(t, f.settle(t, &models.SettlementPayload{
		ID:       id,
		Asset:    asset,
		Amount:   big.NewInt(100),
		Receiver: carol.Bytes(),
		Tip:      big.NewInt(5),
	}))

	// Bob fronted 100 and is reimbursed 105; carol is paid exactly once
	assert.Equal(t, int64(505), f.ledger.BalanceOf(asset, bob).Int64())
	assert.Equal(t, int64(100), f.ledger.BalanceOf(asset, carol).Int64())

	settlement, err := f.store.GetSettlement(ctx, id)
	require.NoError(t, err)
	assert.True(t, settlement.Fulfilled)
	assert.Equal(t, bob, settlement.Fulfiller)
}

func TestSettleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	id := common.HexToHash("0xab01")
	payload := &models.SettlementPayload{
		ID:       id,
		Asset:    asset,
		Amount:   big.NewInt(100),
		Receiver: carol.Bytes(),
		Tip:      big.NewInt(5),
	}

	require.NoError(t, f.settle(t, payload))
	// The transport redelivers; the duplicate is a no-op success
	require.NoError(t, f.settle(t, payload))
	require.NoError(t, f.settle(t, payload))

	assert.Equal(t, int64(105), f.ledger.BalanceOf(asset, carol).Int64(), "paid exactly once")
}

func TestSettleMismatchedFulfillment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := common.HexToHash("0xab01")

	// Bob fulfills with the wrong amount; the settlement message disagrees
	require.NoError(t, f.contract.Fulfill(ctx, bob, id, asset, big.NewInt(90), carol))
	require.NoError(t, f.settle(t, &models.SettlementPayload{
		ID:       id,
		Asset:    asset,
		Amount:   big.NewInt(100),
		Receiver: carol.Bytes(),
		Tip:      big.NewInt(5),
	}))

	// The message is authoritative: carol receives the settled value and the
	// mismatched fulfillment is not reimbursed
	assert.Equal(t, int64(90+105), f.ledger.BalanceOf(asset, carol).Int64())
	assert.Equal(t, int64(410), f.ledger.BalanceOf(asset, bob).Int64())

	settlement, err := f.store.GetSettlement(ctx, id)
	require.NoError(t, err)
	assert.False(t, settlement.Fulfilled)
}

func TestSettleRejectsUntrustedSender(t *testing.T) {
	f := newFixture(t)
	raw, err := (&models.SettlementPayload{
		ID:       common.HexToHash("0xab01"),
		Asset:    asset,
		Amount:   big.NewInt(100),
		Receiver: carol.Bytes(),
		Tip:      big.NewInt(0),
	}).Encode()
	require.NoError(t, err)

	err = f.contract.OnInboundCall(context.Background(), 7000, alice.Bytes(), raw)
	assert.ErrorIs(t, err, ErrUntrustedSender)
	assert.Equal(t, int64(0), f.ledger.BalanceOf(asset, carol).Int64())
}

func TestSettleWorksWhilePaused(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.contract.PauseInitiation(admin))
	require.NoError(t, f.contract.PauseFulfillment(admin))

	// Value already locked on the source chain must remain redeemable
	require.NoError(t, f.settle(t, &models.SettlementPayload{
		ID:       common.HexToHash("0xab01"),
		Asset:    asset,
		Amount:   big.NewInt(100),
		Receiver: carol.Bytes(),
		Tip:      big.NewInt(5),
	}))
	assert.Equal(t, int64(105), f.ledger.BalanceOf(asset, carol).Int64())
}

func TestTargetCallbacks(t *testing.T) {
	ctx := context.Background()
	id := common.HexToHash("0xab01")

	t.Run("OnFulfill fires on fulfillment", func(t *testing.T) {
		f := newFixture(t)
		target := &recordingTarget{}
		f.contract.RegisterTarget(carol, target)

		require.NoError(t, f.contract.FulfillWithCall(ctx, bob, id, asset, big.NewInt(100), carol, []byte("x")))
		assert.Equal(t, 1, target.fulfills)
		assert.Equal(t, 0, target.settles)
	})

	t.Run("OnSettle fires once on matched settlement", func(t *testing.T) {
		f := newFixture(t)
		target := &recordingTarget{}
		f.contract.RegisterTarget(carol, target)

		require.NoError(t, f.contract.Fulfill(ctx, bob, id, asset, big.NewInt(100), carol))
		payload := &models.SettlementPayload{
			ID:       id,
			Asset:    asset,
			Amount:   big.NewInt(100),
			Receiver: carol.Bytes(),
			Tip:      big.NewInt(5),
		}
		require.NoError(t, f.settle(t, payload))
		require.NoError(t, f.settle(t, payload), "redelivery")

		assert.Equal(t, 1, target.settles, "settle callback is not replayed")
		assert.Equal(t, 1, target.fulfills)
	})

	t.Run("OnFulfill fires on direct settlement", func(t *testing.T) {
		f := newFixture(t)
		target := &recordingTarget{}
		f.contract.RegisterTarget(carol, target)

		require.NoError(t, f.settle(t, &models.SettlementPayload{
			ID:       id,
			Asset:    asset,
			Amount:   big.NewInt(100),
			Receiver: carol.Bytes(),
			Tip:      big.NewInt(0),
		}))
		assert.Equal(t, 1, target.fulfills)
		assert.Equal(t, 0, target.settles)
	})

	t.Run("Callback failure never unwinds the payout", func(t *testing.T) {
		f := newFixture(t)
		target := &recordingTarget{err: errors.New("callback broken")}
		f.contract.RegisterTarget(carol, target)

		require.NoError(t, f.settle(t, &models.SettlementPayload{
			ID:       id,
			Asset:    asset,
			Amount:   big.NewInt(100),
			Receiver: carol.Bytes(),
			Tip:      big.NewInt(5),
		}))
		assert.Equal(t, int64(105), f.ledger.BalanceOf(asset, carol).Int64())

		status, err := f.contract.StatusOf(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSettled, status)
	})
}

func TestPauseRequiresRole(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.contract.PauseInitiation(alice), roles.ErrUnauthorized)
	assert.ErrorIs(t, f.contract.PauseFulfillment(alice), roles.ErrUnauthorized)

	require.NoError(t, f.contract.PauseInitiation(admin))
	initiation, fulfillment := f.contract.Paused()
	assert.True(t, initiation)
	assert.False(t, fulfillment)

	require.NoError(t, f.contract.UnpauseInitiation(admin))
	initiation, _ = f.contract.Paused()
	assert.False(t, initiation)
}

func TestAcceptedAssets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.contract.AddAccepted(alice, asset), roles.ErrUnauthorized)

	require.NoError(t, f.contract.RemoveAccepted(admin, asset))
	_, err := f.contract.Initiate(ctx, alice, asset, big.NewInt(100), 42161, carol.Bytes(), nil, nil)
	assert.ErrorIs(t, err, ErrUnknownAsset)
}
