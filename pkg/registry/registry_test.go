package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/speedrun-go/pkg/logger"
	"github.com/speedrun-hq/speedrun-go/pkg/roles"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	baseUSDC = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	arbUSDC  = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(roles.NewSet(admin), &logger.EmptyLogger{}, []uint64{8453, 42161})
	require.NoError(t, r.AddToken(admin, "USDC"))
	return r
}

func TestAddToken(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("Duplicate token", func(t *testing.T) {
		assert.ErrorIs(t, r.AddToken(admin, "USDC"), ErrExists)
	})

	t.Run("Empty identifier", func(t *testing.T) {
		assert.Error(t, r.AddToken(admin, ""))
	})

	t.Run("Requires registrar role", func(t *testing.T) {
		assert.ErrorIs(t, r.AddToken(stranger, "USDT"), roles.ErrUnauthorized)
	})
}

func TestAssociations(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.AddAssociation(admin, "USDC", 8453, baseUSDC))
	require.NoError(t, r.AddAssociation(admin, "USDC", 42161, arbUSDC))

	t.Run("Resolve", func(t *testing.T) {
		asset, err := r.Resolve("USDC", 42161)
		require.NoError(t, err)
		assert.Equal(t, arbUSDC, asset)
	})

	t.Run("LogicalOf", func(t *testing.T) {
		token, err := r.LogicalOf(baseUSDC, 8453)
		require.NoError(t, err)
		assert.Equal(t, "USDC", token)
	})

	t.Run("One address per chain", func(t *testing.T) {
		assert.ErrorIs(t, r.AddAssociation(admin, "USDC", 8453, arbUSDC), ErrExists)
	})

	t.Run("Unknown chain", func(t *testing.T) {
		assert.ErrorIs(t, r.AddAssociation(admin, "USDC", 1, baseUSDC), ErrUnknownChain)
	})

	t.Run("Zero address", func(t *testing.T) {
		assert.ErrorIs(t, r.AddAssociation(admin, "USDC", 8453, common.Address{}), ErrZeroAddress)
	})

	t.Run("Unknown token", func(t *testing.T) {
		assert.ErrorIs(t, r.AddAssociation(admin, "DAI", 8453, baseUSDC), ErrNotFound)
		_, err := r.Resolve("DAI", 8453)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateAssociation(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.AddAssociation(admin, "USDC", 8453, baseUSDC))

	replacement := common.HexToAddress("0x00000000000000000000000000000000000000c9")
	require.NoError(t, r.UpdateAssociation(admin, "USDC", 8453, replacement))

	asset, err := r.Resolve("USDC", 8453)
	require.NoError(t, err)
	assert.Equal(t, replacement, asset)

	// The old address no longer resolves back to the token
	_, err = r.LogicalOf(baseUSDC, 8453)
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("Missing association", func(t *testing.T) {
		assert.ErrorIs(t, r.UpdateAssociation(admin, "USDC", 42161, replacement), ErrNotFound)
	})
}

func TestRemoveAssociation(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.AddAssociation(admin, "USDC", 8453, baseUSDC))
	require.NoError(t, r.RemoveAssociation(admin, "USDC", 8453))

	_, err := r.Resolve("USDC", 8453)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.LogicalOf(baseUSDC, 8453)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, r.RemoveAssociation(admin, "USDC", 8453), ErrNotFound)
}

func TestTokens(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.AddToken(admin, "USDT"))
	assert.ElementsMatch(t, []string{"USDC", "USDT"}, r.Tokens())
}
