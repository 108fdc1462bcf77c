package roles

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	operator = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func TestAdminImpliesEveryRole(t *testing.T) {
	s := NewSet(admin)
	for _, role := range []Role{RoleAdmin, RolePauser, RoleRegistrar, RoleUpgrader} {
		assert.True(t, s.Has(admin, role), "admin should hold %s", role)
	}
	assert.False(t, s.Has(stranger, RolePauser))
}

func TestGrantAndRevoke(t *testing.T) {
	s := NewSet(admin)

	require.NoError(t, s.Grant(admin, operator, RolePauser))
	assert.True(t, s.Has(operator, RolePauser))
	assert.False(t, s.Has(operator, RoleRegistrar))

	require.NoError(t, s.Revoke(admin, operator, RolePauser))
	assert.False(t, s.Has(operator, RolePauser))
}

func TestOnlyAdminMayGrant(t *testing.T) {
	s := NewSet(admin)
	require.NoError(t, s.Grant(admin, operator, RolePauser))

	// A pauser cannot hand out roles
	assert.ErrorIs(t, s.Grant(operator, stranger, RolePauser), ErrUnauthorized)
	assert.ErrorIs(t, s.Revoke(operator, operator, RolePauser), ErrUnauthorized)
}

func TestRequire(t *testing.T) {
	s := NewSet(admin)
	assert.NoError(t, s.Require(admin, RoleUpgrader))
	assert.ErrorIs(t, s.Require(stranger, RoleUpgrader), ErrUnauthorized)
}
