package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddress(t *testing.T) {
	addr, err := NewAddress()
	require.NoError(t, err)
	assert.True(t, ValidAddress(addr))
	assert.Len(t, addr, 42)

	other, err := NewAddress()
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t,
		"0xabcdef0123456789abcdef0123456789abcdef01",
		NormalizeAddress("  0xABCDEF0123456789abcdef0123456789ABCDEF01 "))
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("0xcccccccccccccccccccccccccccccccccccccccc"))
	assert.True(t, ValidAddress("0xABCDEF0123456789abcdef0123456789ABCDEF01"))

	assert.False(t, ValidAddress(""))
	assert.False(t, ValidAddress("0x"))
	assert.False(t, ValidAddress("cccccccccccccccccccccccccccccccccccccccc"))
	assert.False(t, ValidAddress("0xccccccccccccccccccccccccccccccccccccccc"))
	assert.False(t, ValidAddress("0xgggggggggggggggggggggggggggggggggggggggg"))
}

func TestParseRole(t *testing.T) {
	for _, want := range []Role{RoleNone, RoleMerchant, RoleOwner} {
		got, err := ParseRole(string(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Anything outside the closed set is corruption, not a default.
	_, err := ParseRole("SUPERUSER")
	assert.Error(t, err)
	_, err = ParseRole("merchant")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, RoleOwner.CanMint())
	assert.False(t, RoleMerchant.CanMint())
	assert.False(t, RoleNone.CanMint())

	assert.True(t, RoleOwner.CanCashOutFor())
	assert.True(t, RoleMerchant.CanCashOutFor())
	assert.False(t, RoleNone.CanCashOutFor())

	assert.True(t, RoleOwner.CanAdministerRoles())
	assert.False(t, RoleMerchant.CanAdministerRoles())
	assert.False(t, RoleNone.CanAdministerRoles())
}

func TestSettlementEvent(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	s := &Settlement{
		ID:           uuid.New(),
		Sequence:     42,
		Type:         SettlementTypeCashOut,
		Target:       "0xcccccccccccccccccccccccccccccccccccccccc",
		Amount:       500,
		BankAccount:  "NL91ABNA0417164300",
		AuthorizedBy: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		CreatedAt:    createdAt,
	}

	ev := s.Event()
	assert.Equal(t, int64(42), ev.Sequence)
	assert.Equal(t, s.Target, ev.Receiver)
	assert.Equal(t, int64(500), ev.Amount)
	assert.Equal(t, "NL91ABNA0417164300", ev.BankAccount)
	assert.Equal(t, createdAt, ev.OccurredAt)
}

func TestBuildSettlementKey(t *testing.T) {
	key := BuildSettlementKey("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "DEP-001")
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa:DEP-001", key)
}
