package listid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeDeterministic(t *testing.T) {
	payments := []Payment{
		{Recipient: "bob.near", Amount: "200"},
		{Recipient: "alice.near", Amount: "100"},
	}

	first, err := Compute("treasury.near", "native", payments)
	require.NoError(t, err)
	require.True(t, Valid(first), "id must be 64 lowercase hex chars: %s", first)

	second, err := Compute("treasury.near", "native", payments)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestComputeOrderIndependent(t *testing.T) {
	forward := []Payment{
		{Recipient: "alice.near", Amount: "100"},
		{Recipient: "bob.near", Amount: "200"},
	}
	reversed := []Payment{
		{Recipient: "bob.near", Amount: "200"},
		{Recipient: "alice.near", Amount: "100"},
	}

	a, err := Compute("treasury.near", "native", forward)
	require.NoError(t, err)
	b, err := Compute("treasury.near", "native", reversed)
	require.NoError(t, err)
	require.Equal(t, a, b, "payments are sorted by recipient before hashing")
}

func TestComputeSensitiveToContent(t *testing.T) {
	base := []Payment{{Recipient: "alice.near", Amount: "100"}}

	id, err := Compute("treasury.near", "native", base)
	require.NoError(t, err)

	changedAmount, err := Compute("treasury.near", "native", []Payment{{Recipient: "alice.near", Amount: "101"}})
	require.NoError(t, err)
	require.NotEqual(t, id, changedAmount)

	changedToken, err := Compute("treasury.near", "usdt.near", base)
	require.NoError(t, err)
	require.NotEqual(t, id, changedToken)

	changedSubmitter, err := Compute("other.near", "native", base)
	require.NoError(t, err)
	require.NotEqual(t, id, changedSubmitter)
}

func TestValid(t *testing.T) {
	require.True(t, Valid("a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4"))
	require.False(t, Valid("short"))
	require.False(t, Valid("A1B2C3D4E5F6A1B2C3D4E5F6A1B2C3D4A1B2C3D4E5F6A1B2C3D4E5F6A1B2C3D4"))
	require.False(t, Valid("g1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4"))
}
