package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashboxes/internal/core"
	"cashboxes/internal/storage/memory"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("", ""))
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := NewAuthenticator(store)

	alice, err := a.Register(ctx, " alice ", "Alice", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", alice.Username)
	assert.True(t, alice.Active)

	got, err := a.Authenticate(ctx, "alice", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = a.Authenticate(ctx, "alice", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Authenticate(ctx, "mallory", "secret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	hash, err := HashPassword("bob-password")
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, core.User{Username: "bob", PasswordHash: hash, Active: false})
	require.NoError(t, err)
	_, err = a.Authenticate(ctx, "bob", "bob-password")
	assert.ErrorIs(t, err, core.ErrInactiveUser)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	_, err := NewAuthenticator(memory.New()).Register(context.Background(), "alice", "", "short")
	assert.Error(t, err)
}
