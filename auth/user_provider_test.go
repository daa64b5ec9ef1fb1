package auth_test

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-gallery/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProvider_VerifyIdentity(t *testing.T) {
	db := setupTestDB(t)
	provider := auth.NewUserProvider(auth.NewUsersRepository(db))
	ctx := context.Background()

	seeded := seedUser(t, db, "verifier", "verifier@example.com", "password123", auth.RoleAdmin)

	t.Run("valid credentials", func(t *testing.T) {
		identity, err := provider.VerifyIdentity(ctx, "verifier", "password123")
		require.NoError(t, err)
		assert.Equal(t, seeded.ID.String(), identity.ID())
		assert.Equal(t, "verifier", identity.Username())
		assert.Equal(t, auth.RoleAdmin, identity.Role())
	})

	t.Run("login by email", func(t *testing.T) {
		identity, err := provider.VerifyIdentity(ctx, "verifier@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, seeded.ID.String(), identity.ID())
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := provider.VerifyIdentity(ctx, "verifier", "not-it")
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("unknown user reports the same error as a wrong password", func(t *testing.T) {
		_, errUnknown := provider.VerifyIdentity(ctx, "ghost", "password123")
		_, errWrongPw := provider.VerifyIdentity(ctx, "verifier", "not-it")

		require.Error(t, errUnknown)
		require.Error(t, errWrongPw)
		assert.Equal(t, errWrongPw.Error(), errUnknown.Error())
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := provider.VerifyIdentity(ctx, "verifier", "")
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})
}

func TestUserProvider_FindIdentityByIdentifier(t *testing.T) {
	db := setupTestDB(t)
	provider := auth.NewUserProvider(auth.NewUsersRepository(db))
	ctx := context.Background()

	seedUser(t, db, "findme", "findme@example.com", "password123", auth.RoleUser)

	t.Run("found", func(t *testing.T) {
		identity, err := provider.FindIdentityByIdentifier(ctx, "findme")
		require.NoError(t, err)
		assert.Equal(t, "findme@example.com", identity.Email())
	})

	t.Run("not found", func(t *testing.T) {
		_, err := provider.FindIdentityByIdentifier(ctx, "ghost")
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})
}

func TestAuthenticator_Login(t *testing.T) {
	db := setupTestDB(t)
	provider := auth.NewUserProvider(auth.NewUsersRepository(db))
	auther := auth.NewAuthenticator(provider, testAuthConfig())
	ctx := context.Background()

	seeded := seedUser(t, db, "login", "login@example.com", "password123", auth.RoleUser)

	t.Run("issues a token whose claims match the user", func(t *testing.T) {
		token, err := auther.Login(ctx, "login", "password123")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := auther.TokenService().Validate(token)
		require.NoError(t, err)
		assert.Equal(t, seeded.ID.String(), claims.UserID())
		assert.Equal(t, "login", claims.Username())
		assert.Equal(t, auth.RoleUser, claims.Role())
	})

	t.Run("rejects bad credentials", func(t *testing.T) {
		_, err := auther.Login(ctx, "login", "nope")
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("rejects unknown users", func(t *testing.T) {
		_, err := auther.Login(ctx, "ghost", "password123")
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})
}
