package auth_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	auth "github.com/goliatone/go-gallery/auth"
	"github.com/goliatone/go-gallery/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		SigningKey:      "test-signing-key",
		TokenExpiration: 5 * time.Minute,
		Issuer:          "test-issuer",
		ContextKey:      "user",
		AuthScheme:      "Bearer",
	}
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)

	// cache=shared keeps the in-memory db alive while any connection is open
	sqldb.SetMaxIdleConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = db.NewCreateTable().
		Model((*auth.User)(nil)).
		IfNotExists().
		Exec(context.Background())
	require.NoError(t, err)

	return db
}

func seedUser(t *testing.T, db *bun.DB, username, email, password, role string) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	user := &auth.User{
		Username:     username,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	}

	repo := auth.NewUsersRepository(db)
	created, err := repo.Register(context.Background(), user)
	require.NoError(t, err)

	return created
}
