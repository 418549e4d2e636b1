package auth_test

import (
	"context"
	"testing"

	"academic-service/internal/auth"
	"academic-service/internal/config"
	"academic-service/internal/metrics"
	"academic-service/testing/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*auth.Service, auth.Repository) {
	t.Helper()

	bdb := testdb.NewSQLite(t, []any{(*auth.User)(nil)})
	repo := auth.NewRepository(bdb, metrics.NewMock())
	jwt := auth.NewJWTManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTLMinutes: 15})
	return auth.NewService(repo, jwt), repo
}

func TestService(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndLogin", func(t *testing.T) {
		svc, _ := newService(t)

		user, err := svc.CreateUser(ctx, "mifos", "password", []string{"read_academicyear", "CREATE_ACADEMICYEAR"}, false)
		require.NoError(t, err)
		assert.NotZero(t, user.ID)
		assert.NotEqual(t, "password", user.PasswordHash)

		resp, err := svc.Login(ctx, auth.LoginRequest{Username: "mifos", Password: "password"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, int64(900), resp.ExpiresIn)
		assert.Equal(t, []string{"READ_ACADEMICYEAR", "CREATE_ACADEMICYEAR"}, resp.User.Permissions)
		assert.NotEmpty(t, resp.AccessToken)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.CreateUser(ctx, "mifos", "password", nil, false)
		require.NoError(t, err)

		_, err = svc.Login(ctx, auth.LoginRequest{Username: "mifos", Password: "nope"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Login(ctx, auth.LoginRequest{Username: "ghost", Password: "x"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("DuplicateAndOverwrite", func(t *testing.T) {
		svc, repo := newService(t)
		_, err := svc.CreateUser(ctx, "mifos", "password", []string{"READ_ACADEMICYEAR"}, false)
		require.NoError(t, err)

		_, err = svc.CreateUser(ctx, "mifos", "password", nil, false)
		assert.ErrorIs(t, err, auth.ErrUsernameExists)

		_, err = svc.CreateUser(ctx, "mifos", "password", []string{"ALL_FUNCTIONS"}, true)
		require.NoError(t, err)

		stored, err := repo.GetByUsername(ctx, "mifos")
		require.NoError(t, err)
		assert.Equal(t, "ALL_FUNCTIONS", stored.Permissions)
	})
}
