package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func newRegisterService(t *testing.T, sessions *stubSessionManager) (RegisterService, *gorm.DB) {
	t.Helper()
	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.User{}))

	svc, err := NewRegisterService(RegisterServiceParams{
		DB:             db.NewFromConn(conn),
		SessionManager: sessions,
		PasswordConfig: config.PasswordConfig{},
		JWTConfig:      testJWTConfig(),
	})
	require.NoError(t, err)
	return svc, conn
}

func TestRegisterCreatesUserAndSignsIn(t *testing.T) {
	sessions := &stubSessionManager{refreshToken: "refresh"}
	svc, conn := newRegisterService(t, sessions)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username: "ana",
		Email:    "Ana@Example.com",
		Password: "long-enough",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "refresh", resp.RefreshToken)
	require.Equal(t, "ana@example.com", resp.User.Email)
	require.Equal(t, resp.User.ID, sessions.lastUserID)

	var stored models.User
	require.NoError(t, conn.First(&stored, "email = ?", "ana@example.com").Error)
	require.NotEqual(t, "long-enough", stored.PasswordHash)
	require.True(t, stored.IsActive)
	require.False(t, stored.IsStaff)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := newRegisterService(t, &stubSessionManager{refreshToken: "refresh"})
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "long-enough"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Username: "other", Email: "ana@example.com", Password: "long-enough"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.Register(ctx, RegisterRequest{Username: "ana", Email: "second@example.com", Password: "long-enough"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestRegisterSessionFailureIsInternal(t *testing.T) {
	svc, _ := newRegisterService(t, &stubSessionManager{err: errSessionDown})
	_, err := svc.Register(context.Background(), RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "long-enough"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}
