package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/model"
)

const testSecret = "service-test-secret-0123456789"

func newTestAuthService(t *testing.T) (*AuthService, *memStore, *auth.TokenService) {
	t.Helper()
	store := newMemStore()
	tokens, err := auth.NewTokenService(testSecret, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	svc := NewAuthService(store, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), discardLogger())
	return svc, store, tokens
}

func register(t *testing.T, svc *AuthService, email, password string) *model.User {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterInput{Email: email, Password: &password})
	require.NoError(t, err)
	return u
}

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister_Success(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	pw := "s3cret-pass"

	u, err := svc.Register(context.Background(), RegisterInput{
		Email:     "  Ana@Example.COM ",
		Password:  &pw,
		FirstName: "Ana",
	})
	require.NoError(t, err)

	assert.NotZero(t, u.ID)
	assert.Equal(t, "Ana@example.com", u.Email, "domain lowercased, local part kept")
	assert.True(t, u.IsActive)
	assert.False(t, u.IsStaff)
	assert.False(t, u.IsSuperuser)
	require.True(t, u.HasUsablePassword())
	assert.NotEqual(t, pw, *u.PasswordHash)
}

func TestRegister_EmptyPasswordIsUnusable(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	empty := ""

	u, err := svc.Register(context.Background(), RegisterInput{Email: "ana@example.com", Password: &empty})
	require.NoError(t, err)
	assert.False(t, u.HasUsablePassword())

	_, err = svc.Login(context.Background(), "ana@example.com", "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	pw := "pw"
	long := strings.Repeat("x", auth.MaxPasswordBytes+1)

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{name: "missing email", in: RegisterInput{Password: &pw}, field: "email"},
		{name: "bad email", in: RegisterInput{Email: "not-an-email", Password: &pw}, field: "email"},
		{name: "display name form", in: RegisterInput{Email: "Ana <ana@example.com>", Password: &pw}, field: "email"},
		{name: "password key missing", in: RegisterInput{Email: "ana@example.com"}, field: "password"},
		{name: "password too long", in: RegisterInput{Email: "ana@example.com", Password: &long}, field: "password"},
		{name: "first name too long", in: RegisterInput{Email: "ana@example.com", Password: &pw, FirstName: strings.Repeat("n", MaxNameLength+1)}, field: "first_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.FieldErrors(), tt.field)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	register(t, svc, "ana@example.com", "pw")

	pw := "other"
	_, err := svc.Register(context.Background(), RegisterInput{Email: "ana@EXAMPLE.com", Password: &pw})
	require.ErrorIs(t, err, apperror.ErrValidation)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "user with this email address already exists.", appErr.FieldErrors()["email"])
}

func TestCreateSuperuser(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	pw := "admin-pass"

	u, err := svc.CreateSuperuser(context.Background(), RegisterInput{Email: "root@example.com", Password: &pw}, SuperuserOptions{})
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsSuperuser)
	assert.True(t, u.IsActive)

	_, err = svc.CreateSuperuser(context.Background(), RegisterInput{Email: "a@example.com", Password: &pw},
		SuperuserOptions{IsStaff: boolPtr(false)})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.CreateSuperuser(context.Background(), RegisterInput{Email: "b@example.com", Password: &pw},
		SuperuserOptions{IsSuperuser: boolPtr(false)})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// LOGIN / REFRESH / LOGOUT
// =========================================================================

func TestLogin(t *testing.T) {
	svc, store, tokens := newTestAuthService(t)
	u := register(t, svc, "ana@example.com", "correct")

	pair, err := svc.Login(context.Background(), "ana@example.com", "correct")
	require.NoError(t, err)
	claims, err := tokens.ValidateAccess(pair.Access)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, "ana@example.com", claims.Email)

	_, err = svc.Login(context.Background(), "ana@example.com", "wrong")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Login(context.Background(), "nobody@example.com", "correct")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	inactive := store.st.users[u.ID]
	inactive.IsActive = false
	store.st.users[u.ID] = inactive
	_, err = svc.Login(context.Background(), "ana@example.com", "correct")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestRefresh(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	register(t, svc, "ana@example.com", "pw")
	pair, err := svc.Login(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)

	access, err := svc.Refresh(context.Background(), pair.Refresh)
	require.NoError(t, err)
	_, err = tokens.ValidateAccess(access)
	assert.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.Access)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized, "access token is not a refresh token")

	_, err = svc.Refresh(context.Background(), "garbage")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestLogout_BlacklistsRefreshToken(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	register(t, svc, "ana@example.com", "pw")
	pair, err := svc.Login(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), pair.Refresh))
	assert.Len(t, store.st.tokens, 1)

	_, err = svc.Refresh(context.Background(), pair.Refresh)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	err = svc.Logout(context.Background(), pair.Refresh)
	assert.ErrorIs(t, err, apperror.ErrValidation, "second logout with the same token fails")
}

func TestLogout_BadInput(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	register(t, svc, "ana@example.com", "pw")
	pair, err := svc.Login(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)

	for _, tok := range []string{"", "garbage", pair.Access} {
		err := svc.Logout(context.Background(), tok)
		assert.ErrorIs(t, err, apperror.ErrValidation, "token %q", tok)
	}
}

func TestLogout_PurgesExpiredEntries(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	u := register(t, svc, "ana@example.com", "pw")
	store.st.tokens["stale"] = model.BlacklistedToken{
		JTI:       "stale",
		UserID:    u.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	pair, err := svc.Login(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background(), pair.Refresh))

	_, stale := store.st.tokens["stale"]
	assert.False(t, stale)
	assert.Len(t, store.st.tokens, 1)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "Ana@example.com", NormalizeEmail(" Ana@EXAMPLE.com"))
	assert.Equal(t, "no-at-sign", NormalizeEmail("no-at-sign"))
	assert.Equal(t, "", NormalizeEmail("   "))
}
