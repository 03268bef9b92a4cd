package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/flashcards/internal/repository/sqlite"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("JWT_SECRET", "createsuperuser-test-secret")
	t.Setenv("SUPERUSER_PASSWORD", "")
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "data", "flashcards.db")
}

func TestRun_CreatesSuperuser(t *testing.T) {
	dbPath := setupEnv(t)

	require.NoError(t, run([]string{"-email", "root@example.com", "-password", "s3cret", "-first-name", "Root", "-db", dbPath}))

	db, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	u, err := db.Users().GetByEmail(context.Background(), "root@example.com")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsSuperuser)
	assert.True(t, u.IsActive)
	assert.Equal(t, "Root", u.FirstName)
}

func TestRun_PasswordFromEnv(t *testing.T) {
	dbPath := setupEnv(t)
	t.Setenv("SUPERUSER_PASSWORD", "from-env")

	assert.NoError(t, run([]string{"-email", "root@example.com", "-db", dbPath}))
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no password", args: []string{"-email", "root@example.com"}, want: "password is required"},
		{name: "not staff", args: []string{"-email", "root@example.com", "-password", "x", "-staff=false"}, want: "is_staff"},
		{name: "not superuser", args: []string{"-email", "root@example.com", "-password", "x", "-superuser=false"}, want: "is_superuser"},
		{name: "bad email", args: []string{"-email", "not-an-email", "-password", "x"}, want: "email"},
		{name: "unknown flag", args: []string{"-admin"}, want: "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := setupEnv(t)
			err := run(append(tt.args, "-db", dbPath))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
