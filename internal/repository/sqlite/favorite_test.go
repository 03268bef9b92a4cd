package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/flashcards/internal/apperror"
)

func TestFavorites_AddRemoveContainsCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner@example.com")
	fan1 := createTestUser(t, db, "fan1@example.com")
	fan2 := createTestUser(t, db, "fan2@example.com")
	col := createTestCollection(t, db, owner, "shared", true)

	favs := db.Favorites()

	ok, err := favs.Contains(ctx, fan1.ID, col.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, favs.Add(ctx, fan1.ID, col.ID))
	require.NoError(t, favs.Add(ctx, fan1.ID, col.ID), "adding twice is a no-op")
	require.NoError(t, favs.Add(ctx, fan2.ID, col.ID))

	ok, err = favs.Contains(ctx, fan1.ID, col.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := favs.Count(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, favs.Remove(ctx, fan1.ID, col.ID))
	require.NoError(t, favs.Remove(ctx, fan1.ID, col.ID), "removing twice is a no-op")

	n, err = favs.Count(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFavorites_AddUnknownCollection(t *testing.T) {
	db := newTestDB(t)
	fan := createTestUser(t, db, "fan@example.com")

	err := db.Favorites().Add(context.Background(), fan.ID, 12345)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
