package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
)

const (
	ownerID    int64 = 1
	strangerID int64 = 2
)

func collection(public bool) *model.Collection {
	return &model.Collection{ID: 10, OwnerID: ownerID, Title: "c", IsPublic: public}
}

func TestCollectionCapabilities(t *testing.T) {
	tests := []struct {
		name      string
		user      int64
		public    bool
		favorited bool
		read      bool
		list      bool
		write     bool
		favorite  bool
	}{
		{name: "owner, private", user: ownerID, public: false, read: true, list: true, write: true, favorite: true},
		{name: "owner, public", user: ownerID, public: true, read: true, list: true, write: true, favorite: true},
		{name: "stranger, public", user: strangerID, public: true, read: true, list: false, write: false, favorite: true},
		{name: "stranger, private", user: strangerID, public: false, read: false, list: false, write: false, favorite: false},
		{name: "favoriter, public", user: strangerID, public: true, favorited: true, read: true, list: true, write: false, favorite: true},
		{name: "favoriter, private", user: strangerID, public: false, favorited: true, read: false, list: true, write: false, favorite: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := collection(tt.public)
			assert.Equal(t, tt.read, CanReadCollection(tt.user, c), "read")
			assert.Equal(t, tt.list, CanListCollection(tt.user, c, tt.favorited), "list")
			assert.Equal(t, tt.write, CanWriteCollection(tt.user, c), "write")
			assert.Equal(t, tt.favorite, CanToggleFavorite(tt.user, c), "favorite")
			assert.Equal(t, tt.read, CanReadCard(tt.user, c), "read card")
			assert.Equal(t, tt.write, CanWriteCard(tt.user, c), "write card")
		})
	}
}

func TestCheckWriteCollection(t *testing.T) {
	assert.NoError(t, CheckWriteCollection(ownerID, collection(false)))

	// Private + stranger: looks missing, never "forbidden".
	err := CheckWriteCollection(strangerID, collection(false))
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NotErrorIs(t, err, apperror.ErrForbidden)

	// Public + stranger: visible, so the denial is explicit.
	assert.ErrorIs(t, CheckWriteCollection(strangerID, collection(true)), apperror.ErrForbidden)
	assert.ErrorIs(t, CheckAddCard(strangerID, collection(true)), apperror.ErrForbidden)
	assert.ErrorIs(t, CheckAddCard(strangerID, collection(false)), apperror.ErrNotFound)
}

func TestCheckCard(t *testing.T) {
	card := &model.Card{ID: 5, CollectionID: 10}

	assert.NoError(t, CheckReadCard(strangerID, card, collection(true)))
	assert.ErrorIs(t, CheckReadCard(strangerID, card, collection(false)), apperror.ErrNotFound)

	assert.NoError(t, CheckWriteCard(ownerID, card, collection(false)))
	assert.ErrorIs(t, CheckWriteCard(strangerID, card, collection(true)), apperror.ErrForbidden)
	assert.ErrorIs(t, CheckWriteCard(strangerID, card, collection(false)), apperror.ErrNotFound)
}
