// Package repository declares the data-access contracts for every entity.
//
// Services depend on these interfaces only. The sqlite package provides the
// production implementation; tests provide in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/flashcards/internal/model"
)

// ListOptions limits list queries. A zero Limit means "no limit".
type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// CollectionRepository stores collections. Lookups that take a userID are
// scoped: they only return rows the user is allowed to see through that
// query, and report apperror.ErrNotFound for everything else.
type CollectionRepository interface {
	Create(ctx context.Context, c *model.Collection) error
	GetByID(ctx context.Context, id int64) (*model.Collection, error)
	// GetVisible returns the collection if it is public or owned by userID.
	GetVisible(ctx context.Context, id, userID int64) (*model.Collection, error)
	// ListOwnedOrFavorited returns the user's own and favorited collections.
	ListOwnedOrFavorited(ctx context.Context, userID int64, opts ListOptions) ([]model.Collection, error)
	// ListPublic returns public collections not owned by excludeOwnerID.
	ListPublic(ctx context.Context, excludeOwnerID int64, opts ListOptions) ([]model.Collection, error)
	Update(ctx context.Context, c *model.Collection) error
	Delete(ctx context.Context, id int64) error
}

type CardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	CreateBatch(ctx context.Context, cards []model.Card) error
	GetByID(ctx context.Context, id int64) (*model.Card, error)
	// ListVisible returns cards whose collection is public or owned by
	// userID. A non-zero collectionID narrows the result to that collection.
	ListVisible(ctx context.Context, userID, collectionID int64, opts ListOptions) ([]model.Card, error)
	ListByCollection(ctx context.Context, collectionID int64) ([]model.Card, error)
	Update(ctx context.Context, card *model.Card) error
	UpdateBatch(ctx context.Context, cards []model.Card) error
	Delete(ctx context.Context, id int64) error
	DeleteBatch(ctx context.Context, ids []int64) error
}

// FavoriteRepository models the favorites relation as a set of
// (user_id, collection_id) pairs.
type FavoriteRepository interface {
	Add(ctx context.Context, userID, collectionID int64) error
	Remove(ctx context.Context, userID, collectionID int64) error
	Contains(ctx context.Context, userID, collectionID int64) (bool, error)
	Count(ctx context.Context, collectionID int64) (int, error)
}

// TokenBlacklist remembers revoked refresh tokens until they expire.
type TokenBlacklist interface {
	Add(ctx context.Context, token *model.BlacklistedToken) error
	Contains(ctx context.Context, jti string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store groups the repositories and provides a transactional scope.
//
// WithinTx runs fn with a Store whose repositories share one transaction.
// If fn returns an error (or panics) every write made through the
// transactional Store is rolled back.
type Store interface {
	Users() UserRepository
	Collections() CollectionRepository
	Cards() CardRepository
	Favorites() FavoriteRepository
	Tokens() TokenBlacklist
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
