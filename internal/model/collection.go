package model

// Collection is a named, owned group of cards.
//
// OwnerEmail is not a column of its own; repositories fill it from the
// users table so the API can render the owner without a second lookup.
type Collection struct {
	ID          int64   `db:"id"`
	OwnerID     int64   `db:"owner_id"`
	OwnerEmail  string  `db:"-"`
	Title       string  `db:"title"`
	Description *string `db:"description"`
	IsPublic    bool    `db:"is_public"`
}

// CollectionDetail is a collection together with its cards and the
// favorite information computed for one requesting user.
type CollectionDetail struct {
	Collection
	Cards          []Card
	IsFavorited    bool
	FavoritesCount int
}

// IsOwnedBy reports whether userID owns the collection.
func (c *Collection) IsOwnedBy(userID int64) bool {
	return c.OwnerID == userID
}
