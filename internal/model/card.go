package model

// Card is a front/back text pair that belongs to exactly one collection.
type Card struct {
	ID           int64  `json:"id"         db:"id"`
	CollectionID int64  `json:"collection" db:"collection_id"`
	Front        string `json:"front"      db:"front"`
	Back         string `json:"back"       db:"back"`
}

// CardInput describes one entry of an incoming card list. A nil or zero ID
// asks for a new card; a non-zero ID refers to an existing card.
type CardInput struct {
	ID    *int64 `json:"id,omitempty"`
	Front string `json:"front"`
	Back  string `json:"back"`
}

// HasID reports whether the input refers to an existing card.
func (in CardInput) HasID() bool {
	return in.ID != nil && *in.ID != 0
}
