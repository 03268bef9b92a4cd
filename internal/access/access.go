// Package access holds the capability checks for collections and cards.
//
// Every function is pure: it looks only at the requesting user's ID and the
// target entity, so the rules can be tested without storage or HTTP.
// The service layer composes them; a "deny" from a Check* function comes
// back as the apperror the API should answer with.
//
//	read collection   public OR owner
//	list collection   owner OR favorited   (the "my collections" list)
//	write collection  owner only
//	favorite toggle   anyone who can read it
//	read card         parent public OR parent owner
//	write card        parent owner only
package access

import (
	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
)

// CanReadCollection reports whether userID may see the collection.
func CanReadCollection(userID int64, c *model.Collection) bool {
	return c.IsPublic || c.IsOwnedBy(userID)
}

// CanListCollection reports whether the collection belongs in the user's
// own collection list.
func CanListCollection(userID int64, c *model.Collection, favorited bool) bool {
	return c.IsOwnedBy(userID) || favorited
}

// CanWriteCollection reports whether userID may update or delete the
// collection, or add cards to it.
func CanWriteCollection(userID int64, c *model.Collection) bool {
	return c.IsOwnedBy(userID)
}

// CanToggleFavorite reports whether userID may favorite or unfavorite the
// collection. Anyone who can read a collection may favorite it.
func CanToggleFavorite(userID int64, c *model.Collection) bool {
	return CanReadCollection(userID, c)
}

// CanReadCard reports whether userID may see a card of the given parent.
func CanReadCard(userID int64, parent *model.Collection) bool {
	return CanReadCollection(userID, parent)
}

// CanWriteCard reports whether userID may create, change or delete a card
// in the given parent collection.
func CanWriteCard(userID int64, parent *model.Collection) bool {
	return CanWriteCollection(userID, parent)
}

// CheckReadCollection returns apperror.ErrNotFound when the collection is
// invisible to the user. Invisible collections look exactly like missing
// ones so their existence does not leak.
func CheckReadCollection(userID int64, c *model.Collection) error {
	if !CanReadCollection(userID, c) {
		return apperror.NotFound("collection", c.ID)
	}
	return nil
}

// CheckWriteCollection returns ErrNotFound for an invisible collection and
// ErrForbidden for a visible one the user does not own.
func CheckWriteCollection(userID int64, c *model.Collection) error {
	if err := CheckReadCollection(userID, c); err != nil {
		return err
	}
	if !CanWriteCollection(userID, c) {
		return apperror.Forbidden("you do not have permission to modify this collection")
	}
	return nil
}

// CheckAddCard is CheckWriteCollection with the card-specific message.
func CheckAddCard(userID int64, c *model.Collection) error {
	if err := CheckReadCollection(userID, c); err != nil {
		return err
	}
	if !CanWriteCard(userID, c) {
		return apperror.Forbidden("you do not have permission to add a card to this collection")
	}
	return nil
}

// CheckReadCard returns ErrNotFound (for the card) when its parent is
// invisible to the user.
func CheckReadCard(userID int64, card *model.Card, parent *model.Collection) error {
	if !CanReadCard(userID, parent) {
		return apperror.NotFound("card", card.ID)
	}
	return nil
}

// CheckWriteCard returns ErrNotFound for an invisible card and ErrForbidden
// for a visible card in someone else's collection.
func CheckWriteCard(userID int64, card *model.Card, parent *model.Collection) error {
	if err := CheckReadCard(userID, card, parent); err != nil {
		return err
	}
	if !CanWriteCard(userID, parent) {
		return apperror.Forbidden("you do not have permission to modify this card")
	}
	return nil
}
