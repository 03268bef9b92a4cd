package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/flashcards/internal/access"
	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// CardInput carries the writable fields of a standalone card. Nil means
// "not sent"; a full update requires Front and Back.
type CardInput struct {
	CollectionID *int64
	Front        *string
	Back         *string
}

// CardService manages cards addressed individually through /api/cards/.
type CardService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewCardService(store repository.Store, logger *slog.Logger) *CardService {
	return &CardService{
		store:  store,
		logger: logger,
	}
}

// List returns every card the user can see. A non-zero collectionID
// narrows the result to that collection.
func (s *CardService) List(ctx context.Context, userID, collectionID int64, limit, offset int) ([]model.Card, error) {
	limit, offset = clampPage(limit, offset)
	cards, err := s.store.Cards().ListVisible(ctx, userID, collectionID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	if cards == nil {
		cards = []model.Card{}
	}
	return cards, nil
}

// Get returns a card whose collection is visible to the user.
func (s *CardService) Get(ctx context.Context, userID, id int64) (*model.Card, error) {
	card, _, err := s.load(ctx, s.store, userID, id)
	if err != nil {
		return nil, err
	}
	return card, nil
}

// Create adds a card to a collection the user owns.
func (s *CardService) Create(ctx context.Context, userID int64, in CardInput) (*model.Card, error) {
	errs := fieldErrors{}
	if in.CollectionID == nil {
		errs.add("collection", "this field is required")
	}
	requireCardText(errs, "front", in.Front)
	requireCardText(errs, "back", in.Back)
	if err := apperror.InvalidFields(errs); err != nil {
		return nil, err
	}

	card := model.Card{CollectionID: *in.CollectionID, Front: *in.Front, Back: *in.Back}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := s.checkTarget(ctx, tx, userID, card.CollectionID); err != nil {
			return err
		}
		return tx.Cards().Create(ctx, &card)
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("creating card: %w", err)
	}

	s.logger.Info("card created", "card_id", card.ID, "collection_id", card.CollectionID)
	return &card, nil
}

// Update changes a card in a collection the user owns. Moving it to another
// collection requires owning that collection too.
func (s *CardService) Update(ctx context.Context, userID, id int64, in CardInput, partial bool) (*model.Card, error) {
	errs := fieldErrors{}
	if partial {
		if in.Front != nil {
			validateCardText(errs, "front", *in.Front)
		}
		if in.Back != nil {
			validateCardText(errs, "back", *in.Back)
		}
	} else {
		requireCardText(errs, "front", in.Front)
		requireCardText(errs, "back", in.Back)
	}
	if err := apperror.InvalidFields(errs); err != nil {
		return nil, err
	}

	var card *model.Card
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var (
			parent *model.Collection
			err    error
		)
		card, parent, err = s.load(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := access.CheckWriteCard(userID, card, parent); err != nil {
			return err
		}

		if in.CollectionID != nil && *in.CollectionID != card.CollectionID {
			if err := s.checkTarget(ctx, tx, userID, *in.CollectionID); err != nil {
				return err
			}
			card.CollectionID = *in.CollectionID
		}
		if in.Front != nil {
			card.Front = *in.Front
		}
		if in.Back != nil {
			card.Back = *in.Back
		}
		return tx.Cards().Update(ctx, card)
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("updating card %d: %w", id, err)
	}

	s.logger.Info("card updated", "card_id", card.ID, "collection_id", card.CollectionID)
	return card, nil
}

// Delete removes a card from a collection the user owns.
func (s *CardService) Delete(ctx context.Context, userID, id int64) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		card, parent, err := s.load(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := access.CheckWriteCard(userID, card, parent); err != nil {
			return err
		}
		return tx.Cards().Delete(ctx, card.ID)
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return fmt.Errorf("deleting card %d: %w", id, err)
	}

	s.logger.Info("card deleted", "card_id", id)
	return nil
}

// load fetches a card and its parent collection, reporting a card in an
// invisible collection as not found.
func (s *CardService) load(ctx context.Context, store repository.Store, userID, id int64) (*model.Card, *model.Collection, error) {
	card, err := store.Cards().GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	parent, err := store.Collections().GetByID(ctx, card.CollectionID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading collection of card %d: %w", id, err)
	}
	if err := access.CheckReadCard(userID, card, parent); err != nil {
		return nil, nil, err
	}
	return card, parent, nil
}

// checkTarget verifies the user may put a card into collectionID. A
// collection the user cannot see is an invalid choice (400) rather than a
// 404, since it is a field of the request and not the addressed resource.
func (s *CardService) checkTarget(ctx context.Context, store repository.Store, userID, collectionID int64) error {
	target, err := store.Collections().GetVisible(ctx, collectionID, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.ValidationFailed("collection", fmt.Sprintf("invalid pk %q - object does not exist", fmt.Sprint(collectionID)))
	}
	if err != nil {
		return err
	}
	return access.CheckAddCard(userID, target)
}

func requireCardText(errs fieldErrors, field string, value *string) {
	if value == nil {
		errs.add(field, "this field is required")
		return
	}
	validateCardText(errs, field, *value)
}
