package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/flashcards/internal/access"
	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// FavoriteStatus is the outcome of a favorite toggle.
type FavoriteStatus string

const (
	Favorited   FavoriteStatus = "favorited"
	Unfavorited FavoriteStatus = "unfavorited"
)

// CollectionInput carries the writable fields of a collection.
//
// Nil pointers mean "not sent". Description and Cards need an extra flag
// because null/empty is itself a meaningful value: a description sent as
// null clears it, and cards_data sent as [] deletes every card.
type CollectionInput struct {
	Title          *string
	Description    *string
	DescriptionSet bool
	IsPublic       *bool
	Cards          []model.CardInput
	CardsSet       bool
}

// CollectionService implements collections, their nested cards and the
// favorites relation.
type CollectionService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewCollectionService(store repository.Store, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		store:  store,
		logger: logger,
	}
}

// List returns the collections the user owns or has favorited.
func (s *CollectionService) List(ctx context.Context, userID int64, limit, offset int) ([]model.CollectionDetail, error) {
	limit, offset = clampPage(limit, offset)
	cols, err := s.store.Collections().ListOwnedOrFavorited(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return s.details(ctx, s.store, userID, cols)
}

// ListPublic returns other users' public collections.
func (s *CollectionService) ListPublic(ctx context.Context, userID int64, limit, offset int) ([]model.CollectionDetail, error) {
	limit, offset = clampPage(limit, offset)
	cols, err := s.store.Collections().ListPublic(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing public collections: %w", err)
	}
	return s.details(ctx, s.store, userID, cols)
}

// Get returns a collection the user can see. Private collections of other
// users are reported as not found.
func (s *CollectionService) Get(ctx context.Context, userID, id int64) (*model.CollectionDetail, error) {
	col, err := s.store.Collections().GetVisible(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, s.store, userID, *col)
}

// Create stores a new collection owned by the user together with any
// nested cards. Either everything is written or nothing is.
func (s *CollectionService) Create(ctx context.Context, userID int64, in CollectionInput) (*model.CollectionDetail, error) {
	errs := fieldErrors{}
	validateTitle(errs, in.Title, true)
	validateCardInputs(errs, in.Cards)
	if err := apperror.InvalidFields(errs); err != nil {
		return nil, err
	}

	col := model.Collection{
		OwnerID:     userID,
		Title:       strings.TrimSpace(*in.Title),
		Description: in.Description,
	}
	if in.IsPublic != nil {
		col.IsPublic = *in.IsPublic
	}

	var out *model.CollectionDetail
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Collections().Create(ctx, &col); err != nil {
			return err
		}

		cards := make([]model.Card, 0, len(in.Cards))
		for _, c := range in.Cards {
			cards = append(cards, model.Card{CollectionID: col.ID, Front: c.Front, Back: c.Back})
		}
		if err := tx.Cards().CreateBatch(ctx, cards); err != nil {
			return fmt.Errorf("creating cards: %w", err)
		}

		var err error
		out, err = s.detail(ctx, tx, userID, col)
		return err
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	s.logger.Info("collection created",
		"collection_id", out.ID,
		"owner_id", userID,
		"cards", len(out.Cards),
	)
	return out, nil
}

// Update changes a collection the user owns and, when cards were sent,
// reconciles its cards with the submitted list.
//
// partial=false is a full replacement (PUT): the title is required and an
// absent card list is treated as empty. partial=true (PATCH) only touches
// what was sent.
//
// The scalar update and the card reconciliation share one transaction; if
// any card write fails the collection is left exactly as it was.
func (s *CollectionService) Update(ctx context.Context, userID, id int64, in CollectionInput, partial bool) (*model.CollectionDetail, error) {
	errs := fieldErrors{}
	validateTitle(errs, in.Title, !partial)
	validateCardInputs(errs, in.Cards)
	if err := apperror.InvalidFields(errs); err != nil {
		return nil, err
	}
	if !partial && !in.CardsSet {
		in.Cards, in.CardsSet = nil, true
	}

	var (
		out  *model.CollectionDetail
		plan CardPlan
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		col, err := s.writable(ctx, tx, userID, id)
		if err != nil {
			return err
		}

		if in.Title != nil {
			col.Title = strings.TrimSpace(*in.Title)
		}
		if in.DescriptionSet {
			col.Description = in.Description
		}
		if in.IsPublic != nil {
			col.IsPublic = *in.IsPublic
		}
		if err := tx.Collections().Update(ctx, col); err != nil {
			return err
		}

		if in.CardsSet {
			existing, err := tx.Cards().ListByCollection(ctx, col.ID)
			if err != nil {
				return fmt.Errorf("loading cards: %w", err)
			}
			plan = PlanCards(col.ID, existing, in.Cards)
			if err := applyCardPlan(ctx, tx.Cards(), plan); err != nil {
				return err
			}
		}

		out, err = s.detail(ctx, tx, userID, *col)
		return err
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("updating collection %d: %w", id, err)
	}

	s.logger.Info("collection updated",
		"collection_id", id,
		"partial", partial,
		"cards_created", len(plan.Create),
		"cards_updated", len(plan.Update),
		"cards_deleted", len(plan.Delete),
	)
	return out, nil
}

// Delete removes a collection the user owns. Its cards and favorites go
// with it.
func (s *CollectionService) Delete(ctx context.Context, userID, id int64) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		col, err := s.writable(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		return tx.Collections().Delete(ctx, col.ID)
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return fmt.Errorf("deleting collection %d: %w", id, err)
	}

	s.logger.Info("collection deleted", "collection_id", id, "owner_id", userID)
	return nil
}

// ToggleFavorite adds the collection to the user's favorites, or removes it
// if it is already there. Owners may favorite their own collections.
func (s *CollectionService) ToggleFavorite(ctx context.Context, userID, id int64) (FavoriteStatus, error) {
	var status FavoriteStatus
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		col, err := tx.Collections().GetVisible(ctx, id, userID)
		if err != nil {
			return err
		}
		if !access.CanToggleFavorite(userID, col) {
			return apperror.NotFound("collection", id)
		}

		favorited, err := tx.Favorites().Contains(ctx, userID, col.ID)
		if err != nil {
			return err
		}
		if favorited {
			status = Unfavorited
			return tx.Favorites().Remove(ctx, userID, col.ID)
		}
		status = Favorited
		return tx.Favorites().Add(ctx, userID, col.ID)
	})
	if err != nil {
		if isDomainError(err) {
			return "", err
		}
		return "", fmt.Errorf("toggling favorite on %d: %w", id, err)
	}

	s.logger.Info("favorite toggled", "collection_id", id, "user_id", userID, "status", status)
	return status, nil
}

// writable loads a collection and checks that userID may modify it.
func (s *CollectionService) writable(ctx context.Context, store repository.Store, userID, id int64) (*model.Collection, error) {
	col, err := store.Collections().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.CheckWriteCollection(userID, col); err != nil {
		return nil, err
	}
	return col, nil
}

// detail decorates a collection with its cards and the favorite fields as
// seen by userID.
func (s *CollectionService) detail(ctx context.Context, store repository.Store, userID int64, col model.Collection) (*model.CollectionDetail, error) {
	cards, err := store.Cards().ListByCollection(ctx, col.ID)
	if err != nil {
		return nil, fmt.Errorf("loading cards: %w", err)
	}
	favorited, err := store.Favorites().Contains(ctx, userID, col.ID)
	if err != nil {
		return nil, fmt.Errorf("loading favorite: %w", err)
	}
	count, err := store.Favorites().Count(ctx, col.ID)
	if err != nil {
		return nil, fmt.Errorf("counting favorites: %w", err)
	}
	if cards == nil {
		cards = []model.Card{}
	}
	return &model.CollectionDetail{
		Collection:     col,
		Cards:          cards,
		IsFavorited:    favorited,
		FavoritesCount: count,
	}, nil
}

func (s *CollectionService) details(ctx context.Context, store repository.Store, userID int64, cols []model.Collection) ([]model.CollectionDetail, error) {
	out := make([]model.CollectionDetail, 0, len(cols))
	for _, col := range cols {
		d, err := s.detail(ctx, store, userID, col)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// isDomainError reports whether err already carries an apperror sentinel,
// in which case it is returned as-is rather than wrapped again.
func isDomainError(err error) bool {
	return errors.Is(err, apperror.ErrNotFound) ||
		errors.Is(err, apperror.ErrValidation) ||
		errors.Is(err, apperror.ErrConflict) ||
		errors.Is(err, apperror.ErrForbidden) ||
		errors.Is(err, apperror.ErrUnauthorized)
}
