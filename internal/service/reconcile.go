package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// CardPlan is the set of writes that turns a collection's current cards into
// the list a client submitted.
type CardPlan struct {
	Create    []model.Card
	Update    []model.Card
	Delete    []int64
	Unchanged int
}

// Empty reports whether applying the plan would touch the database.
func (p CardPlan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// PlanCards diffs the submitted card list against the existing cards of a
// collection.
//
// RULES:
//   - an entry without an id (or with id 0) becomes a new card
//   - an entry whose id matches an existing card updates that card; if the
//     same id appears twice the later entry wins
//   - an entry whose id does not belong to this collection is ignored
//   - every existing card not referenced by the submission is deleted
//
// Matched cards whose front and back are already equal are counted in
// Unchanged instead of Update, so submitting the current state plans no
// writes. PlanCards is pure: it never touches the store.
func PlanCards(collectionID int64, existing []model.Card, incoming []model.CardInput) CardPlan {
	byID := make(map[int64]model.Card, len(existing))
	for _, c := range existing {
		byID[c.ID] = c
	}

	var plan CardPlan
	kept := make(map[int64]model.Card, len(incoming))
	order := make([]int64, 0, len(incoming))

	for _, in := range incoming {
		if !in.HasID() {
			plan.Create = append(plan.Create, model.Card{
				CollectionID: collectionID,
				Front:        in.Front,
				Back:         in.Back,
			})
			continue
		}

		card, ok := byID[*in.ID]
		if !ok {
			continue
		}
		if _, seen := kept[card.ID]; !seen {
			order = append(order, card.ID)
		}
		card.Front, card.Back = in.Front, in.Back
		kept[card.ID] = card
	}

	for _, id := range order {
		card := kept[id]
		if prev := byID[id]; prev.Front == card.Front && prev.Back == card.Back {
			plan.Unchanged++
			continue
		}
		plan.Update = append(plan.Update, card)
	}

	for _, c := range existing {
		if _, ok := kept[c.ID]; !ok {
			plan.Delete = append(plan.Delete, c.ID)
		}
	}
	sort.Slice(plan.Delete, func(i, j int) bool { return plan.Delete[i] < plan.Delete[j] })

	return plan
}

// applyCardPlan writes a plan through the given (transactional) card
// repository. Deletes run first so a collection never briefly holds both the
// old and the new version of a card.
func applyCardPlan(ctx context.Context, cards repository.CardRepository, plan CardPlan) error {
	if err := cards.DeleteBatch(ctx, plan.Delete); err != nil {
		return fmt.Errorf("deleting cards: %w", err)
	}
	if err := cards.UpdateBatch(ctx, plan.Update); err != nil {
		return fmt.Errorf("updating cards: %w", err)
	}
	if err := cards.CreateBatch(ctx, plan.Create); err != nil {
		return fmt.Errorf("creating cards: %w", err)
	}
	return nil
}
