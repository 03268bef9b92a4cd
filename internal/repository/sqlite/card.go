package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// CardDB implements repository.CardRepository.
//
// The batch methods issue one statement per card. Call them inside
// Store.WithinTx when the whole batch must succeed or fail together.
type CardDB struct {
	q querier
}

var _ repository.CardRepository = (*CardDB)(nil)

func (c *CardDB) Create(ctx context.Context, card *model.Card) error {
	result, err := c.q.ExecContext(ctx,
		`INSERT INTO cards (collection_id, front, back) VALUES (?, ?, ?)`,
		card.CollectionID, card.Front, card.Back,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("collection", "collection does not exist")
		}
		return fmt.Errorf("sqlite: creating card: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading card id: %w", err)
	}
	card.ID = id
	return nil
}

// CreateBatch inserts every card in order and writes the generated IDs back
// into the slice.
func (c *CardDB) CreateBatch(ctx context.Context, cards []model.Card) error {
	for i := range cards {
		if err := c.Create(ctx, &cards[i]); err != nil {
			return fmt.Errorf("creating card %d of %d: %w", i+1, len(cards), err)
		}
	}
	return nil
}

func (c *CardDB) GetByID(ctx context.Context, id int64) (*model.Card, error) {
	var card model.Card
	err := c.q.QueryRowContext(ctx,
		`SELECT id, collection_id, front, back FROM cards WHERE id = ?`, id,
	).Scan(&card.ID, &card.CollectionID, &card.Front, &card.Back)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("card", id)
		}
		return nil, fmt.Errorf("sqlite: getting card %d: %w", id, err)
	}
	return &card, nil
}

// ListVisible returns cards of public collections and of collections owned
// by userID. collectionID == 0 means every visible collection.
func (c *CardDB) ListVisible(ctx context.Context, userID, collectionID int64, opts repository.ListOptions) ([]model.Card, error) {
	limit, offset := limitOffset(opts)
	return c.list(ctx,
		`SELECT k.id, k.collection_id, k.front, k.back
		 FROM cards k
		 JOIN collections c ON c.id = k.collection_id
		 WHERE (c.is_public = 1 OR c.owner_id = ?)
		   AND (? = 0 OR k.collection_id = ?)
		 ORDER BY k.id
		 LIMIT ? OFFSET ?`,
		userID, collectionID, collectionID, limit, offset,
	)
}

func (c *CardDB) ListByCollection(ctx context.Context, collectionID int64) ([]model.Card, error) {
	return c.list(ctx,
		`SELECT id, collection_id, front, back FROM cards WHERE collection_id = ? ORDER BY id`,
		collectionID,
	)
}

// Update overwrites front, back and the owning collection.
func (c *CardDB) Update(ctx context.Context, card *model.Card) error {
	result, err := c.q.ExecContext(ctx,
		`UPDATE cards SET collection_id = ?, front = ?, back = ? WHERE id = ?`,
		card.CollectionID, card.Front, card.Back, card.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("collection", "collection does not exist")
		}
		return fmt.Errorf("sqlite: updating card %d: %w", card.ID, err)
	}
	return expectAffected(result, "card", card.ID)
}

func (c *CardDB) UpdateBatch(ctx context.Context, cards []model.Card) error {
	for i := range cards {
		if err := c.Update(ctx, &cards[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *CardDB) Delete(ctx context.Context, id int64) error {
	result, err := c.q.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting card %d: %w", id, err)
	}
	return expectAffected(result, "card", id)
}

// DeleteBatch removes the given cards in a single statement. IDs that do
// not exist are ignored.
func (c *CardDB) DeleteBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := c.q.ExecContext(ctx,
		`DELETE FROM cards WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %d cards: %w", len(ids), err)
	}
	return nil
}

func (c *CardDB) list(ctx context.Context, query string, args ...any) ([]model.Card, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cards: %w", err)
	}
	defer rows.Close()

	cards := make([]model.Card, 0)
	for rows.Next() {
		var card model.Card
		if err := rows.Scan(&card.ID, &card.CollectionID, &card.Front, &card.Back); err != nil {
			return nil, fmt.Errorf("sqlite: scanning card row: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cards: %w", err)
	}

	return cards, nil
}
