package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/repository"
)

// FavoriteDB implements repository.FavoriteRepository on the favorites
// table, whose primary key is the (user_id, collection_id) pair.
type FavoriteDB struct {
	q querier
}

var _ repository.FavoriteRepository = (*FavoriteDB)(nil)

// Add marks the collection as a favorite of the user. Adding an existing
// pair is a no-op.
func (f *FavoriteDB) Add(ctx context.Context, userID, collectionID int64) error {
	_, err := f.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites (user_id, collection_id) VALUES (?, ?)`,
		userID, collectionID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("collection", collectionID)
		}
		return fmt.Errorf("sqlite: adding favorite (%d, %d): %w", userID, collectionID, err)
	}
	return nil
}

// Remove deletes the pair. Removing a missing pair is a no-op.
func (f *FavoriteDB) Remove(ctx context.Context, userID, collectionID int64) error {
	_, err := f.q.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND collection_id = ?`,
		userID, collectionID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing favorite (%d, %d): %w", userID, collectionID, err)
	}
	return nil
}

func (f *FavoriteDB) Contains(ctx context.Context, userID, collectionID int64) (bool, error) {
	var exists bool
	err := f.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = ? AND collection_id = ?)`,
		userID, collectionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking favorite (%d, %d): %w", userID, collectionID, err)
	}
	return exists, nil
}

func (f *FavoriteDB) Count(ctx context.Context, collectionID int64) (int, error) {
	var n int
	err := f.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favorites WHERE collection_id = ?`, collectionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting favorites of %d: %w", collectionID, err)
	}
	return n, nil
}
