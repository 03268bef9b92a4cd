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

// CollectionDB implements repository.CollectionRepository.
type CollectionDB struct {
	q querier
}

var _ repository.CollectionRepository = (*CollectionDB)(nil)

// Every read joins users so OwnerEmail is populated.
const collectionSelect = `SELECT c.id, c.owner_id, u.email, c.title, c.description, c.is_public
	FROM collections c
	JOIN users u ON u.id = c.owner_id`

// Create inserts a collection and fills in its ID.
// The owner must exist; a dangling owner_id is a validation error.
func (c *CollectionDB) Create(ctx context.Context, col *model.Collection) error {
	result, err := c.q.ExecContext(ctx,
		`INSERT INTO collections (owner_id, title, description, is_public)
		 VALUES (?, ?, ?, ?)`,
		col.OwnerID,
		col.Title,
		nullString(col.Description),
		col.IsPublic,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("owner", "owner does not exist")
		}
		return fmt.Errorf("sqlite: creating collection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading collection id: %w", err)
	}
	col.ID = id

	if col.OwnerEmail == "" {
		if err := c.q.QueryRowContext(ctx,
			`SELECT email FROM users WHERE id = ?`, col.OwnerID,
		).Scan(&col.OwnerEmail); err != nil {
			return fmt.Errorf("sqlite: reading owner of collection %d: %w", id, err)
		}
	}

	return nil
}

// GetByID returns any collection regardless of visibility.
func (c *CollectionDB) GetByID(ctx context.Context, id int64) (*model.Collection, error) {
	row := c.q.QueryRowContext(ctx, collectionSelect+` WHERE c.id = ?`, id)
	return scanCollectionRow(row, id)
}

// GetVisible returns the collection only if it is public or owned by userID.
// Anything else is reported as not found so existence is not leaked.
func (c *CollectionDB) GetVisible(ctx context.Context, id, userID int64) (*model.Collection, error) {
	row := c.q.QueryRowContext(ctx,
		collectionSelect+` WHERE c.id = ? AND (c.is_public = 1 OR c.owner_id = ?)`,
		id, userID,
	)
	return scanCollectionRow(row, id)
}

// ListOwnedOrFavorited returns collections owned by or favorited by userID,
// each at most once, ordered by ID.
func (c *CollectionDB) ListOwnedOrFavorited(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.Collection, error) {
	limit, offset := limitOffset(opts)
	return c.list(ctx,
		collectionSelect+`
		 WHERE c.owner_id = ?
		    OR EXISTS (SELECT 1 FROM favorites f WHERE f.collection_id = c.id AND f.user_id = ?)
		 ORDER BY c.id
		 LIMIT ? OFFSET ?`,
		userID, userID, limit, offset,
	)
}

// ListPublic returns public collections whose owner is not excludeOwnerID.
func (c *CollectionDB) ListPublic(ctx context.Context, excludeOwnerID int64, opts repository.ListOptions) ([]model.Collection, error) {
	limit, offset := limitOffset(opts)
	return c.list(ctx,
		collectionSelect+`
		 WHERE c.is_public = 1 AND c.owner_id <> ?
		 ORDER BY c.id
		 LIMIT ? OFFSET ?`,
		excludeOwnerID, limit, offset,
	)
}

// Update overwrites title, description and the public flag.
func (c *CollectionDB) Update(ctx context.Context, col *model.Collection) error {
	result, err := c.q.ExecContext(ctx,
		`UPDATE collections SET title = ?, description = ?, is_public = ? WHERE id = ?`,
		col.Title,
		nullString(col.Description),
		col.IsPublic,
		col.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating collection %d: %w", col.ID, err)
	}
	return expectAffected(result, "collection", col.ID)
}

// Delete removes the collection; its cards and favorites cascade.
func (c *CollectionDB) Delete(ctx context.Context, id int64) error {
	result, err := c.q.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting collection %d: %w", id, err)
	}
	return expectAffected(result, "collection", id)
}

func (c *CollectionDB) list(ctx context.Context, query string, args ...any) ([]model.Collection, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing collections: %w", err)
	}
	defer rows.Close()

	collections := make([]model.Collection, 0)
	for rows.Next() {
		var (
			col  model.Collection
			desc sql.NullString
		)
		if err := rows.Scan(&col.ID, &col.OwnerID, &col.OwnerEmail, &col.Title, &desc, &col.IsPublic); err != nil {
			return nil, fmt.Errorf("sqlite: scanning collection row: %w", err)
		}
		col.Description = stringPtr(desc)
		collections = append(collections, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating collections: %w", err)
	}

	return collections, nil
}

func scanCollectionRow(row *sql.Row, id int64) (*model.Collection, error) {
	var (
		col  model.Collection
		desc sql.NullString
	)
	err := row.Scan(&col.ID, &col.OwnerID, &col.OwnerEmail, &col.Title, &desc, &col.IsPublic)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("collection", id)
		}
		return nil, fmt.Errorf("sqlite: getting collection %d: %w", id, err)
	}
	col.Description = stringPtr(desc)
	return &col, nil
}

func expectAffected(result sql.Result, resource string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
