package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// TokenDB implements repository.TokenBlacklist. Times are stored as unix
// seconds so expiry comparisons happen in SQL.
type TokenDB struct {
	q querier
}

var _ repository.TokenBlacklist = (*TokenDB)(nil)

// Add blacklists a token id. A token that is already blacklisted yields
// apperror.ErrConflict.
func (t *TokenDB) Add(ctx context.Context, token *model.BlacklistedToken) error {
	if token.BlacklistedAt.IsZero() {
		token.BlacklistedAt = time.Now().UTC()
	}

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO token_blacklist (jti, user_id, expires_at, blacklisted_at)
		 VALUES (?, ?, ?, ?)`,
		token.JTI,
		token.UserID,
		token.ExpiresAt.Unix(),
		token.BlacklistedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("token", token.JTI)
		}
		return fmt.Errorf("sqlite: blacklisting token: %w", err)
	}
	return nil
}

func (t *TokenDB) Contains(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := t.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE jti = ?)`, jti,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking token blacklist: %w", err)
	}
	return exists, nil
}

// PurgeExpired drops entries for tokens that expired before now; an expired
// token is rejected on its own, so its blacklist row is no longer needed.
func (t *TokenDB) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := t.q.ExecContext(ctx,
		`DELETE FROM token_blacklist WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging token blacklist: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
