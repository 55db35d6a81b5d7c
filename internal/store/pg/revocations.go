package pg

import (
	"context"
	"database/sql"
	"time"
)

type revocationStore struct{ db *sql.DB }

// Insert records the token in the ledger. The token string is the primary
// key; a second revocation of the same token hits the conflict clause and
// is swallowed.
func (s *revocationStore) Insert(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		insert into revoked_tokens (token, expires_at)
		values ($1, $2)
		on conflict (token) do nothing
	`, token, expiresAt)
	return err
}

func (s *revocationStore) Exists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (select 1 from revoked_tokens where token = $1)
	`, token).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *revocationStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from revoked_tokens where expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
