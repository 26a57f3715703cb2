package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mcoot/cardroom/internal/model"
)

func (s *Store) SaveToken(ctx context.Context, token *model.SessionToken) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO session_tokens
		(value, identity_id, issued_at, expires_at, revoked_at) VALUES (?, ?, ?, ?, ?)`),
		token.Value, string(token.IdentityID), toMillis(token.IssuedAt), toMillis(token.ExpiresAt),
		nullMillis(token.RevokedAt))
	return err
}

func (s *Store) GetToken(ctx context.Context, value string) (*model.SessionToken, error) {
	var (
		token               model.SessionToken
		issuedAt, expiresAt int64
		revokedAt           sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value, identity_id, issued_at, expires_at, revoked_at
		FROM session_tokens WHERE value = ?`), value).
		Scan(&token.Value, &token.IdentityID, &issuedAt, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	token.IssuedAt = fromMillis(issuedAt)
	token.ExpiresAt = fromMillis(expiresAt)
	if revokedAt.Valid {
		at := fromMillis(revokedAt.Int64)
		token.RevokedAt = &at
	}
	return &token, nil
}

func (s *Store) RevokeToken(ctx context.Context, value string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE session_tokens SET revoked_at = ?
		WHERE value = ? AND revoked_at IS NULL`), toMillis(at), value)
	return err
}

func (s *Store) RevokeTokensForIdentity(ctx context.Context, id model.IdentityID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE session_tokens SET revoked_at = ?
		WHERE identity_id = ? AND revoked_at IS NULL`), toMillis(at), string(id))
	return err
}

func (s *Store) DeleteToken(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM session_tokens WHERE value = ?`), value)
	return err
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM session_tokens WHERE expires_at <= ?`), toMillis(now))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}
