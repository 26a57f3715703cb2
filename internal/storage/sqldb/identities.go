package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mcoot/cardroom/internal/model"
)

const identityColumns = `id, provider, role, display_name, password_algorithm, password_hash, subject, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (*model.Identity, error) {
	var (
		identity             model.Identity
		algorithm, hash, sub sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&identity.ID, &identity.Provider, &identity.Role, &identity.DisplayName,
		&algorithm, &hash, &sub, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}

	if hash.Valid {
		identity.Password = &model.PasswordCredential{
			Algorithm: model.PasswordAlgorithm(algorithm.String),
			Hash:      hash.String,
		}
	}
	identity.Subject = sub.String
	identity.CreatedAt = fromMillis(createdAt)
	identity.UpdatedAt = fromMillis(updatedAt)
	return &identity, nil
}

func passwordColumns(identity *model.Identity) (sql.NullString, sql.NullString) {
	if !identity.HasPassword() {
		return sql.NullString{}, sql.NullString{}
	}
	return nullString(string(identity.Password.Algorithm)), nullString(identity.Password.Hash)
}

func (s *Store) CreateIdentity(ctx context.Context, identity *model.Identity) error {
	algorithm, hash := passwordColumns(identity)
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO identities (`+identityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		string(identity.ID), string(identity.Provider), string(identity.Role), identity.DisplayName,
		algorithm, hash, nullString(identity.Subject),
		toMillis(identity.CreatedAt), toMillis(identity.UpdatedAt))
	if isUniqueViolation(err) {
		return model.ErrDuplicateIdentity
	}
	return err
}

func (s *Store) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+identityColumns+` FROM identities WHERE id = ?`), string(id))
	return scanIdentity(row)
}

func (s *Store) GetGuestIdentityByName(ctx context.Context, displayName string) (*model.Identity, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+identityColumns+` FROM identities
		WHERE provider = ? AND display_name = ?`), string(model.ProviderGuest), displayName)
	return scanIdentity(row)
}

func (s *Store) GetIdentityBySubject(ctx context.Context, provider model.Provider, subject string) (*model.Identity, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+identityColumns+` FROM identities
		WHERE provider = ? AND subject = ?`), string(provider), subject)
	return scanIdentity(row)
}

func (s *Store) UpdateIdentity(ctx context.Context, identity *model.Identity) error {
	algorithm, hash := passwordColumns(identity)
	result, err := s.db.ExecContext(ctx, s.rebind(`UPDATE identities
		SET role = ?, display_name = ?, password_algorithm = ?, password_hash = ?, updated_at = ?
		WHERE id = ?`),
		string(identity.Role), identity.DisplayName, algorithm, hash, toMillis(identity.UpdatedAt),
		string(identity.ID))
	if isUniqueViolation(err) {
		return model.ErrDuplicateIdentity
	}
	if err != nil {
		return err
	}
	return expectOneRow(result, model.ErrIdentityNotFound)
}

// DeleteIdentity relies on ON DELETE CASCADE for tokens, hosted rooms and
// memberships.
func (s *Store) DeleteIdentity(ctx context.Context, id model.IdentityID) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM identities WHERE id = ?`), string(id))
	if err != nil {
		return err
	}
	return expectOneRow(result, model.ErrIdentityNotFound)
}

func (s *Store) ListIdentities(ctx context.Context, page model.Page) ([]*model.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities ORDER BY created_at, id `
	args := []any{}
	if page.Limit > 0 {
		query += `LIMIT ? `
		args = append(args, page.Limit)
	} else {
		query += s.noLimit() + ` `
	}
	query += `OFFSET ?`
	args = append(args, max(page.Offset, 0))

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	identities := []*model.Identity{}
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}

func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
