package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreatePartnerTokenParams represents parameters for persisting an encrypted
// partner token
type CreatePartnerTokenParams struct {
	Ciphertext string
	IV         string
	AuthTag    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

const sqlCreatePartnerToken = `
INSERT INTO partner_tokens (ciphertext, iv, auth_tag, issued_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, ciphertext, iv, auth_tag, issued_at, expires_at, created_at
`

// CreatePartnerToken persists a new encrypted partner token. Refreshes always
// insert; existing rows are never updated.
func (s *Store) CreatePartnerToken(ctx context.Context, params CreatePartnerTokenParams) (PartnerTokenRecord, error) {
	var record PartnerTokenRecord
	err := s.db.GetContext(ctx, &record, sqlCreatePartnerToken,
		params.Ciphertext,
		params.IV,
		params.AuthTag,
		params.IssuedAt,
		params.ExpiresAt)
	if err != nil {
		return PartnerTokenRecord{}, fmt.Errorf("failed to create partner token: %w", err)
	}
	return record, nil
}

const sqlGetLatestPartnerToken = `
SELECT id, ciphertext, iv, auth_tag, issued_at, expires_at, created_at
FROM partner_tokens
ORDER BY created_at DESC
LIMIT 1
`

// GetLatestPartnerToken retrieves the newest persisted partner token
func (s *Store) GetLatestPartnerToken(ctx context.Context) (PartnerTokenRecord, error) {
	var record PartnerTokenRecord
	err := s.db.GetContext(ctx, &record, sqlGetLatestPartnerToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PartnerTokenRecord{}, ErrNotFound
		}
		return PartnerTokenRecord{}, fmt.Errorf("failed to get latest partner token: %w", err)
	}
	return record, nil
}

const sqlPrunePartnerTokens = `
DELETE FROM partner_tokens
WHERE id NOT IN (
    SELECT id FROM partner_tokens
    ORDER BY created_at DESC
    LIMIT $1
)
`

// PrunePartnerTokens deletes all but the newest keep rows
func (s *Store) PrunePartnerTokens(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx, sqlPrunePartnerTokens, keep)
	if err != nil {
		return fmt.Errorf("failed to prune partner tokens: %w", err)
	}
	return nil
}

const sqlCountPartnerTokens = `
SELECT COUNT(*)
FROM partner_tokens
`

// CountPartnerTokens counts persisted partner token rows
func (s *Store) CountPartnerTokens(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, sqlCountPartnerTokens)
	if err != nil {
		return 0, fmt.Errorf("failed to count partner tokens: %w", err)
	}
	return count, nil
}
