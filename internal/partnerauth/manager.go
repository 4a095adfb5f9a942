package partnerauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"partner-server/internal/cache"
	"partner-server/internal/gateway"
	"partner-server/internal/observability"
	"partner-server/internal/store"
	"partner-server/internal/vault"
)

const (
	cacheKey = "partner-token"

	// Tokens are valid for 24h at the gateway; refresh an hour early so a
	// token never expires mid-request.
	cacheTTL = 23 * time.Hour

	// keptTokens bounds the partner_tokens table. Older rows only exist for
	// audit, the newest row is the only one ever read back.
	keptTokens = 5
)

// TokenStore persists encrypted partner tokens.
type TokenStore interface {
	CreatePartnerToken(ctx context.Context, params store.CreatePartnerTokenParams) (store.PartnerTokenRecord, error)
	GetLatestPartnerToken(ctx context.Context) (store.PartnerTokenRecord, error)
	PrunePartnerTokens(ctx context.Context, keep int) error
}

// LoginClient exchanges partner credentials for a bearer token.
type LoginClient interface {
	Login(ctx context.Context, email, password string) (gateway.LoginResult, error)
}

// Vault seals and opens persisted tokens.
type Vault interface {
	Encrypt(plaintext string) (vault.Record, error)
	Decrypt(record vault.Record) (string, error)
}

// Manager owns the partner token lifecycle: memory cache, encrypted
// persistence, and credential login as the source of truth.
type Manager struct {
	store    TokenStore
	client   LoginClient
	vault    Vault
	tokens   cache.TokenCache
	logger   *observability.Logger
	email    string
	password string
}

// NewManager creates a partner token manager.
func NewManager(s TokenStore, client LoginClient, v Vault, tokens cache.TokenCache, logger *observability.Logger, email, password string) *Manager {
	return &Manager{
		store:    s,
		client:   client,
		vault:    v,
		tokens:   tokens,
		logger:   logger,
		email:    email,
		password: password,
	}
}

// GetToken returns a usable partner bearer token, checking the memory cache,
// then the newest persisted row, then logging in with the static credentials.
// Concurrent callers may race into duplicate logins; every path is idempotent
// so the last writer simply becomes the newest row.
func (m *Manager) GetToken(ctx context.Context) (string, error) {
	if token, ok := m.tokens.Get(cacheKey); ok {
		return token, nil
	}

	if token, ok := m.tokenFromStore(ctx); ok {
		return token, nil
	}

	return m.login(ctx)
}

// Invalidate drops the cached token so the next GetToken re-resolves it. Used
// when the gateway rejects a token before its expected expiry.
func (m *Manager) Invalidate() {
	m.tokens.Delete(cacheKey)
}

func (m *Manager) tokenFromStore(ctx context.Context) (string, bool) {
	record, err := m.store.GetLatestPartnerToken(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Error(ctx, "failed to load persisted partner token", err)
		}
		return "", false
	}

	if time.Now().After(record.ExpiresAt.Add(-time.Hour)) {
		return "", false
	}

	token, err := m.vault.Decrypt(vault.Record{
		Ciphertext: record.Ciphertext,
		IV:         record.IV,
		AuthTag:    record.AuthTag,
	})
	if err != nil {
		// A row that fails authentication is unusable; fall back to a
		// fresh login rather than surfacing the corruption to callers.
		m.logger.Error(ctx, "failed to decrypt persisted partner token", err)
		return "", false
	}

	m.cacheToken(token, record.ExpiresAt)
	return token, true
}

func (m *Manager) login(ctx context.Context) (string, error) {
	result, err := m.client.Login(ctx, m.email, m.password)
	if err != nil {
		return "", fmt.Errorf("failed to obtain partner token: %w", err)
	}

	sealed, err := m.vault.Encrypt(result.Token)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt partner token: %w", err)
	}

	if _, err := m.store.CreatePartnerToken(ctx, store.CreatePartnerTokenParams{
		Ciphertext: sealed.Ciphertext,
		IV:         sealed.IV,
		AuthTag:    sealed.AuthTag,
		IssuedAt:   result.IssuedAt,
		ExpiresAt:  result.ExpiresAt,
	}); err != nil {
		return "", fmt.Errorf("failed to persist partner token: %w", err)
	}

	if err := m.store.PrunePartnerTokens(ctx, keptTokens); err != nil {
		// Pruning is housekeeping; a failure must not block the caller.
		m.logger.Error(ctx, "failed to prune partner tokens", err)
	}

	m.cacheToken(result.Token, result.ExpiresAt)
	m.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "expires_at", Value: result.ExpiresAt},
	), "refreshed partner token")

	return result.Token, nil
}

func (m *Manager) cacheToken(token string, expiresAt time.Time) {
	cacheUntil := time.Now().Add(cacheTTL)
	if expiresAt.Before(cacheUntil) {
		cacheUntil = expiresAt
	}
	m.tokens.Set(cacheKey, token, cacheUntil)
}
