package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Anchor/internal/core/auth"
)

// CredentialRepository implements auth.CredentialStore on PostgreSQL for
// server-side deployments of the gateway. One row per DID; Load returns the
// most recently updated session, which for the single-account gateway is
// the only one.
type CredentialRepository struct {
	db *sql.DB
}

var _ auth.CredentialStore = (*CredentialRepository)(nil)

// NewCredentialRepository creates a Postgres-backed credential store.
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Load returns the persisted credentials, or (nil, nil) when none exist.
func (r *CredentialRepository) Load(ctx context.Context) (*auth.Credentials, error) {
	query := `
		SELECT did, handle, pds_url, access_token, refresh_token, issued_at, expires_at
		FROM credentials
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var creds auth.Credentials
	err := r.db.QueryRowContext(ctx, query).Scan(
		&creds.DID,
		&creds.Handle,
		&creds.PDSURL,
		&creds.AccessToken,
		&creds.RefreshToken,
		&creds.IssuedAt,
		&creds.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return &creds, nil
}

// Save upserts the credentials keyed by DID. Last write wins.
func (r *CredentialRepository) Save(ctx context.Context, creds *auth.Credentials) error {
	if creds == nil {
		return fmt.Errorf("credentials are required")
	}
	if creds.DID == "" {
		return fmt.Errorf("credentials missing DID")
	}

	query := `
		INSERT INTO credentials (
			did, handle, pds_url, access_token, refresh_token,
			issued_at, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (did) DO UPDATE SET
			handle = EXCLUDED.handle,
			pds_url = EXCLUDED.pds_url,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		creds.DID,
		creds.Handle,
		creds.PDSURL,
		creds.AccessToken,
		creds.RefreshToken,
		creds.IssuedAt,
		creds.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	return nil
}

// Clear removes all persisted credentials. Idempotent.
func (r *CredentialRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
