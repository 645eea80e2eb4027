package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBlobStore implements BlobStore against the encrypted_blobs table (internal/postgres/migrations), for
// multi-instance bridge deployments that need the vault and secure-file artifacts shared across processes instead
// of living on one box's local disk.
type PostgresBlobStore struct {
	pool *pgxpool.Pool
}

// NewPostgresBlobStore wraps an already-connected pool. Callers are responsible for running
// postgres.Migrate beforehand.
func NewPostgresBlobStore(pool *pgxpool.Pool) *PostgresBlobStore {
	return &PostgresBlobStore{pool: pool}
}

func (p *PostgresBlobStore) Read(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM encrypted_blobs WHERE name = $1`, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}
	return data, nil
}

func (p *PostgresBlobStore) Write(ctx context.Context, name string, data []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO encrypted_blobs (name, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, name, data)
	if err != nil {
		return fmt.Errorf("write blob %s: %w", name, err)
	}
	return nil
}
