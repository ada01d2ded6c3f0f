package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgDB is the slice of pgxpool.Pool the repository needs; tests substitute a
// pgxmock pool.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists client records to PostgreSQL. The base_url
// primary key enforces uniqueness; secret verification rides in the UPDATE
// predicate so verify-and-write is a single statement.
type PostgresRepository struct {
	db pgDB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository builds a Postgres-backed repository.
func NewPostgresRepository(db pgDB) *PostgresRepository {
	if db == nil {
		panic("clients: pgx pool cannot be nil")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, baseURL string) (*ClientRecord, error) {
	row := r.db.QueryRow(ctx, `
		SELECT base_url, upi_id, qr_image_path, secret_hash, created_at, updated_at
		FROM payment_clients WHERE base_url = $1
	`, baseURL)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clients: failed to load record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *ClientRecord) error {
	if rec == nil {
		return errors.New("clients: record cannot be nil")
	}
	now := time.Now().UTC()
	rec.CreatedAt = now.Format(time.RFC3339Nano)
	rec.UpdatedAt = rec.CreatedAt

	tag, err := r.db.Exec(ctx, `
		INSERT INTO payment_clients (base_url, upi_id, qr_image_path, secret_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (base_url) DO NOTHING
	`, rec.BaseURL, rec.UPIID, rec.QRImagePath, rec.SecretHash, now)
	if err != nil {
		return fmt.Errorf("clients: failed to persist record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, baseURL, verifyHash string, fields UpdateFields) (*ClientRecord, error) {
	if baseURL == "" {
		return nil, errors.New("clients: baseURL required")
	}

	row := r.db.QueryRow(ctx, `
		UPDATE payment_clients SET
			upi_id = COALESCE($3, upi_id),
			qr_image_path = COALESCE($4, qr_image_path),
			secret_hash = COALESCE($5, secret_hash),
			updated_at = $6
		WHERE base_url = $1 AND secret_hash = $2
		RETURNING base_url, upi_id, qr_image_path, secret_hash, created_at, updated_at
	`, baseURL, verifyHash, fields.UPIID, fields.QRImagePath, fields.SecretHash, time.Now().UTC())

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// No row matched: either the record is gone or the secret is wrong.
		// Records are never deleted, so report the secret mismatch.
		return nil, ErrInvalidSecret
	}
	if err != nil {
		return nil, fmt.Errorf("clients: failed to update record: %w", err)
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (*ClientRecord, error) {
	var rec ClientRecord
	var createdAt, updatedAt time.Time
	if err := row.Scan(&rec.BaseURL, &rec.UPIID, &rec.QRImagePath, &rec.SecretHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	rec.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return &rec, nil
}
