package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

const identityColumns = `id::text, address, display_name, email, avatar_url, bio, created_at, updated_at`

// PostgresStore persists identities in the identities table
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on top of an existing pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ ports.IdentityStore = (*PostgresStore)(nil)

// FindByAddress looks the identity up through the lower(address) index
func (s *PostgresStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE lower(address) = lower($1)`,
		address,
	)

	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	return identity, nil
}

// Create inserts the identity; an existing address yields core.ErrIdentityExists
func (s *PostgresStore) Create(ctx context.Context, identity *core.Identity) error {
	id := uuid.New()
	if identity.ID != "" {
		parsed, err := uuid.Parse(identity.ID)
		if err != nil {
			return fmt.Errorf("invalid identity id %q: %w", identity.ID, err)
		}
		id = parsed
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, address, display_name, email, avatar_url, bio)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT DO NOTHING
		 RETURNING `+identityColumns,
		id, identity.Address, identity.DisplayName, identity.Email, identity.AvatarURL, identity.Bio,
	)

	created, err := scanIdentity(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == uniqueViolation) {
			return core.ErrIdentityExists
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}

	*identity = *created
	return nil
}

// Update overwrites the columns whose profile field is set
func (s *PostgresStore) Update(ctx context.Context, address string, profile core.Profile) (*core.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE identities SET
			display_name = COALESCE($2::text, display_name),
			email        = COALESCE($3::text, email),
			avatar_url   = COALESCE($4::text, avatar_url),
			bio          = COALESCE($5::text, bio),
			updated_at   = now()
		 WHERE lower(address) = lower($1)
		 RETURNING `+identityColumns,
		address, profile.DisplayName, profile.Email, profile.AvatarURL, profile.Bio,
	)

	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to update identity: %w", err)
	}
	return identity, nil
}

func scanIdentity(row pgx.Row) (*core.Identity, error) {
	var identity core.Identity
	err := row.Scan(
		&identity.ID,
		&identity.Address,
		&identity.DisplayName,
		&identity.Email,
		&identity.AvatarURL,
		&identity.Bio,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	identity.CreatedAt = identity.CreatedAt.UTC()
	identity.UpdatedAt = identity.UpdatedAt.UTC()
	return &identity, nil
}
