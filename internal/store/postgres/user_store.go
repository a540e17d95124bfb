package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mazadapp/mazad/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userCols = `id, name, email, password_hash, google_id, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.GoogleID, &u.CreatedAt)
	return u, err
}

// Create inserts a new user. A duplicate email maps to domain.ErrAlreadyExists.
func (s *UserStore) Create(ctx context.Context, u domain.User) error {
	_, err := querier(ctx, s.pool).Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, google_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.GoogleID, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create user %s: %w", u.ID, err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := querier(ctx, s.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := querier(ctx, s.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user by email: %w", err)
	}
	return u, nil
}

// UpsertByEmail creates the user, or refreshes name/google id on the account
// that already owns the email, and returns the stored row. Used by the OAuth
// callback.
func (s *UserStore) UpsertByEmail(ctx context.Context, u domain.User) (domain.User, error) {
	row := querier(ctx, s.pool).QueryRow(ctx,
		`INSERT INTO users (id, name, email, password_hash, google_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			google_id = COALESCE(EXCLUDED.google_id, users.google_id)
		 RETURNING `+userCols,
		u.ID, u.Name, u.Email, u.PasswordHash, u.GoogleID, u.CreatedAt)

	stored, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: upsert user by email: %w", err)
	}
	return stored, nil
}

// InsertToken persists an API token digest for the user.
func (s *UserStore) InsertToken(ctx context.Context, userID, digest string, issuedAt time.Time) error {
	_, err := querier(ctx, s.pool).Exec(ctx,
		`INSERT INTO auth_tokens (digest, user_id, issued_at) VALUES ($1, $2, $3)`,
		digest, userID, issuedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert token for %s: %w", userID, err)
	}
	return nil
}

// GetUserByTokenDigest resolves a presented token digest to its user.
func (s *UserStore) GetUserByTokenDigest(ctx context.Context, digest string) (domain.User, error) {
	row := querier(ctx, s.pool).QueryRow(ctx,
		`SELECT u.id, u.name, u.email, u.password_hash, u.google_id, u.created_at
		 FROM auth_tokens t JOIN users u ON u.id = t.user_id
		 WHERE t.digest = $1`, digest)
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, fmt.Errorf("postgres: get user by token: %w", err)
	}
	return u, nil
}

// DeleteTokensForUser revokes every token the user holds (logout).
func (s *UserStore) DeleteTokensForUser(ctx context.Context, userID string) error {
	_, err := querier(ctx, s.pool).Exec(ctx,
		`DELETE FROM auth_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("postgres: delete tokens for %s: %w", userID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.UserStore = (*UserStore)(nil)
