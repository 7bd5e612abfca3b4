package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserStore is the credential store consumed by the auth service. The core
// does not assume a storage technology; Repository is the Postgres
// implementation and tests substitute fakes.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, user User) (User, error)
	UpdateStatus(ctx context.Context, id, status, role string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	ListPending(ctx context.Context) ([]User, error)
	CreateResetToken(ctx context.Context, userID, rawToken string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, rawToken string) (string, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, status, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by email: %w", err)
	}

	return user, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, status, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by id: %w", err)
	}

	return user, nil
}

func (r *Repository) Create(ctx context.Context, user User) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	user.ID = id.String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.Status, now)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id, status, role string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET status = $2, role = $3, updated_at = $4
		WHERE id = $1
	`, id, status, role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user status rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user password rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repository) ListPending(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, role, status, created_at, updated_at
		FROM users
		WHERE status = $1
		ORDER BY created_at ASC
	`, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("query pending users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pending user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending users: %w", err)
	}

	return users, nil
}

// CreateResetToken stores a password-reset token. Only the SHA-256 of the
// raw token is persisted; the raw value travels to the user by email.
func (r *Repository) CreateResetToken(ctx context.Context, userID, rawToken string, expiresAt time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate reset token id: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id.String(), userID, hashToken(rawToken), expiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	return nil
}

// ConsumeResetToken marks a reset token used and returns the owning user id.
// A token can be consumed exactly once and only before its expiry.
func (r *Repository) ConsumeResetToken(ctx context.Context, rawToken string) (string, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin reset token tx: %w", err)
	}
	defer tx.Rollback()

	var id, userID string
	var expiresAt time.Time
	var usedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, expires_at, used_at
		FROM password_reset_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`, hashToken(rawToken)).Scan(&id, &userID, &expiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrResetTokenInvalid
		}
		return "", fmt.Errorf("read reset token: %w", err)
	}

	if usedAt.Valid || now.After(expiresAt.UTC()) {
		return "", ErrResetTokenInvalid
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE password_reset_tokens
		SET used_at = $2
		WHERE id = $1
	`, id, now); err != nil {
		return "", fmt.Errorf("mark reset token used: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit reset token tx: %w", err)
	}

	return userID, nil
}

// CleanupStale removes expired or consumed reset tokens in batches.
func (r *Repository) CleanupStale(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retention <= 0 {
		retention = 14 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-retention)

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM password_reset_tokens
			WHERE expires_at < NOW() OR (used_at IS NOT NULL AND used_at < $1)
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM password_reset_tokens t
		USING stale
		WHERE t.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale reset tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale reset tokens rows affected: %w", err)
	}

	return affected, nil
}

// BootstrapAdmin ensures an active admin account exists for the configured
// email, creating or updating it with the given password.
func (r *Repository) BootstrapAdmin(ctx context.Context, email, plainPassword string) error {
	hash, err := HashPassword(plainPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	existing, err := r.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return err
		}
		_, err = r.Create(ctx, User{
			Username:     "admin",
			Email:        email,
			PasswordHash: hash,
			Role:         RoleAdmin,
			Status:       StatusActive,
		})
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, role = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, existing.ID, hash, RoleAdmin, StatusActive, now)
	if err != nil {
		return fmt.Errorf("update admin user: %w", err)
	}

	return nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func isUniqueViolation(err error) bool {
	// pgx wraps *pgconn.PgError; matching on SQLSTATE 23505 without importing
	// pgconn keeps database/sql as the only driver surface here.
	type sqlState interface{ SQLState() string }
	var state sqlState
	if errors.As(err, &state) {
		return state.SQLState() == "23505"
	}
	return false
}
