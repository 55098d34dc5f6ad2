package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"runepoints/database"
	"runepoints/models"
	"runepoints/service"
)

const userColumns = `id, username, balance, last_attendance_day, created_at, updated_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a user repository outside any unit of work
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByID retrieves a user by id, returning nil when none exists
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByIDForUpdate locks the user row until the transaction ends
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR NO KEY UPDATE`, id)
}

func (r *UserRepository) get(ctx context.Context, query, id string) (*models.User, error) {
	var user models.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.LastAttendanceDay,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, classify(err))
	}
	return &user, nil
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query, user.ID, user.Username, user.Balance, nowIfZero(user.CreatedAt)).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return service.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, classify(err))
	}
	return nil
}

// UpdateBalance sets a user's balance
func (r *UserRepository) UpdateBalance(ctx context.Context, id string, newBalance int64) error {
	query := `UPDATE users SET balance = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, newBalance)
}

// UpdateLastAttendanceDay records the service day of the user's latest check-in
func (r *UserRepository) UpdateLastAttendanceDay(ctx context.Context, id string, dayKey string) error {
	query := `UPDATE users SET last_attendance_day = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, dayKey)
}

func (r *UserRepository) exec(ctx context.Context, query, id string, value any) error {
	tag, err := r.q.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return service.ErrUserNotFound
	}
	return nil
}
