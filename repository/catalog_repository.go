package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"runepoints/database"
	"runepoints/models"
)

// AttendanceTokenRepository implements the AttendanceTokenRepository interface
type AttendanceTokenRepository struct {
	q queryable
}

// NewAttendanceTokenRepository creates a new attendance token repository
func NewAttendanceTokenRepository(db *database.DB) *AttendanceTokenRepository {
	return &AttendanceTokenRepository{q: db.Pool}
}

func newAttendanceTokenRepositoryWithTx(tx queryable) *AttendanceTokenRepository {
	return &AttendanceTokenRepository{q: tx}
}

// Create stores a newly issued token
func (r *AttendanceTokenRepository) Create(ctx context.Context, token *models.AttendanceToken) error {
	query := `
		INSERT INTO attendance_tokens (token, class_name, issued_at, expires_at, issued_by)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.q.Exec(ctx, query, token.Token, token.ClassName, token.IssuedAt, token.ExpiresAt, token.IssuedBy)
	if err != nil {
		return fmt.Errorf("failed to create attendance token: %w", classify(err))
	}
	return nil
}

// GetByToken returns the token record, or nil when unknown
func (r *AttendanceTokenRepository) GetByToken(ctx context.Context, token string) (*models.AttendanceToken, error) {
	query := `
		SELECT token, class_name, issued_at, expires_at, issued_by
		FROM attendance_tokens
		WHERE token = $1
	`
	var t models.AttendanceToken
	err := r.q.QueryRow(ctx, query, token).Scan(&t.Token, &t.ClassName, &t.IssuedAt, &t.ExpiresAt, &t.IssuedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance token: %w", classify(err))
	}
	return &t, nil
}

// RewardRepository implements the RewardRepository interface
type RewardRepository struct {
	q queryable
}

// NewRewardRepository creates a new reward repository
func NewRewardRepository(db *database.DB) *RewardRepository {
	return &RewardRepository{q: db.Pool}
}

func newRewardRepositoryWithTx(tx queryable) *RewardRepository {
	return &RewardRepository{q: tx}
}

// GetByID returns the reward, or nil when unknown
func (r *RewardRepository) GetByID(ctx context.Context, id string) (*models.Reward, error) {
	query := `SELECT id, name, cost, updated_at FROM rewards WHERE id = $1`
	var reward models.Reward
	err := r.q.QueryRow(ctx, query, id).Scan(&reward.ID, &reward.Name, &reward.Cost, &reward.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward %s: %w", id, classify(err))
	}
	return &reward, nil
}

// GetAll returns the catalog ordered by cost
func (r *RewardRepository) GetAll(ctx context.Context) ([]*models.Reward, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, cost, updated_at FROM rewards ORDER BY cost, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", classify(err))
	}
	defer rows.Close()

	var rewards []*models.Reward
	for rows.Next() {
		var reward models.Reward
		if err := rows.Scan(&reward.ID, &reward.Name, &reward.Cost, &reward.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, &reward)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rewards: %w", classify(err))
	}
	return rewards, nil
}

// Upsert creates or replaces a catalog entry
func (r *RewardRepository) Upsert(ctx context.Context, reward *models.Reward) error {
	query := `
		INSERT INTO rewards (id, name, cost, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, cost = EXCLUDED.cost, updated_at = EXCLUDED.updated_at
	`
	_, err := r.q.Exec(ctx, query, reward.ID, reward.Name, reward.Cost, nowIfZero(reward.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert reward %s: %w", reward.ID, classify(err))
	}
	return nil
}

// ExchangeRequestRepository implements the ExchangeRequestRepository interface
type ExchangeRequestRepository struct {
	q queryable
}

// NewExchangeRequestRepository creates a new exchange request repository
func NewExchangeRequestRepository(db *database.DB) *ExchangeRequestRepository {
	return &ExchangeRequestRepository{q: db.Pool}
}

func newExchangeRequestRepositoryWithTx(tx queryable) *ExchangeRequestRepository {
	return &ExchangeRequestRepository{q: tx}
}

// Upsert files the request, replacing any earlier one for the same reward
func (r *ExchangeRequestRepository) Upsert(ctx context.Context, request *models.ExchangeRequest) error {
	query := `
		INSERT INTO exchange_requests (user_id, reward_id, cost, status, requested_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, reward_id) DO UPDATE
		SET cost = EXCLUDED.cost, status = EXCLUDED.status, requested_at = EXCLUDED.requested_at
	`
	_, err := r.q.Exec(ctx, query,
		request.UserID,
		request.RewardID,
		request.Cost,
		request.Status,
		nowIfZero(request.RequestedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert exchange request: %w", classify(err))
	}
	return nil
}

// GetByUser returns the user's requests, newest first
func (r *ExchangeRequestRepository) GetByUser(ctx context.Context, userID string) ([]*models.ExchangeRequest, error) {
	query := `
		SELECT user_id, reward_id, cost, status, requested_at
		FROM exchange_requests
		WHERE user_id = $1
		ORDER BY requested_at DESC, reward_id
	`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange requests: %w", classify(err))
	}
	defer rows.Close()

	var requests []*models.ExchangeRequest
	for rows.Next() {
		var req models.ExchangeRequest
		if err := rows.Scan(&req.UserID, &req.RewardID, &req.Cost, &req.Status, &req.RequestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange request: %w", err)
		}
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exchange requests: %w", classify(err))
	}
	return requests, nil
}
