package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"runepoints/database"
	"runepoints/models"
	"runepoints/service"
)

const betEventColumns = `id, question, choices, deadline, result, resolved_at, created_by, created_at`

// BetEventRepository implements the BetEventRepository interface
type BetEventRepository struct {
	q queryable
}

// NewBetEventRepository creates a new bet event repository
func NewBetEventRepository(db *database.DB) *BetEventRepository {
	return &BetEventRepository{q: db.Pool}
}

func newBetEventRepositoryWithTx(tx queryable) *BetEventRepository {
	return &BetEventRepository{q: tx}
}

// Create inserts a new bet event
func (r *BetEventRepository) Create(ctx context.Context, event *models.BetEvent) error {
	query := `
		INSERT INTO bet_events (id, question, choices, deadline, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.q.QueryRow(ctx, query,
		event.ID,
		event.Question,
		event.Choices,
		event.Deadline,
		event.CreatedBy,
		nowIfZero(event.CreatedAt),
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bet event: %w", classify(err))
	}
	return nil
}

// GetByID retrieves an event, returning nil when none exists
func (r *BetEventRepository) GetByID(ctx context.Context, id string) (*models.BetEvent, error) {
	return r.getOne(ctx, `SELECT `+betEventColumns+` FROM bet_events WHERE id = $1`, id)
}

// GetByIDForUpdate locks the event row. NO KEY UPDATE still lets bet inserts
// take their foreign-key share lock, so placement waits only on serialization checks.
func (r *BetEventRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.BetEvent, error) {
	return r.getOne(ctx, `SELECT `+betEventColumns+` FROM bet_events WHERE id = $1 FOR NO KEY UPDATE`, id)
}

// GetAll returns every event, newest first
func (r *BetEventRepository) GetAll(ctx context.Context) ([]*models.BetEvent, error) {
	return r.getMany(ctx, `SELECT `+betEventColumns+` FROM bet_events ORDER BY created_at DESC, id`)
}

// GetUnresolvedClosedBetween returns unresolved events with a deadline in (from, to]
func (r *BetEventRepository) GetUnresolvedClosedBetween(ctx context.Context, from, to time.Time) ([]*models.BetEvent, error) {
	query := `
		SELECT ` + betEventColumns + `
		FROM bet_events
		WHERE result IS NULL AND deadline > $1 AND deadline <= $2
		ORDER BY deadline
	`
	return r.getMany(ctx, query, from, to)
}

// MarkResolved sets the result once; an already resolved event is left untouched
func (r *BetEventRepository) MarkResolved(ctx context.Context, id string, result int, resolvedAt time.Time) error {
	query := `UPDATE bet_events SET result = $2, resolved_at = $3 WHERE id = $1 AND result IS NULL`
	tag, err := r.q.Exec(ctx, query, id, result, resolvedAt)
	if err != nil {
		return fmt.Errorf("failed to resolve bet event %s: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAlreadyResolved
	}
	return nil
}

func (r *BetEventRepository) getOne(ctx context.Context, query string, args ...any) (*models.BetEvent, error) {
	event, err := scanBetEvent(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet event: %w", classify(err))
	}
	return event, nil
}

func (r *BetEventRepository) getMany(ctx context.Context, query string, args ...any) ([]*models.BetEvent, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bet events: %w", classify(err))
	}
	defer rows.Close()

	var out []*models.BetEvent
	for rows.Next() {
		event, err := scanBetEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet event: %w", err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bet events: %w", classify(err))
	}
	return out, nil
}

func scanBetEvent(row pgx.Row) (*models.BetEvent, error) {
	var event models.BetEvent
	err := row.Scan(
		&event.ID,
		&event.Question,
		&event.Choices,
		&event.Deadline,
		&event.Result,
		&event.ResolvedAt,
		&event.CreatedBy,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetBet returns the user's bet on the event, or nil
func (r *BetEventRepository) GetBet(ctx context.Context, eventID, userID string) (*models.BetRecord, error) {
	query := `
		SELECT event_id, user_id, choice_index, amount, placed_at
		FROM bet_records
		WHERE event_id = $1 AND user_id = $2
	`
	var bet models.BetRecord
	err := r.q.QueryRow(ctx, query, eventID, userID).Scan(
		&bet.EventID,
		&bet.UserID,
		&bet.ChoiceIndex,
		&bet.Amount,
		&bet.PlacedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", classify(err))
	}
	return &bet, nil
}

// CreateBet inserts a bet; the (event_id, user_id) primary key rejects a second one
func (r *BetEventRepository) CreateBet(ctx context.Context, bet *models.BetRecord) error {
	query := `
		INSERT INTO bet_records (event_id, user_id, choice_index, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.q.Exec(ctx, query, bet.EventID, bet.UserID, bet.ChoiceIndex, bet.Amount, nowIfZero(bet.PlacedAt))
	if isUniqueViolation(err) {
		return service.ErrDuplicateBet
	}
	if err != nil {
		return fmt.Errorf("failed to create bet: %w", classify(err))
	}
	return nil
}

// GetBets returns every bet on the event in placement order
func (r *BetEventRepository) GetBets(ctx context.Context, eventID string) ([]*models.BetRecord, error) {
	query := `
		SELECT event_id, user_id, choice_index, amount, placed_at
		FROM bet_records
		WHERE event_id = $1
		ORDER BY placed_at, user_id
	`
	rows, err := r.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets: %w", classify(err))
	}
	defer rows.Close()

	var bets []*models.BetRecord
	for rows.Next() {
		var bet models.BetRecord
		if err := rows.Scan(&bet.EventID, &bet.UserID, &bet.ChoiceIndex, &bet.Amount, &bet.PlacedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, &bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", classify(err))
	}
	return bets, nil
}
