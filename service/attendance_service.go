package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"runepoints/events"
	"runepoints/models"
)

// DefaultTokenTTL is the validity of a token issued without an explicit expiry
const DefaultTokenTTL = time.Hour

// AttendanceResult reports the outcome of a check-in. Granted is false when
// the user had already checked in for the service day.
type AttendanceResult struct {
	Granted bool   `json:"granted"`
	DayKey  string `json:"day_key"`
	Credit  int64  `json:"credit"`
	Balance int64  `json:"balance"`
}

// AttendanceConfig holds the check-in rules
type AttendanceConfig struct {
	Credit       int64
	Location     *time.Location
	RolloverHour int
	TokenTTL     time.Duration
}

// attendanceService implements the AttendanceService interface
type attendanceService struct {
	ledger *Ledger
	cfg    AttendanceConfig
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(ledger *Ledger, cfg AttendanceConfig) AttendanceService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &attendanceService{
		ledger: ledger,
		cfg:    cfg,
	}
}

// IssueToken creates a new unguessable check-in token for a class session
func (s *attendanceService) IssueToken(ctx context.Context, issuerID, className string, expiresAt *time.Time) (*models.AttendanceToken, error) {
	className = strings.TrimSpace(className)
	if className == "" {
		return nil, ErrInvalidClassName
	}

	now := s.ledger.Now()
	token := &models.AttendanceToken{
		Token:     uuid.NewString(),
		ClassName: className,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
		IssuedBy:  issuerID,
	}
	if expiresAt != nil {
		if !expiresAt.After(now) {
			return nil, ErrInvalidExpiry
		}
		token.ExpiresAt = expiresAt.UTC()
	}

	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, uow UnitOfWork) error {
		if err := uow.AttendanceTokenRepository().Create(ctx, token); err != nil {
			return fmt.Errorf("failed to store attendance token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// GrantAttendance credits the user once per service day. A second call for the
// same day succeeds without changing anything.
func (s *attendanceService) GrantAttendance(ctx context.Context, userID, tokenValue string, at time.Time) (*AttendanceResult, error) {
	dayKey := ServiceDayKey(at, s.cfg.Location, s.cfg.RolloverHour)

	var result *AttendanceResult
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, uow UnitOfWork) error {
		token, err := uow.AttendanceTokenRepository().GetByToken(ctx, tokenValue)
		if err != nil {
			return fmt.Errorf("failed to get attendance token: %w", err)
		}
		if token == nil {
			return ErrInvalidToken
		}
		if token.IsExpired(at) {
			return ErrTokenExpired
		}

		user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}

		result = &AttendanceResult{DayKey: dayKey, Balance: user.Balance}
		if user.HasAttendedOn(dayKey) {
			return nil
		}

		before, after, err := applyBalanceDelta(ctx, uow, user, s.cfg.Credit)
		if err != nil {
			return err
		}
		if err := uow.UserRepository().UpdateLastAttendanceDay(ctx, userID, dayKey); err != nil {
			return fmt.Errorf("failed to update attendance day: %w", err)
		}

		history := &models.BalanceHistory{
			UserID:          userID,
			BalanceBefore:   before,
			BalanceAfter:    after,
			ChangeAmount:    s.cfg.Credit,
			TransactionType: models.TransactionTypeAttendance,
			TransactionMetadata: map[string]any{
				"token":      token.Token,
				"class_name": token.ClassName,
				"day":        dayKey,
			},
			// Recorded at commit time; the day key and expiry above use the check-in instant.
			CreatedAt: s.ledger.Now(),
		}
		if err := RecordBalanceChange(ctx, uow, history); err != nil {
			return err
		}

		uow.EventBus().Publish(events.AttendanceGrantedEvent{
			UserID:    userID,
			DayKey:    dayKey,
			ClassName: token.ClassName,
			Credit:    s.cfg.Credit,
		})

		result.Granted = true
		result.Credit = s.cfg.Credit
		result.Balance = after
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":  userID,
		"day":     dayKey,
		"granted": result.Granted,
	}).Debug("Attendance processed")
	return result, nil
}
