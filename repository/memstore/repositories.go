package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"runepoints/models"
	"runepoints/service"
)

const (
	eventsMarker  = "index/events"
	rewardsMarker = "index/rewards"
)

func userKey(id string) string { return "users/" + id }
func eventKey(id string) string { return "events/" + id }
func betPrefix(eventID string) string { return "bets/" + eventID + "/" }
func betKey(eventID, userID string) string { return betPrefix(eventID) + userID }
func betsMarker(eventID string) string { return "index/bets/" + eventID }
func tokenKey(token string) string { return "tokens/" + token }
func rewardKey(id string) string { return "rewards/" + id }
func exchangePrefix(userID string) string { return "exchanges/" + userID + "/" }
func exchangeMarker(userID string) string { return "index/exchanges/" + userID }
func exchangeKey(userID, rid string) string { return exchangePrefix(userID) + rid }

// users

type userRepository struct {
	tx *txn
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	v, ok, err := r.tx.get(userKey(id))
	if err != nil || !ok {
		return nil, err
	}
	return v.(*models.User), nil
}

// GetByIDForUpdate is identical to GetByID; the read set already makes the commit conditional
func (r *userRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	existing, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return service.ErrUserExists
	}
	return r.tx.put(userKey(user.ID), user)
}

func (r *userRepository) UpdateBalance(ctx context.Context, id string, newBalance int64) error {
	user, err := r.mustGet(ctx, id)
	if err != nil {
		return err
	}
	if newBalance < 0 {
		return fmt.Errorf("balance of %s would become negative", id)
	}
	user.Balance = newBalance
	user.UpdatedAt = time.Now().UTC()
	return r.tx.put(userKey(id), user)
}

func (r *userRepository) UpdateLastAttendanceDay(ctx context.Context, id string, dayKey string) error {
	user, err := r.mustGet(ctx, id)
	if err != nil {
		return err
	}
	user.LastAttendanceDay = &dayKey
	user.UpdatedAt = time.Now().UTC()
	return r.tx.put(userKey(id), user)
}

func (r *userRepository) mustGet(ctx context.Context, id string) (*models.User, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, service.ErrUserNotFound
	}
	return user, nil
}

// balance history

type balanceHistoryRepository struct {
	tx *txn
}

func (r *balanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now().UTC()
	}
	return r.tx.appendHistory(history)
}

func (r *balanceHistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	return r.tx.historyFor(userID, limit), nil
}

// bet events and bet records

type betEventRepository struct {
	tx *txn
}

func (r *betEventRepository) Create(ctx context.Context, event *models.BetEvent) error {
	existing, err := r.GetByID(ctx, event.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("event %s already exists", event.ID)
	}
	if err := r.tx.put(eventKey(event.ID), event); err != nil {
		return err
	}
	r.tx.touch(eventsMarker)
	return nil
}

func (r *betEventRepository) GetByID(ctx context.Context, id string) (*models.BetEvent, error) {
	v, ok, err := r.tx.get(eventKey(id))
	if err != nil || !ok {
		return nil, err
	}
	return v.(*models.BetEvent), nil
}

func (r *betEventRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.BetEvent, error) {
	return r.GetByID(ctx, id)
}

func (r *betEventRepository) GetAll(ctx context.Context) ([]*models.BetEvent, error) {
	values, err := r.tx.scan(eventsMarker, "events/")
	if err != nil {
		return nil, err
	}
	out := make([]*models.BetEvent, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*models.BetEvent))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *betEventRepository) GetUnresolvedClosedBetween(ctx context.Context, from, to time.Time) ([]*models.BetEvent, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.BetEvent
	for _, event := range all {
		if !event.IsResolved() && event.Deadline.After(from) && !event.Deadline.After(to) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *betEventRepository) MarkResolved(ctx context.Context, id string, result int, resolvedAt time.Time) error {
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if event == nil {
		return service.ErrEventNotFound
	}
	if event.IsResolved() {
		return service.ErrAlreadyResolved
	}
	event.Result = &result
	event.ResolvedAt = &resolvedAt
	return r.tx.put(eventKey(id), event)
}

func (r *betEventRepository) GetBet(ctx context.Context, eventID, userID string) (*models.BetRecord, error) {
	v, ok, err := r.tx.get(betKey(eventID, userID))
	if err != nil || !ok {
		return nil, err
	}
	return v.(*models.BetRecord), nil
}

// CreateBet writes the bet under its own key, so bets by different users never
// collide, and bumps the event's bet-set marker so a concurrent resolution does.
func (r *betEventRepository) CreateBet(ctx context.Context, bet *models.BetRecord) error {
	existing, err := r.GetBet(ctx, bet.EventID, bet.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		return service.ErrDuplicateBet
	}
	if err := r.tx.put(betKey(bet.EventID, bet.UserID), bet); err != nil {
		return err
	}
	r.tx.touch(betsMarker(bet.EventID))
	return nil
}

func (r *betEventRepository) GetBets(ctx context.Context, eventID string) ([]*models.BetRecord, error) {
	values, err := r.tx.scan(betsMarker(eventID), betPrefix(eventID))
	if err != nil {
		return nil, err
	}
	out := make([]*models.BetRecord, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*models.BetRecord))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out, nil
}

// attendance tokens

type attendanceTokenRepository struct {
	tx *txn
}

func (r *attendanceTokenRepository) Create(ctx context.Context, token *models.AttendanceToken) error {
	return r.tx.put(tokenKey(token.Token), token)
}

func (r *attendanceTokenRepository) GetByToken(ctx context.Context, token string) (*models.AttendanceToken, error) {
	v, ok, err := r.tx.get(tokenKey(token))
	if err != nil || !ok {
		return nil, err
	}
	return v.(*models.AttendanceToken), nil
}

// rewards

type rewardRepository struct {
	tx *txn
}

func (r *rewardRepository) GetByID(ctx context.Context, id string) (*models.Reward, error) {
	v, ok, err := r.tx.get(rewardKey(id))
	if err != nil || !ok {
		return nil, err
	}
	return v.(*models.Reward), nil
}

func (r *rewardRepository) GetAll(ctx context.Context) ([]*models.Reward, error) {
	values, err := r.tx.scan(rewardsMarker, "rewards/")
	if err != nil {
		return nil, err
	}
	out := make([]*models.Reward, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*models.Reward))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *rewardRepository) Upsert(ctx context.Context, reward *models.Reward) error {
	if err := r.tx.put(rewardKey(reward.ID), reward); err != nil {
		return err
	}
	r.tx.touch(rewardsMarker)
	return nil
}

// exchange requests

type exchangeRequestRepository struct {
	tx *txn
}

func (r *exchangeRequestRepository) Upsert(ctx context.Context, request *models.ExchangeRequest) error {
	if err := r.tx.put(exchangeKey(request.UserID, request.RewardID), request); err != nil {
		return err
	}
	r.tx.touch(exchangeMarker(request.UserID))
	return nil
}

func (r *exchangeRequestRepository) GetByUser(ctx context.Context, userID string) ([]*models.ExchangeRequest, error) {
	values, err := r.tx.scan(exchangeMarker(userID), exchangePrefix(userID))
	if err != nil {
		return nil, err
	}
	out := make([]*models.ExchangeRequest, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*models.ExchangeRequest))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}
