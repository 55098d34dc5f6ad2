package testutil

import (
	"time"

	"runepoints/models"
)

// CreateTestUser creates a test user with default values
func CreateTestUser(id string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:        id,
		Username:  "user-" + id,
		Balance:   100,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestUserWithBalance creates a test user with a specific balance
func CreateTestUserWithBalance(id string, balance int64) *models.User {
	user := CreateTestUser(id)
	user.Balance = balance
	return user
}

// CreateTestBetEvent creates an open two-choice event closing in an hour
func CreateTestBetEvent(id string) *models.BetEvent {
	now := time.Now().UTC()
	return &models.BetEvent{
		ID:        id,
		Question:  "Will it rain tomorrow?",
		Choices:   []string{"yes", "no"},
		Deadline:  now.Add(time.Hour),
		CreatedBy: "operator-1",
		CreatedAt: now,
	}
}

// CreateTestBet creates a bet record placed now
func CreateTestBet(eventID, userID string, choice int, amount int64) *models.BetRecord {
	return &models.BetRecord{
		EventID:     eventID,
		UserID:      userID,
		ChoiceIndex: choice,
		Amount:      amount,
		PlacedAt:    time.Now().UTC(),
	}
}

// CreateTestAttendanceToken creates a token valid for an hour from issuedAt
func CreateTestAttendanceToken(token string, issuedAt time.Time) *models.AttendanceToken {
	return &models.AttendanceToken{
		Token:     token,
		ClassName: "Monday practice",
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(time.Hour),
		IssuedBy:  "operator-1",
	}
}

// CreateTestReward creates a catalog entry
func CreateTestReward(id string, cost int64) *models.Reward {
	return &models.Reward{
		ID:        id,
		Name:      "Reward " + id,
		Cost:      cost,
		UpdatedAt: time.Now().UTC(),
	}
}
