package models

import (
	"time"
)

// AttendanceToken is a time-limited check-in code issued for one class session
type AttendanceToken struct {
	Token     string    `db:"token" json:"token"`
	ClassName string    `db:"class_name" json:"class_name"`
	IssuedAt  time.Time `db:"issued_at" json:"issued_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	IssuedBy  string    `db:"issued_by" json:"issued_by"`
}

// IsExpired reports whether the token is no longer valid at the given instant
func (t *AttendanceToken) IsExpired(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}
