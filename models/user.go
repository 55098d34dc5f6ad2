package models

import (
	"time"
)

// User is a member holding a points balance
type User struct {
	ID                string    `db:"id" json:"id"`
	Username          string    `db:"username" json:"username"`
	Balance           int64     `db:"balance" json:"balance"`
	LastAttendanceDay *string   `db:"last_attendance_day" json:"last_attendance_day,omitempty"` // service-day key, YYYY-MM-DD
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// HasAttendedOn reports whether the user already checked in for the given service day
// or a later one.
func (u *User) HasAttendedOn(dayKey string) bool {
	if u.LastAttendanceDay == nil {
		return false
	}
	// YYYY-MM-DD keys order lexically
	return *u.LastAttendanceDay >= dayKey
}
