package domain

import "time"

// User is an admin account able to manage jobs across all API keys.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
