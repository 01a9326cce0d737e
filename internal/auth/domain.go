package auth

import "time"

// User is an account as seen by the authentication layer.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	CreatedAt    time.Time
}
