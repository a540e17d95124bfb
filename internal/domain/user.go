package domain

import "time"

// User is a registered account. GoogleID is set for accounts created or
// linked through the Google OAuth flow.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	GoogleID     *string
	CreatedAt    time.Time
}
