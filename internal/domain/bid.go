package domain

import "time"

// Bid is an immutable record of a user's offer on an auction product. Every
// accepted bid's amount strictly exceeds the product's highest bid at the
// time it was placed.
type Bid struct {
	ID        string
	ProductID string
	UserID    string
	Amount    int64
	CreatedAt time.Time
}
