package entities

import "time"

// Rating is one user's stars for one alternative. There is at most one
// Rating per (AlternativeID, UserID).
type Rating struct {
	AlternativeID string    `json:"alternativeId"`
	UserID        string    `json:"userId"`
	Stars         int       `json:"stars"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
