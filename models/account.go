package models

import "time"

// MasterAccountUsername is the username of the bootstrap master account.
const MasterAccountUsername = "admin"

// Account is a user of the slideshow. Master accounts can manage other
// accounts; regular accounts only see their own settings and saved shows.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // bcrypt hash, never serialized to API responses
	IsMaster     bool      `json:"isMaster"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
