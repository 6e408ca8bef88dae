package models

import "time"

// SavedShow is a named, shareable slideshow configuration. The settings
// are frozen at save time; editing preferences later does not change a
// saved show.
type SavedShow struct {
	ID         string      `json:"id"`
	OwnerID    string      `json:"ownerId"`
	Name       string      `json:"name"`
	Slug       string      `json:"slug"`
	ShareToken string      `json:"shareToken,omitempty"`
	Settings   Preferences `json:"settings"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Public returns a copy safe to hand to a non-owner: the share token is
// how the caller got here, so it stays; owner identity does not.
func (s SavedShow) Public() SavedShow {
	s.OwnerID = ""
	return s
}
