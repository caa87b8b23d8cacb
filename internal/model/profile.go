package model

import "time"

// UserProfile is the application-level record about a user, keyed by the
// backend user id. A profile may legitimately not exist yet for a new
// user; that is not an error condition.
type UserProfile struct {
	ID                string    `json:"id"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Grade             string    `json:"grade"`
	Board             *string   `json:"board,omitempty"`
	Area              *string   `json:"area,omitempty"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewProfileRow is the insert shape for a profile row. Timestamps are
// assigned by the data store.
type NewProfileRow struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Grade     string `json:"grade"`
}

// ProfileUpdate carries a partial profile mutation. Nil fields are left
// untouched by the data store.
type ProfileUpdate struct {
	FirstName         *string `json:"first_name,omitempty"`
	LastName          *string `json:"last_name,omitempty"`
	Grade             *string `json:"grade,omitempty"`
	Board             *string `json:"board,omitempty"`
	Area              *string `json:"area,omitempty"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`
}

// Empty reports whether the update carries no fields at all.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Grade == nil &&
		u.Board == nil && u.Area == nil && u.ProfilePictureURL == nil
}
