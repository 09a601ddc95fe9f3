package models

import "time"

// User is a row of the 'users' table. Rows are created the first time a
// session credential resolves to an email with no matching user.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Profile   string     `json:"profile"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
