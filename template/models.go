package template

import "time"

// Template is a reusable agreement body owned by a single user.
type Template struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	CreatedAt time.Time
}
