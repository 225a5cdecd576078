package profile

import "time"

// Identity is an authenticated principal as resolved by an identity
// provider. It is read-only context for the signing workflow; the workflow
// never cares which provider produced it.
type Identity struct {
	ID    string
	Email string
	// Name is the display name carried in provider metadata, if any.
	Name string
}

// Profile mirrors the profiles table.
// No JSON annotations so it can be reused by different presentation layers.
type Profile struct {
	ID           string
	FullName     *string
	Email        *string
	PasswordHash *string
	Phone        *string
	WechatOpenID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
