package types

import "time"

// Supported user roles.
const (
	RoleUser      = "user"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

// User represents an account in the system.
// It contains identity, role, profile, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// Email is the user's email address. It is unique across accounts
	// and always stored lowercased.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the system
	// ("user", "organizer" or "admin").
	Role string `json:"role" db:"role"`

	// Bio is a free-form profile description.
	Bio string `json:"bio" db:"bio"`

	// ProfileImageURL points at the hosted profile picture, if any.
	ProfileImageURL string `json:"profile_image_url" db:"profile_image_url"`

	// IsVerified reports whether the account's email has been verified.
	IsVerified bool `json:"is_verified" db:"is_verified"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidRole reports whether role is one of the supported roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleOrganizer, RoleAdmin:
		return true
	default:
		return false
	}
}
