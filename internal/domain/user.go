package domain

// User represents a registered account.
type User struct {
	Record
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash,omitempty"` // never leaves the server
	ProfileImage string `json:"profileImage"`
}

// OwnerSummary is the denormalized view of a user attached to listed books.
type OwnerSummary struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage"`
}

// Summary returns the public owner summary for this user.
func (u *User) Summary() OwnerSummary {
	return OwnerSummary{
		ID:           u.ID,
		Username:     u.Username,
		ProfileImage: u.ProfileImage,
	}
}
