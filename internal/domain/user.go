package domain

import "time"

// User is the credential record for an account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the record onto the session identity.
func (u *User) Identity() Identity {
	return Identity{SubjectID: u.ID, DisplayName: u.Name, Role: u.Role}
}
