package domain

import "time"

// Gender values mirror the profile choices exposed by the clinic API.
type Gender int

const (
	GenderMale   Gender = 1
	GenderFemale Gender = 2
)

// Profile carries display metadata for a clinic user.
type Profile struct {
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	Avatar    string     `json:"avatar,omitempty"`
	Birthday  *time.Time `json:"birthday,omitempty"`
	Gender    Gender     `json:"gender,omitempty"`
	Address   string     `json:"address,omitempty"`
	City      string     `json:"city,omitempty"`
}

// User is the persisted clinic account.
type User struct {
	ID           string
	Email        string
	PhoneNumber  string
	PasswordHash string
	Role         Role
	IsStaff      bool
	IsActive     bool
	IsVerified   bool
	Profile      Profile
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the resolved, authenticated user as seen by session consumers.
type Identity struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	PhoneNumber string  `json:"phone_number,omitempty"`
	Role        Role    `json:"role"`
	IsStaff     bool    `json:"is_staff"`
	IsActive    bool    `json:"is_active"`
	IsVerified  bool    `json:"is_verified"`
	Profile     Profile `json:"profile"`
}

// DisplayName returns "First Last" when known, otherwise the email.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	name := i.Profile.FirstName
	if i.Profile.LastName != "" {
		if name != "" {
			name += " "
		}
		name += i.Profile.LastName
	}
	if name == "" {
		return i.Email
	}
	return name
}

// Identity projects the stored user onto its public profile.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:          u.ID,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
		IsStaff:     u.IsStaff,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		Profile:     u.Profile,
	}
}
