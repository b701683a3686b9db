package dto

import "github.com/spec-kit/clinic-portal/internal/domain"

// RegisterRequest payload for admin-created accounts.
type RegisterRequest struct {
	Email       string         `json:"email" validate:"required,email"`
	PhoneNumber string         `json:"phone_number" validate:"omitempty,max=32"`
	Roles       string         `json:"roles" validate:"required"`
	Profile     domain.Profile `json:"profile"`
}

// UserResponse is the public projection of a user.
type UserResponse = domain.Identity
