package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

// UserType distinguishes how a platform user participates in loans.
type UserType string

const (
	UserTypeInvestor UserType = "investor"
	UserTypeBorrower UserType = "borrower"
	UserTypeBoth     UserType = "both"
	UserTypeAdmin    UserType = "admin"
)

// User is an identity reference. Authentication, invitations, and profile
// management live outside this service; the engine only looks names up.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	UserType UserType  `json:"userType"`
	IsActive bool      `json:"isActive"`
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}
