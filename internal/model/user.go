package model

import (
	"time"

	"github.com/google/uuid"
)

// Role values. Signup always creates CUSTOMER; ADMIN is only reachable
// through an explicit promote by another admin.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// User stores dashboard accounts. Role changes mutate in place and keep the
// promotion audit fields; authorization always re-reads Role from this table,
// never from token claims.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	FirstName    *string
	LastName     *string
	Role         string `gorm:"type:varchar(20);not null;default:'CUSTOMER'"`
	PromotedByID *uuid.UUID `gorm:"type:uuid"`
	PromotedAt   *time.Time
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
