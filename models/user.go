package models

import (
	"strings"
	"time"
)

// Role discriminates the three actor classes
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleSeller Role = "VENDEUR"
	RoleBuyer  Role = "CLIENT"
)

// ParseRole accepts the wire names and their English aliases
func ParseRole(s string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMIN":
		return RoleAdmin, true
	case "VENDEUR", "SELLER":
		return RoleSeller, true
	case "CLIENT", "BUYER", "":
		return RoleBuyer, true
	}
	return "", false
}

// User is a marketplace account. Role-specific columns are nullable in
// practice: Approved only matters for sellers, DeliveryAddress for buyers.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"not null" json:"nom"`
	Email           string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    string    `gorm:"not null" json:"-"`
	Phone           string    `json:"telephone"`
	Role            Role      `gorm:"type:varchar(16);not null;index" json:"role"`
	Approved        bool      `gorm:"not null" json:"estApprouve"`
	DeliveryAddress string    `json:"adresseLivraison,omitempty"`
	CreatedAt       time.Time `json:"dateCreation"`
	UpdatedAt       time.Time `json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsSeller reports whether the user is a seller account
func (u User) IsSeller() bool {
	return u.Role == RoleSeller
}

// IsBuyer reports whether the user is a buyer account
func (u User) IsBuyer() bool {
	return u.Role == RoleBuyer
}

// CanAuthenticate is false only for sellers still waiting for (or removed from) approval
func (u User) CanAuthenticate() bool {
	return !u.IsSeller() || u.Approved
}
