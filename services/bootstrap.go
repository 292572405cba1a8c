package services

import (
	"context"
	"log"
	"strings"

	"github.com/kendall-kelly/gestion-ventes-api/models"
)

// EnsureDefaultAdmin creates the reserved administrator account if no user
// holds its email yet. It reports whether an account was created.
func (s *AuthService) EnsureDefaultAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var count int64
	if err := s.store.DB(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return false, err
	}
	admin := &models.User{
		Name:         "Administrateur",
		Email:        email,
		PasswordHash: hash,
		Phone:        "0600000000",
		Role:         models.RoleAdmin,
	}
	if err := s.store.DB(ctx).Create(admin).Error; err != nil {
		return false, err
	}
	log.Printf("Default administrator created: %s", email)
	return true, nil
}
