package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// SignupInput is the account creation payload
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	Phone           string
	Role            string
	DeliveryAddress string
}

// AuthResult carries the authenticated user and, on login, the signed token
type AuthResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
	Message   string
}

// AuthService handles signup, login and profile lookups
type AuthService struct {
	store      *repository.Store
	tokens     *TokenIssuer
	bcryptCost int
}

// NewAuthService creates an auth service
func NewAuthService(store *repository.Store, tokens *TokenIssuer) *AuthService {
	return &AuthService{store: store, tokens: tokens, bcryptCost: bcrypt.DefaultCost}
}

// HashPassword hashes a clear-text password with the service cost
func (s *AuthService) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func validateSignup(in SignupInput) (models.Role, error) {
	if strings.TrimSpace(in.Name) == "" {
		return "", NewValidation("Le nom est obligatoire")
	}
	if strings.TrimSpace(in.Email) == "" {
		return "", NewValidation("L'email est obligatoire")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return "", NewValidation("Format d'email invalide")
	}
	if len(in.Password) < minPasswordLength {
		return "", NewValidation("Le mot de passe doit contenir au moins 6 caractères")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return "", NewValidation("Le téléphone est obligatoire")
	}
	role, ok := models.ParseRole(in.Role)
	if !ok {
		return "", NewValidation("Rôle inconnu: %s", in.Role)
	}
	return role, nil
}

// Signup creates an account. Sellers start unapproved.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	role, err := validateSignup(in)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	var count int64
	if err := s.store.DB(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, Internal(err, "Erreur lors de la vérification de l'email")
	}
	if count > 0 {
		return nil, NewConflict("EMAIL_TAKEN", "Cet email est déjà utilisé")
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, Internal(err, "Erreur lors du hachage du mot de passe")
	}

	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
	}
	if role == models.RoleBuyer {
		user.DeliveryAddress = strings.TrimSpace(in.DeliveryAddress)
	}
	if err := s.store.DB(ctx).Create(user).Error; err != nil {
		return nil, Internal(err, "Erreur lors de la création du compte")
	}

	msg := "Client créé avec succès"
	switch role {
	case models.RoleAdmin:
		msg = "Admin créé avec succès"
	case models.RoleSeller:
		msg = "Inscription réussie. Votre compte vendeur est en attente d'approbation par l'administrateur."
	}
	return &AuthResult{User: user, Message: msg}, nil
}

// Login checks credentials and issues a token. A pending seller gets a
// dedicated error instead of the generic credentials failure.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := NewUnauthorized("INVALID_CREDENTIALS", "Email ou mot de passe incorrect")

	var user models.User
	err := s.store.DB(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if repository.IsNotFound(err) {
		return nil, invalid
	}
	if err != nil {
		return nil, Internal(err, "Erreur lors de la connexion")
	}

	if !user.CanAuthenticate() {
		return nil, NewForbidden("Votre compte vendeur n'est pas encore approuvé par l'administrateur").withCode("ACCOUNT_PENDING_APPROVAL")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, invalid
		}
		return nil, Internal(err, "Erreur lors de la connexion")
	}

	token, exp, err := s.tokens.Issue(&user)
	if err != nil {
		return nil, Internal(err, "Erreur lors de la génération du jeton")
	}
	return &AuthResult{User: &user, Token: token, ExpiresAt: exp, Message: "Connexion réussie"}, nil
}

// Me returns the profile of an authenticated user
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.store.DB(ctx).First(&user, userID).Error
	if repository.IsNotFound(err) {
		return nil, NewNotFound("Utilisateur non trouvé")
	}
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement du profil")
	}
	return &user, nil
}

// ProfileUpdate carries the buyer-editable profile fields; nil means unchanged
type ProfileUpdate struct {
	Name            *string
	Phone           *string
	DeliveryAddress *string
}

// UpdateProfile edits a buyer's own profile
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, in ProfileUpdate) (*models.User, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, NewValidation("Le nom est obligatoire")
		}
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.DeliveryAddress != nil {
		updates["delivery_address"] = strings.TrimSpace(*in.DeliveryAddress)
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.store.DB(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, Internal(err, "Erreur lors de la mise à jour du profil")
	}
	return s.Me(ctx, userID)
}
