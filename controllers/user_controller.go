package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/services"
)

// CookieOptions describes the session cookie carrying the access token
type CookieOptions struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// UserController handles /api/auth and the buyer profile
type UserController struct {
	auth   *services.AuthService
	cookie CookieOptions
}

// NewUserController creates the account controller
func NewUserController(auth *services.AuthService, cookie CookieOptions) *UserController {
	return &UserController{auth: auth, cookie: cookie}
}

// SignupRequest represents the request body for creating an account
type SignupRequest struct {
	Name            string `json:"nom" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Password        string `json:"motDePasse" binding:"required"`
	Phone           string `json:"telephone"`
	Role            string `json:"role"`
	DeliveryAddress string `json:"adresseLivraison"`
}

// LoginRequest represents the credentials of a login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"motDePasse" binding:"required"`
}

// AuthResponse is the account summary returned by signup, login and me
type AuthResponse struct {
	ID              uint        `json:"id"`
	Name            string      `json:"nom"`
	Email           string      `json:"email"`
	Phone           string      `json:"telephone"`
	Role            models.Role `json:"role"`
	Approved        *bool       `json:"estApprouve,omitempty"`
	DeliveryAddress string      `json:"adresseLivraison,omitempty"`
	Token           string      `json:"token,omitempty"`
	ExpiresAt       *time.Time  `json:"expiration,omitempty"`
}

func newAuthResponse(u *models.User) AuthResponse {
	resp := AuthResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Phone:           u.Phone,
		Role:            u.Role,
		DeliveryAddress: u.DeliveryAddress,
	}
	if u.IsSeller() {
		approved := u.Approved
		resp.Approved = &approved
	}
	return resp
}

// Signup handles POST /api/auth/signup
func (ctl *UserController) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Données d'inscription invalides", err)
		return
	}

	result, err := ctl.auth.Signup(c.Request.Context(), services.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		Phone:           req.Phone,
		Role:            req.Role,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": result.Message,
		"data":    newAuthResponse(result.User),
	})
}

// Login handles POST /api/auth/login. The token is returned in the body and
// set as an HTTP-only cookie.
func (ctl *UserController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Email et mot de passe requis", err)
		return
	}

	result, err := ctl.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ctl.cookie.Name, result.Token, int(ctl.cookie.TTL.Seconds()), "/", "", ctl.cookie.Secure, true)

	resp := newAuthResponse(result.User)
	resp.Token = result.Token
	resp.ExpiresAt = &result.ExpiresAt
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": result.Message,
		"data":    resp,
	})
}

// Logout handles POST /api/auth/logout by expiring the session cookie
func (ctl *UserController) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ctl.cookie.Name, "", -1, "/", "", ctl.cookie.Secure, true)
	respondMessage(c, "Déconnexion réussie")
}

// Me handles GET /api/auth/me
func (ctl *UserController) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := ctl.auth.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, newAuthResponse(user))
}

// ProfileRequest represents the editable fields of a buyer profile
type ProfileRequest struct {
	Name            *string `json:"nom"`
	Phone           *string `json:"telephone"`
	DeliveryAddress *string `json:"adresseLivraison"`
}

// GetProfile handles GET /api/client/profil
func (ctl *UserController) GetProfile(c *gin.Context) {
	ctl.Me(c)
}

// UpdateProfile handles PUT /api/client/profil
func (ctl *UserController) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Données de profil invalides", err)
		return
	}

	user, err := ctl.auth.UpdateProfile(c.Request.Context(), userID, services.ProfileUpdate{
		Name:            req.Name,
		Phone:           req.Phone,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Profil mis à jour avec succès",
		"data":    newAuthResponse(user),
	})
}
