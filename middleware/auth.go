package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
)

// Context keys set on every authenticated request
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextUser   = "user"
	contextClaims = "validated_claims"
)

// CustomClaims contains the marketplace data carried by access tokens.
type CustomClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
}

// Validate rejects tokens without a known role
func (c CustomClaims) Validate(ctx context.Context) error {
	if _, ok := models.ParseRole(c.Role); !ok || c.Role == "" {
		return errors.New("token carries no valid role")
	}
	return nil
}

// TokenOptions mirrors the settings used to sign tokens at login
type TokenOptions struct {
	Secret     string
	Issuer     string
	Audience   string
	CookieName string
}

// Authenticator validates access tokens and loads the calling user
type Authenticator struct {
	jwt   *jwtmiddleware.JWTMiddleware
	store *repository.Store
}

// NewAuthenticator builds the HS256 validator. The token is read from the
// session cookie first, then from the Authorization header.
func NewAuthenticator(opts TokenOptions, store *repository.Store) (*Authenticator, error) {
	secret := []byte(opts.Secret)
	jwtValidator, err := validator.New(
		func(ctx context.Context) (interface{}, error) {
			return secret, nil
		},
		validator.HS256,
		opts.Issuer,
		[]string{opts.Audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		code, message := "INVALID_TOKEN", "Jeton invalide ou expiré"
		if errors.Is(err, jwtmiddleware.ErrJWTMissing) {
			code, message = "UNAUTHORIZED", "Authentification requise"
		} else {
			log.Printf("Encountered error while validating JWT: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		body := `{"success":false,"error":{"code":"` + code + `","message":"` + message + `"}}`
		if _, writeErr := w.Write([]byte(body)); writeErr != nil {
			log.Printf("Failed to write error response: %v", writeErr)
		}
	}

	extractor := jwtmiddleware.AuthHeaderTokenExtractor
	if opts.CookieName != "" {
		extractor = jwtmiddleware.MultiTokenExtractor(
			jwtmiddleware.CookieTokenExtractor(opts.CookieName),
			jwtmiddleware.AuthHeaderTokenExtractor,
		)
	}

	return &Authenticator{
		jwt: jwtmiddleware.New(
			jwtValidator.ValidateToken,
			jwtmiddleware.WithErrorHandler(errorHandler),
			jwtmiddleware.WithTokenExtractor(extractor),
		),
		store: store,
	}, nil
}

// RequireAuth checks the token, then loads the user it names. Sellers whose
// approval was withdrawn after login are refused.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			if !ok {
				abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Jeton invalide ou expiré")
				return
			}

			id, err := strconv.ParseUint(claims.RegisteredClaims.Subject, 10, 64)
			if err != nil {
				abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Jeton invalide ou expiré")
				return
			}

			var user models.User
			err = a.store.DB(r.Context()).First(&user, uint(id)).Error
			if repository.IsNotFound(err) {
				abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Utilisateur introuvable")
				return
			}
			if err != nil {
				abort(c, http.StatusInternalServerError, "DATABASE_ERROR", "Erreur lors du chargement de l'utilisateur")
				return
			}
			if !user.CanAuthenticate() {
				abort(c, http.StatusForbidden, "ACCOUNT_PENDING_APPROVAL", "Votre compte vendeur n'est pas approuvé")
				return
			}

			c.Set(ContextUserID, user.ID)
			c.Set(ContextRole, user.Role)
			c.Set(ContextUser, &user)
			c.Set(contextClaims, claims)
			passed = true
		}

		a.jwt.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole refuses callers whose role is not listed
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetRole(c)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentification requise")
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "FORBIDDEN", "Accès refusé pour ce rôle")
	}
}

// GetUserID extracts the authenticated user id from the Gin context
func GetUserID(c *gin.Context) (uint, error) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return 0, &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	id, ok := userID.(uint)
	if !ok {
		return 0, &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a uint"}
	}

	return id, nil
}

// GetRole extracts the authenticated user's role from the Gin context
func GetRole(c *gin.Context) (models.Role, error) {
	role, exists := c.Get(ContextRole)
	if !exists {
		return "", &AuthError{Code: "MISSING_ROLE", Message: "Role not found in context"}
	}

	r, ok := role.(models.Role)
	if !ok {
		return "", &AuthError{Code: "INVALID_ROLE", Message: "Role is not in the expected format"}
	}

	return r, nil
}

// GetUser returns the user loaded by RequireAuth
func GetUser(c *gin.Context) (*models.User, error) {
	user, exists := c.Get(ContextUser)
	if !exists {
		return nil, &AuthError{Code: "MISSING_USER", Message: "User not found in context"}
	}

	u, ok := user.(*models.User)
	if !ok {
		return nil, &AuthError{Code: "INVALID_USER", Message: "User is not in the expected format"}
	}

	return u, nil
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
