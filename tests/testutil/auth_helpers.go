package testutil

import (
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/models"
)

// Token settings shared by every test that signs or validates a JWT
const (
	TestJWTSecret   = "test-secret-do-not-use-in-production"
	TestJWTIssuer   = "gestion-ventes"
	TestJWTAudience = "gestion-ventes-api"
	TestCookieName  = "jwt"
)

// SetMockAuthContext sets the keys the auth middleware would set for user.
// The literal keys match middleware.ContextUserID and friends; importing the
// middleware here would create a cycle with its own tests.
func SetMockAuthContext(c *gin.Context, user *models.User) {
	c.Set("user_id", user.ID)
	c.Set("role", user.Role)
	c.Set("user", user)
}

// CreateTestContext creates a test Gin context backed by a recorder
func CreateTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}
