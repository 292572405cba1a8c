package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/kendall-kelly/gestion-ventes-api/services"
	"github.com/kendall-kelly/gestion-ventes-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	if os.Getenv("GO_ENV") == "" {
		os.Setenv("GO_ENV", "test")
	}
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testOptions() TokenOptions {
	return TokenOptions{
		Secret:     testutil.TestJWTSecret,
		Issuer:     testutil.TestJWTIssuer,
		Audience:   testutil.TestJWTAudience,
		CookieName: testutil.TestCookieName,
	}
}

func issue(t *testing.T, secret string, user *models.User) string {
	t.Helper()
	issuer := services.NewTokenIssuer(secret, testutil.TestJWTIssuer, testutil.TestJWTAudience, time.Hour)
	token, _, err := issuer.Issue(user)
	require.NoError(t, err)
	return token
}

// protectedRouter exposes /me behind RequireAuth and /admin behind an ADMIN guard
func protectedRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()

	auth, err := NewAuthenticator(testOptions(), repository.New(db))
	require.NoError(t, err)

	router := gin.New()
	api := router.Group("/api", auth.RequireAuth())
	api.GET("/me", func(c *gin.Context) {
		id, err := GetUserID(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		role, _ := GetRole(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})
	api.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestRequireAuth(t *testing.T) {
	db := testutil.NewTestDB(t)
	buyer := testutil.CreateUser(t, db, "client@example.com", models.RoleBuyer, true)
	pending := testutil.CreateUser(t, db, "pending@example.com", models.RoleSeller, false)
	router := protectedRouter(t, db)

	tests := []struct {
		name           string
		setup          func(r *http.Request)
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "missing token",
			setup:          func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "UNAUTHORIZED",
		},
		{
			name: "bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+issue(t, testutil.TestJWTSecret, buyer))
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "session cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: testutil.TestCookieName, Value: issue(t, testutil.TestJWTSecret, buyer)})
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "wrong signing secret",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+issue(t, "another-secret", buyer))
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "INVALID_TOKEN",
		},
		{
			name: "garbage token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer not.a.jwt")
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "INVALID_TOKEN",
		},
		{
			name: "seller no longer approved",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+issue(t, testutil.TestJWTSecret, pending))
			},
			expectedStatus: http.StatusForbidden,
			expectedError:  "ACCOUNT_PENDING_APPROVAL",
		},
		{
			name: "user deleted after login",
			setup: func(r *http.Request) {
				ghost := &models.User{ID: 9999, Role: models.RoleBuyer, Email: "ghost@example.com"}
				r.Header.Set("Authorization", "Bearer "+issue(t, testutil.TestJWTSecret, ghost))
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "INVALID_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(t, w))
				return
			}

			var body struct {
				ID   uint   `json:"id"`
				Role string `json:"role"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, buyer.ID, body.ID)
			assert.Equal(t, "CLIENT", body.Role)
		})
	}
}

func TestRequireRole(t *testing.T) {
	db := testutil.NewTestDB(t)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin, true)
	buyer := testutil.CreateUser(t, db, "client@example.com", models.RoleBuyer, true)
	router := protectedRouter(t, db)

	call := func(u *models.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t, testutil.TestJWTSecret, u))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call(admin).Code)

	w := call(buyer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))
}

func TestRequireRole_WithoutAuthentication(t *testing.T) {
	c, w := testutil.CreateTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RequireRole(models.RoleAdmin)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContextAccessors(t *testing.T) {
	c, _ := testutil.CreateTestContext()

	_, err := GetUserID(c)
	assert.Error(t, err)
	_, err = GetUser(c)
	assert.Error(t, err)

	user := &models.User{ID: 7, Role: models.RoleSeller}
	testutil.SetMockAuthContext(c, user)

	id, err := GetUserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	role, err := GetRole(c)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSeller, role)

	got, err := GetUser(c)
	require.NoError(t, err)
	assert.Same(t, user, got)

	c.Set(ContextUserID, "7")
	_, err = GetUserID(c)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "INVALID_USER_ID", authErr.Code)
}

func TestCustomClaims_Validate(t *testing.T) {
	assert.NoError(t, CustomClaims{Role: "VENDEUR"}.Validate(context.Background()))
	assert.Error(t, CustomClaims{Role: ""}.Validate(context.Background()))
	assert.Error(t, CustomClaims{Role: "ROOT"}.Validate(context.Background()))
}
