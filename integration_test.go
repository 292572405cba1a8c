package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

// SessionIntegrationTestSuite covers account sessions end to end: cookies,
// profile edits and approval changes seen by an already logged-in seller
type SessionIntegrationTestSuite struct {
	suite.Suite
	router *gin.Engine
	admin  *client
}

// SetupTest builds a fresh application for every test
func (suite *SessionIntegrationTestSuite) SetupTest() {
	suite.router = newTestServer(suite.T())
	suite.admin = suite.client()
	suite.admin.login("admin@affiliate.com", "admin123")
}

func (suite *SessionIntegrationTestSuite) client() *client {
	return &client{t: suite.T(), router: suite.router}
}

func (suite *SessionIntegrationTestSuite) TestCookieSession() {
	signup(suite.client(), "Nadia", "nadia@example.com", "CLIENT")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"NADIA@example.com","motDePasse":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	suite.router.ServeHTTP(w, req)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == testConfig(suite.T()).JWTCookieName {
			session = c
		}
	}
	suite.Require().NotNil(session, "login sets the session cookie")
	suite.True(session.HttpOnly)
	suite.NotEmpty(session.Value)

	// the cookie alone authenticates
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(session)
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"email":"nadia@example.com"`)

	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func (suite *SessionIntegrationTestSuite) TestSignupValidation() {
	signup(suite.client(), "Nadia", "nadia@example.com", "CLIENT")

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "missing email",
			body:           map[string]string{"nom": "A", "motDePasse": "secret123", "telephone": "06"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "malformed email",
			body:           map[string]string{"nom": "A", "email": "nope", "motDePasse": "secret123", "telephone": "06"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "short password",
			body:           map[string]string{"nom": "A", "email": "a@example.com", "motDePasse": "123", "telephone": "06"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "unknown role",
			body:           map[string]string{"nom": "A", "email": "a@example.com", "motDePasse": "secret123", "telephone": "06", "role": "GERANT"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "email taken",
			body:           map[string]string{"nom": "A", "email": "Nadia@Example.com", "motDePasse": "secret123", "telephone": "06"},
			expectedStatus: http.StatusConflict,
			expectedError:  "EMAIL_TAKEN",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			code, env := suite.client().do(http.MethodPost, "/api/auth/signup", tt.body)
			suite.Equal(tt.expectedStatus, code)
			suite.Equal(tt.expectedError, env.Error.Code)
		})
	}

	code, env := suite.client().do(http.MethodPost, "/api/auth/login", map[string]string{"email": "nadia@example.com", "motDePasse": "wrong-password"})
	suite.Equal(http.StatusUnauthorized, code)
	suite.Equal("INVALID_CREDENTIALS", env.Error.Code)
}

func (suite *SessionIntegrationTestSuite) TestProfileUpdate() {
	buyer := suite.client()
	signup(buyer, "Nadia", "nadia@example.com", "")
	buyer.login("nadia@example.com", "secret123")

	var profile struct {
		Name    string `json:"nom"`
		Address string `json:"adresseLivraison"`
	}
	buyer.must(http.StatusOK, http.MethodPut, "/api/client/profil", map[string]string{"adresseLivraison": "3 avenue Hassan II, Rabat"}, &profile)
	suite.Equal("Nadia", profile.Name)
	suite.Equal("3 avenue Hassan II, Rabat", profile.Address)

	buyer.must(http.StatusOK, http.MethodGet, "/api/client/profil", nil, &profile)
	suite.Equal("3 avenue Hassan II, Rabat", profile.Address)
}

func (suite *SessionIntegrationTestSuite) TestBannedSellerLosesSession() {
	seller := suite.client()
	signup(seller, "Omar", "omar@example.com", "VENDEUR")

	var pending []created
	suite.admin.must(http.StatusOK, http.MethodGet, "/api/admin/vendeurs/en-attente", nil, &pending)
	suite.Require().Len(pending, 1)
	suite.admin.must(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/admin/vendeurs/%d/approuver", pending[0].ID), nil, nil)

	seller.login("omar@example.com", "secret123")
	seller.must(http.StatusOK, http.MethodGet, "/api/vendeur/mes-produits", nil, nil)

	// the token stays valid but the account no longer is
	suite.admin.must(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/admin/vendeurs/%d/bannir", pending[0].ID), nil, nil)
	code, env := seller.do(http.MethodGet, "/api/vendeur/mes-produits", nil)
	suite.Equal(http.StatusForbidden, code)
	suite.Equal("ACCOUNT_PENDING_APPROVAL", env.Error.Code)
}

func TestSessionIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(SessionIntegrationTestSuite))
}
