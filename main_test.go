package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/config"
	"github.com/kendall-kelly/gestion-ventes-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if os.Getenv("GO_ENV") == "" {
		os.Setenv("GO_ENV", "test")
	}
	if os.Getenv("GO_ENV") != "test" {
		os.Stderr.WriteString("refusing to run tests outside GO_ENV=test\n")
		os.Exit(1)
	}
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// testConfig mirrors what config.Load produces for a local test run
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DatabaseURL:        "sqlite::memory:",
		Port:               "0",
		GoEnv:              "test",
		JWTSecret:          testutil.TestJWTSecret,
		JWTExpiration:      time.Hour,
		JWTIssuer:          testutil.TestJWTIssuer,
		JWTAudience:        testutil.TestJWTAudience,
		JWTCookieName:      testutil.TestCookieName,
		UploadDir:          t.TempDir(),
		StorageBackend:     config.StorageLocal,
		AITimeout:          time.Second,
		Timezone:           "UTC",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		AdminEmail:         "admin@affiliate.com",
		AdminPassword:      "admin123",
	}
}

// newTestServer builds the full application on an in-memory database with
// the real JWT authenticator in front of the API
func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := testConfig(t)
	db := testutil.NewTestDB(t)

	a, err := newApp(context.Background(), cfg, db)
	require.NoError(t, err)
	t.Cleanup(a.close)
	return newRouter(cfg, db, a.handlers, a.auth.RequireAuth())
}

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	healthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response, 2)
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "Gestion ventes API is running", response["message"])
}

func TestDatabaseStatus(t *testing.T) {
	router := newTestServer(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/database/status", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Success bool     `json:"success"`
		Tables  []string `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Contains(t, response.Tables, "users")
	assert.Contains(t, response.Tables, "orders")
}

func TestCORSPreflight(t *testing.T) {
	router := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/client/commandes", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestDefaultAdminCreatedOnce(t *testing.T) {
	cfg := testConfig(t)
	db := testutil.NewTestDB(t)

	for i := 0; i < 2; i++ {
		a, err := newApp(context.Background(), cfg, db)
		require.NoError(t, err)
		a.close()
	}

	var count int64
	require.NoError(t, db.Table("users").Where("email = ?", cfg.AdminEmail).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
