package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
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
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
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

// testEnv wires every controller to an in-memory database holding one
// admin, one buyer, one approved seller and one approved listing of a
// product with 5 units in stock
type testEnv struct {
	db       *gorm.DB
	store    *repository.Store
	objects  *services.MockObjectStore
	handlers *Handlers

	admin    *models.User
	buyer    *models.User
	seller   *models.User
	category *models.Category
	product  *models.Product
	listing  *models.SellerProduct
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	store := repository.New(db)
	objects := services.NewMockObjectStore()
	images := services.NewS3ImageStore(objects)

	tokens := services.NewTokenIssuer(testutil.TestJWTSecret, testutil.TestJWTIssuer, testutil.TestJWTAudience, time.Hour)
	analytics := services.NewAnalyticsService(store, nil, time.UTC)

	e := &testEnv{
		db:      db,
		store:   store,
		objects: objects,
		handlers: &Handlers{
			Users:      NewUserController(services.NewAuthService(store, tokens), CookieOptions{Name: testutil.TestCookieName, TTL: time.Hour}),
			Catalog:    NewCatalogController(services.NewCatalogService(store), images),
			Carts:      NewCartController(services.NewCartService(store)),
			Orders:     NewOrderController(services.NewOrderService(store, services.NopPublisher{}, nil)),
			Reviews:    NewReviewController(services.NewReviewService(store)),
			Listings:   NewListingController(services.NewSellerProductService(store, nil), images),
			Moderation: NewModerationController(services.NewModerationService(store, nil)),
			Analytics:  NewAnalyticsController(analytics, services.NewRecommendationService(analytics, store, nil)),
			CSV:        NewCSVController(services.NewCSVImportService(store, time.UTC)),
			Uploads:    NewUploadController(images, ""),
		},
	}

	e.admin = testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin, true)
	e.buyer = testutil.CreateUser(t, db, "client@example.com", models.RoleBuyer, true)
	e.seller = testutil.CreateUser(t, db, "vendeur@example.com", models.RoleSeller, true)
	e.category = testutil.CreateCategory(t, db, "Vernis")
	e.product = testutil.CreateProduct(t, db, "Vernis rouge", "100.00", 5, e.category)
	e.listing = testutil.CreateListing(t, db, e.seller, e.product, "150.00", true)
	return e
}

// router mounts every route. Authenticated routes see the given user, or
// answer 401 when user is nil.
func (e *testEnv) router(user *models.User) *gin.Engine {
	router := gin.New()
	authenticate := func(c *gin.Context) {
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "Authentification requise"},
			})
			return
		}
		testutil.SetMockAuthContext(c, user)
		c.Next()
	}
	RegisterRoutes(router, e.handlers, authenticate)
	return router
}

// apiResponse is the envelope every handler writes
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return doRequest(router, req)
}

// doForm sends a multipart form; file, when set, is attached under fileField
func doForm(t *testing.T, router *gin.Engine, method, path string, fields map[string]string, fileField, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return doRequest(router, req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) apiResponse {
	t.Helper()
	resp := decode(t, w)
	require.True(t, resp.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, out), string(resp.Data))
	return resp
}
