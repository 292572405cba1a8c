package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// client drives the API the way a front end does, with the bearer token
// returned by the login call
type client struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

type created struct {
	ID uint `json:"id"`
}

func (c *client) send(req *http.Request) (int, envelope) {
	c.t.Helper()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (c *client) do(method, path string, body interface{}) (int, envelope) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

// must performs a JSON call, checks the status and decodes data into out
func (c *client) must(status int, method, path string, body, out interface{}) envelope {
	c.t.Helper()
	code, env := c.do(method, path, body)
	require.Equal(c.t, status, code, "%s %s: %+v", method, path, env)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
	return env
}

// form posts url-encoded fields, the way the admin back office sends
// catalog entries without an image
func (c *client) form(status int, method, path string, fields url.Values, out interface{}) {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(fields.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, env := c.send(req)
	require.Equal(c.t, status, code, "%s %s: %+v", method, path, env)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
}

func (c *client) login(email, password string) {
	c.t.Helper()
	var session struct {
		Token string `json:"token"`
	}
	c.must(http.StatusOK, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "motDePasse": password}, &session)
	require.NotEmpty(c.t, session.Token)
	c.token = session.Token
}

func signup(c *client, name, email, role string) {
	c.t.Helper()
	c.must(http.StatusCreated, http.MethodPost, "/api/auth/signup", map[string]string{
		"nom":              name,
		"email":            email,
		"motDePasse":       "secret123",
		"telephone":        "0612345678",
		"role":             role,
		"adresseLivraison": "5 place des Nations, Casablanca",
	}, nil)
}

func TestMarketplaceFlow(t *testing.T) {
	router := newTestServer(t)
	admin := &client{t: t, router: router}
	seller := &client{t: t, router: router}
	buyer := &client{t: t, router: router}
	visitor := &client{t: t, router: router}

	admin.login("admin@affiliate.com", "admin123")

	var category, product created
	admin.form(http.StatusCreated, http.MethodPost, "/api/admin/categories", url.Values{"nom": {"Vernis"}}, &category)
	admin.form(http.StatusCreated, http.MethodPost, "/api/admin/produits", url.Values{
		"nom":         {"Vernis rouge"},
		"description": {"Longue tenue"},
		"prix":        {"100"},
		"quantite":    {"5"},
		"categorieId": {fmt.Sprint(category.ID)},
	}, &product)

	// a new seller waits for approval before logging in
	signup(visitor, "Omar", "omar@example.com", "VENDEUR")
	code, env := seller.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "omar@example.com", "motDePasse": "secret123"})
	require.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "ACCOUNT_PENDING_APPROVAL", env.Error.Code)

	var pending []created
	admin.must(http.StatusOK, http.MethodGet, "/api/admin/vendeurs/en-attente", nil, &pending)
	require.Len(t, pending, 1)
	admin.must(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/admin/vendeurs/%d/approuver", pending[0].ID), nil, nil)
	seller.login("omar@example.com", "secret123")

	var listing created
	seller.must(http.StatusCreated, http.MethodPost, "/api/vendeur/produits/inscrire", map[string]interface{}{
		"produitId": product.ID, "prixVendeur": "150", "titre": "Rouge passion",
	}, &listing)

	var storefront []created
	visitor.must(http.StatusOK, http.MethodGet, "/api/vendeur-produits/approuves", nil, &storefront)
	assert.Empty(t, storefront, "listings stay hidden until approved")

	admin.must(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/admin/vendeur-produits/%d/approuver", listing.ID), nil, nil)
	visitor.must(http.StatusOK, http.MethodGet, "/api/vendeur-produits/approuves", nil, &storefront)
	require.Len(t, storefront, 1)

	// the buyer fills a cart and turns it into an order
	signup(visitor, "Nadia", "nadia@example.com", "")
	buyer.login("nadia@example.com", "secret123")

	var cart struct {
		Total decimal.Decimal `json:"montantTotal"`
		Lines []created       `json:"lignesPanier"`
	}
	buyer.must(http.StatusOK, http.MethodPost, "/api/client/panier/ajouter", map[string]interface{}{"vendeurProduitId": listing.ID, "quantite": 2}, &cart)
	assert.True(t, cart.Total.Equal(decimal.NewFromInt(300)), cart.Total.String())

	var order struct {
		ID     uint            `json:"id"`
		Status string          `json:"statut"`
		Total  decimal.Decimal `json:"montantTotal"`
	}
	buyer.must(http.StatusCreated, http.MethodPost, "/api/client/commandes", map[string]interface{}{
		"lignesCommande": []map[string]interface{}{{"vendeurProduitId": listing.ID, "quantite": 2}},
	}, &order)
	assert.Equal(t, "PENDING", order.Status)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(300)))

	buyer.must(http.StatusOK, http.MethodGet, "/api/client/panier", nil, &cart)
	assert.Empty(t, cart.Lines, "placing the order empties the cart")

	var stock struct {
		Stock int `json:"quantite"`
	}
	visitor.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/produits/%d", product.ID), nil, &stock)
	assert.Equal(t, 3, stock.Stock)

	code, env = buyer.do(http.MethodPost, "/api/client/commandes", map[string]interface{}{
		"lignesCommande": []map[string]interface{}{{"vendeurProduitId": listing.ID, "quantite": 4}},
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)

	// the admin walks the order to delivery
	for _, status := range []string{"CONFIRMEE", "EN_COURS_LIVRAISON", "LIVREE"} {
		admin.must(http.StatusOK, http.MethodPut, fmt.Sprintf("/api/admin/commandes/%d/statut", order.ID), map[string]string{"statut": status}, &order)
	}
	assert.Equal(t, "DELIVERED", order.Status)
	code, _ = buyer.do(http.MethodPost, fmt.Sprintf("/api/client/commandes/%d/annuler", order.ID), nil)
	assert.Equal(t, http.StatusConflict, code)

	buyer.must(http.StatusCreated, http.MethodPost, "/api/avis", map[string]interface{}{
		"vendeurProduitId": listing.ID, "note": 5, "commentaire": "Excellent vernis",
	}, nil)

	var kpis struct {
		Revenue decimal.Decimal `json:"chiffreAffairesTotal"`
		Orders  int64           `json:"nombreTotalVentes"`
	}
	seller.must(http.StatusOK, http.MethodGet, "/api/analytics/vendeur/kpis", nil, &kpis)
	assert.True(t, kpis.Revenue.Equal(decimal.NewFromInt(300)), kpis.Revenue.String())
	assert.Equal(t, int64(1), kpis.Orders)

	var stats struct {
		Count int64 `json:"nombreAvis"`
	}
	visitor.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/avis/produit/%d/stats", listing.ID), nil, &stats)
	assert.Equal(t, int64(1), stats.Count)
}

func TestAuthenticationBoundaries(t *testing.T) {
	router := newTestServer(t)
	admin := &client{t: t, router: router}
	admin.login("admin@affiliate.com", "admin123")

	visitor := &client{t: t, router: router}
	signup(visitor, "Nadia", "nadia@example.com", "CLIENT")
	buyer := &client{t: t, router: router}
	buyer.login("nadia@example.com", "secret123")

	tests := []struct {
		name           string
		client         *client
		path           string
		expectedStatus int
		expectedError  string
	}{
		{"no token", visitor, "/api/admin/statistiques", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", &client{t: t, router: router, token: "not-a-jwt"}, "/api/admin/statistiques", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong role", buyer, "/api/admin/statistiques", http.StatusForbidden, "FORBIDDEN"},
		{"admin on buyer routes", admin, "/api/client/panier", http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := tt.client.do(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, code)
			assert.Equal(t, tt.expectedError, env.Error.Code)
		})
	}

	admin.must(http.StatusOK, http.MethodGet, "/api/admin/statistiques", nil, nil)
	buyer.must(http.StatusOK, http.MethodGet, "/api/auth/me", nil, nil)
}
