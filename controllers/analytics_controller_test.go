package controllers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/services"
	"github.com/kendall-kelly/gestion-ventes-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

// salesEnv adds a second seller and three orders from yesterday: two
// delivered, one pending
func salesEnv(t *testing.T) (*testEnv, *models.SellerProduct) {
	t.Helper()
	e := newTestEnv(t)
	other := testutil.CreateUser(t, e.db, "autre-vendeur@example.com", models.RoleSeller, true)
	lime := testutil.CreateProduct(t, e.db, "Lime", "10.00", 50, e.category)
	otherListing := testutil.CreateListing(t, e.db, other, lime, "12.00", true)

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	testutil.CreateOrder(t, e.db, e.buyer, models.StatusDelivered, yesterday,
		testutil.LineSpec{Listing: e.listing, Quantity: 2, Price: "150.00"})
	testutil.CreateOrder(t, e.db, e.buyer, models.StatusDelivered, yesterday,
		testutil.LineSpec{Listing: otherListing, Quantity: 5, Price: "12.00"})
	testutil.CreateOrder(t, e.db, e.buyer, models.StatusPending, yesterday,
		testutil.LineSpec{Listing: e.listing, Quantity: 1, Price: "150.00"})
	return e, otherListing
}

func TestSellerKPIs(t *testing.T) {
	e, _ := salesEnv(t)

	w := doJSON(t, e.router(e.seller), http.MethodGet, "/api/analytics/vendeur/kpis", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var kpis services.KPIs
	decodeData(t, w, &kpis)
	assert.Equal(t, "300", kpis.Revenue.String())
	assert.Equal(t, int64(2), kpis.Orders)
	assert.Equal(t, int64(3), kpis.Items)
	assert.Equal(t, int64(1), kpis.Delivered)
	assert.Equal(t, int64(1), kpis.Pending)
	require.NotNil(t, kpis.BestSeller)
	assert.Equal(t, e.listing.ID, kpis.BestSeller.SellerProductID)
}

func TestAdminKPIs(t *testing.T) {
	e, _ := salesEnv(t)
	router := e.router(e.admin)

	w := doJSON(t, router, http.MethodGet, "/api/analytics/admin/kpis", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var kpis services.KPIs
	decodeData(t, w, &kpis)
	assert.Equal(t, "360", kpis.Revenue.String())
	assert.Equal(t, int64(3), kpis.Orders)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/analytics/admin/kpis?vendeurId=%d", e.seller.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &kpis)
	assert.Equal(t, "300", kpis.Revenue.String())

	old := time.Now().UTC().AddDate(0, -6, 0).Format("2006-01-02")
	older := time.Now().UTC().AddDate(0, -5, 0).Format("2006-01-02")
	w = doJSON(t, router, http.MethodGet, "/api/analytics/admin/kpis?dateDebut="+old+"&dateFin="+older, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &kpis)
	assert.True(t, kpis.Revenue.IsZero())
	assert.Zero(t, kpis.Orders)
}

func TestAnalytics_InvalidFilters(t *testing.T) {
	e := newTestEnv(t)
	router := e.router(e.admin)

	tests := []struct {
		name  string
		query string
	}{
		{"bad date", "dateDebut=31/12/2024"},
		{"dates reversed", "dateDebut=2024-06-01&dateFin=2024-05-01"},
		{"unknown sort", "triPar=POPULARITE"},
		{"unknown order", "ordreTri=UP"},
		{"unknown period", "typePeriode=ANNEE"},
		{"price range reversed", "prixMin=50&prixMax=10"},
		{"bad seller id", "vendeurId=x"},
		{"bad approval flag", "estApprouve=peut-etre"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodGet, "/api/analytics/admin/produits?"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestAnalyticsDashboards(t *testing.T) {
	e, _ := salesEnv(t)
	admin := e.router(e.admin)

	for _, path := range []string{
		"/api/analytics/admin/tendances?typePeriode=SEMAINE",
		"/api/analytics/admin/produits?triPar=CA&ordreTri=ASC",
		"/api/analytics/admin/categories",
		"/api/analytics/admin/recommandations",
	} {
		w := doJSON(t, admin, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, "%s: %s", path, w.Body.String())
	}

	w := doJSON(t, admin, http.MethodGet, "/api/analytics/admin/vendeurs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sellers services.SellerAnalytics
	decodeData(t, w, &sellers)
	assert.Len(t, sellers.Sellers, 2)
	assert.Equal(t, int64(2), sellers.Active)

	w = doJSON(t, admin, http.MethodGet, "/api/analytics/admin/categories", nil)
	var categories services.CategoryAnalytics
	decodeData(t, w, &categories)
	require.Len(t, categories.Categories, 1)
	assert.Equal(t, "Vernis", categories.Categories[0].Name)
	assert.Equal(t, "360", categories.Revenue.String())

	w = doJSON(t, e.router(e.seller), http.MethodGet, "/api/analytics/vendeur/recommandations", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, e.router(e.seller), http.MethodGet, "/api/analytics/admin/kpis", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSellerOrders(t *testing.T) {
	e, _ := salesEnv(t)
	router := e.router(e.seller)

	w := doJSON(t, router, http.MethodGet, "/api/analytics/vendeur/commandes", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var earnings services.Earnings
	decodeData(t, w, &earnings)
	assert.Equal(t, int64(2), earnings.Total)
	assert.Len(t, earnings.Orders, 2)
	assert.Equal(t, "100", earnings.Earned.String(), "margin of 50 per delivered unit")

	w = doJSON(t, router, http.MethodGet, "/api/analytics/vendeur/commandes?statut=EN_ATTENTE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &earnings)
	require.Len(t, earnings.Orders, 1)
	assert.Equal(t, models.StatusPending, earnings.Orders[0].Status)

	w = doJSON(t, router, http.MethodGet, "/api/analytics/vendeur/commandes?dateFin=demain", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExport(t *testing.T) {
	e, _ := salesEnv(t)
	router := e.router(e.seller)

	w := doJSON(t, router, http.MethodGet, "/api/analytics/vendeur/export", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data services.ExportData
	decodeData(t, w, &data)
	assert.Equal(t, services.ExportJSON, data.Type)
	assert.Equal(t, "VENDEUR", data.Role)
	require.NotNil(t, data.UserID)
	assert.Equal(t, e.seller.ID, *data.UserID)
	assert.NotEmpty(t, data.Summary)

	w = doJSON(t, router, http.MethodGet, "/api/analytics/vendeur/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	book, err := xlsx.OpenBinary(w.Body.Bytes())
	require.NoError(t, err)
	assert.NotEmpty(t, book.Sheets)
}

func TestBuyerRecommendations(t *testing.T) {
	e := newTestEnv(t)
	router := e.router(e.buyer)

	w := doJSON(t, router, http.MethodGet, "/api/client/recommendations", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list []services.ListingView
	decodeData(t, w, &list)
	assert.Empty(t, list, "no AI service configured")

	w = doJSON(t, router, http.MethodGet, "/api/client/recommendations?maxSimilarClients=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
