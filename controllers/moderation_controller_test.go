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
)

func TestSellerLists(t *testing.T) {
	e := newTestEnv(t)
	pending := testutil.CreateUser(t, e.db, "pending@example.com", models.RoleSeller, false)
	router := e.router(e.admin)

	tests := []struct {
		path     string
		expected []uint
	}{
		{"/api/admin/vendeurs", []uint{e.seller.ID, pending.ID}},
		{"/api/admin/vendeurs/en-attente", []uint{pending.ID}},
		{"/api/admin/vendeurs/approuves", []uint{e.seller.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := doJSON(t, router, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, w.Code)
			var sellers []models.User
			decodeData(t, w, &sellers)
			ids := make([]uint, 0, len(sellers))
			for _, s := range sellers {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestSellerModeration(t *testing.T) {
	e := newTestEnv(t)
	router := e.router(e.admin)

	t.Run("ban takes the seller and their listings off sale", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/admin/vendeurs/%d/bannir", e.seller.ID), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, decode(t, w).Message, "banni avec succès")

		var seller models.User
		require.NoError(t, e.db.First(&seller, e.seller.ID).Error)
		assert.False(t, seller.Approved)
		var listing models.SellerProduct
		require.NoError(t, e.db.First(&listing, e.listing.ID).Error)
		assert.False(t, listing.Approved)
	})

	t.Run("approve restores the seller only", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/admin/vendeurs/%d/approuver", e.seller.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, decode(t, w).Message, "approuvé avec succès")

		var seller models.User
		require.NoError(t, e.db.First(&seller, e.seller.ID).Error)
		assert.True(t, seller.Approved)
		var listing models.SellerProduct
		require.NoError(t, e.db.First(&listing, e.listing.ID).Error)
		assert.False(t, listing.Approved)
	})

	t.Run("not a seller", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/admin/vendeurs/%d/approuver", e.buyer.ID), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRejectSeller(t *testing.T) {
	e := newTestEnv(t)
	router := e.router(e.admin)

	pending := testutil.CreateUser(t, e.db, "pending@example.com", models.RoleSeller, false)
	testutil.CreateListing(t, e.db, pending, e.product, "180.00", false)

	w := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/admin/vendeurs/%d/rejeter", pending.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Vendeur rejeté et supprimé", decode(t, w).Message)
	var count int64
	require.NoError(t, e.db.Model(&models.SellerProduct{}).Where("seller_id = ?", pending.ID).Count(&count).Error)
	assert.Zero(t, count)

	testutil.CreateOrder(t, e.db, e.buyer, models.StatusDelivered, time.Now(),
		testutil.LineSpec{Listing: e.listing, Quantity: 1, Price: "150.00"})
	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/admin/vendeurs/%d/rejeter", e.seller.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SELLER_HAS_SALES", decode(t, w).Error.Code)
}

func TestListingModeration(t *testing.T) {
	e := newTestEnv(t)
	router := e.router(e.admin)
	pending := testutil.CreateListing(t, e.db, e.seller, testutil.CreateProduct(t, e.db, "Top coat", "30.00", 4, nil), "40.00", false)

	w := doJSON(t, router, http.MethodGet, "/api/admin/vendeur-produits/en-attente", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listings []services.ListingView
	decodeData(t, w, &listings)
	require.Len(t, listings, 1)
	assert.Equal(t, pending.ID, listings[0].ID)

	approve := fmt.Sprintf("/api/admin/vendeur-produits/%d/approuver", pending.ID)
	w = doJSON(t, router, http.MethodPost, approve, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, approve, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_APPROVED", decode(t, w).Error.Code)

	w = doJSON(t, router, http.MethodGet, "/api/admin/vendeur-produits/approuves", nil)
	decodeData(t, w, &listings)
	assert.Len(t, listings, 2)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/admin/vendeur-produits/%d/bannir", pending.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Inscription du vendeur pour le produit bannie", decode(t, w).Message)

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/admin/vendeur-produits/%d/rejeter", pending.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, approve, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRejectListing_Referenced(t *testing.T) {
	e := newTestEnv(t)
	testutil.CreateReview(t, e.db, e.buyer, e.listing, 4, false)

	w := doJSON(t, e.router(e.admin), http.MethodDelete, fmt.Sprintf("/api/admin/vendeur-produits/%d/rejeter", e.listing.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LISTING_IN_USE", decode(t, w).Error.Code)
}

func TestPlatformStats(t *testing.T) {
	e := newTestEnv(t)
	testutil.CreateUser(t, e.db, "pending@example.com", models.RoleSeller, false)
	testutil.CreateOrder(t, e.db, e.buyer, models.StatusPending, time.Now(),
		testutil.LineSpec{Listing: e.listing, Quantity: 1, Price: "150.00"})

	w := doJSON(t, e.router(e.admin), http.MethodGet, "/api/admin/statistiques", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.PlatformStats
	decodeData(t, w, &stats)
	assert.Equal(t, services.PlatformStats{
		Sellers:         2,
		ApprovedSellers: 1,
		PendingSellers:  1,
		Products:        1,
		Categories:      1,
		Orders:          1,
		PendingListings: 0,
	}, stats)
}
