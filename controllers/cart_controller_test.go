package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/kendall-kelly/gestion-ventes-api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart(t *testing.T) {
	e := newTestEnv(t)
	router := e.router(e.buyer)

	w := doJSON(t, router, http.MethodGet, "/api/client/panier", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cart services.CartSnapshot
	decodeData(t, w, &cart)
	assert.Empty(t, cart.Lines)

	w = doJSON(t, router, http.MethodPost, "/api/client/panier/ajouter", CartLineRequest{SellerProductID: e.listing.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &cart)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 1, cart.Lines[0].Quantity, "a missing quantity adds one unit")

	w = doJSON(t, router, http.MethodPut, "/api/client/panier/modifier", CartLineRequest{SellerProductID: e.listing.ID, Quantity: 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &cart)
	assert.Equal(t, "600", cart.Total.String())
	assert.Equal(t, 5, cart.Lines[0].AvailableStock)

	w = doJSON(t, router, http.MethodPost, "/api/client/panier/ajouter", CartLineRequest{SellerProductID: e.listing.ID, Quantity: 2})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", decode(t, w).Error.Code)

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/client/panier/produit/%d", e.listing.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &cart)
	assert.Empty(t, cart.Lines)

	w = doJSON(t, router, http.MethodPost, "/api/client/panier/ajouter", CartLineRequest{SellerProductID: e.listing.ID, Quantity: 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodDelete, "/api/client/panier/vider", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Panier vidé avec succès", decode(t, w).Message)

	w = doJSON(t, router, http.MethodGet, "/api/client/panier", nil)
	decodeData(t, w, &cart)
	assert.Empty(t, cart.Lines)
	assert.True(t, cart.Total.IsZero())
}

func TestCart_Validation(t *testing.T) {
	e := newTestEnv(t)
	router := e.router(e.buyer)

	w := doJSON(t, router, http.MethodPost, "/api/client/panier/ajouter", map[string]int{"quantite": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/client/panier/ajouter", CartLineRequest{SellerProductID: 999, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
