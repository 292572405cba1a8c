package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/services"
)

// CartController handles /api/client/panier
type CartController struct {
	carts *services.CartService
}

// NewCartController creates a cart controller
func NewCartController(carts *services.CartService) *CartController {
	return &CartController{carts: carts}
}

// CartLineRequest represents the body of add and modify requests
type CartLineRequest struct {
	SellerProductID uint `json:"vendeurProduitId" binding:"required"`
	Quantity        int  `json:"quantite"`
}

// Get handles GET /api/client/panier
func (ctl *CartController) Get(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	cart, err := ctl.carts.Get(c.Request.Context(), buyerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, cart)
}

// Add handles POST /api/client/panier/ajouter. A missing quantity adds one unit.
func (ctl *CartController) Add(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "vendeurProduitId est obligatoire", err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart, err := ctl.carts.Add(c.Request.Context(), buyerID, req.SellerProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, cart)
}

// SetQuantity handles PUT /api/client/panier/modifier
func (ctl *CartController) SetQuantity(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "vendeurProduitId est obligatoire", err)
		return
	}

	cart, err := ctl.carts.SetQuantity(c.Request.Context(), buyerID, req.SellerProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, cart)
}

// Remove handles DELETE /api/client/panier/produit/:spId
func (ctl *CartController) Remove(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	spID, ok := pathID(c, "spId")
	if !ok {
		return
	}

	cart, err := ctl.carts.Remove(c.Request.Context(), buyerID, spID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, cart)
}

// Clear handles DELETE /api/client/panier/vider
func (ctl *CartController) Clear(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := ctl.carts.Clear(c.Request.Context(), buyerID); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Panier vidé avec succès")
}
