package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/kendall-kelly/gestion-ventes-api/services"
	"github.com/kendall-kelly/gestion-ventes-api/utils"
	"github.com/shopspring/decimal"
)

// ListingController handles the seller's listings and the public storefront
type ListingController struct {
	listings *services.SellerProductService
	images   services.ImageStore
}

// NewListingController creates a listing controller
func NewListingController(listings *services.SellerProductService, images services.ImageStore) *ListingController {
	return &ListingController{listings: listings, images: images}
}

// Approved handles GET /api/vendeur-produits/approuves
func (ctl *ListingController) Approved(c *gin.Context) {
	listings, err := ctl.listings.ApprovedListings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, listings)
}

// Inscribe handles POST /api/vendeur/produits/inscrire
func (ctl *ListingController) Inscribe(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req services.InscriptionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request data", err)
		return
	}

	listing, err := ctl.listings.Inscribe(c.Request.Context(), sellerID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Produit inscrit avec succès. En attente d'approbation par l'administrateur.",
		"data":    listing,
	})
}

// MyListings handles GET /api/vendeur/mes-produits
func (ctl *ListingController) MyListings(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	listings, err := ctl.listings.MyListings(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, listings)
}

// MyListing handles GET /api/vendeur/mes-produits/:id
func (ctl *ListingController) MyListing(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	listing, err := ctl.listings.MyListing(c.Request.Context(), sellerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, listing)
}

// UpdateListing handles PUT /api/vendeur/mes-produits/:id. It accepts a JSON
// body or a multipart form carrying an optional replacement image.
func (ctl *ListingController) UpdateListing(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var in services.ListingUpdate
	if c.ContentType() == binding.MIMEJSON {
		if err := c.ShouldBindJSON(&in); err != nil {
			respondValidation(c, "Invalid request data", err)
			return
		}
	} else {
		price, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("prixVendeur")))
		if err != nil {
			respondValidation(c, "Le prix vendeur est obligatoire et doit être numérique", err)
			return
		}
		in.Title = c.PostForm("titre")
		in.Price = price
		if description, exists := c.GetPostForm("description"); exists {
			in.Description = &description
		}
	}

	previous, err := ctl.listings.MyListing(c.Request.Context(), sellerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if in.Image, ok = saveFormImage(c, ctl.images, utils.FolderSellerProducts); !ok {
		return
	}

	listing, err := ctl.listings.UpdateListing(c.Request.Context(), sellerID, id, in)
	if err != nil {
		discardImage(c, ctl.images, in.Image)
		respondError(c, err)
		return
	}
	// the displayed image falls back to the product's, which is not ours to delete
	ownImage := strings.HasPrefix(previous.Image, utils.PublicPrefix+"/"+utils.FolderSellerProducts+"/")
	if in.Image != "" && ownImage && previous.Image != in.Image {
		discardImage(c, ctl.images, previous.Image)
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Produit mis à jour avec succès",
		"data":    listing,
	})
}
