package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/services"
)

// ReviewController handles /api/avis and the seller's review moderation
type ReviewController struct {
	reviews *services.ReviewService
}

// NewReviewController creates a review controller
func NewReviewController(reviews *services.ReviewService) *ReviewController {
	return &ReviewController{reviews: reviews}
}

// Post handles POST /api/avis
func (ctl *ReviewController) Post(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req services.ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request data", err)
		return
	}

	review, err := ctl.reviews.Post(c.Request.Context(), buyerID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, review)
}

// ForListing handles GET /api/avis/produit/:spId
func (ctl *ReviewController) ForListing(c *gin.Context) {
	spID, ok := pathID(c, "spId")
	if !ok {
		return
	}
	reviews, err := ctl.reviews.ForListing(c.Request.Context(), spID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, reviews)
}

// Stats handles GET /api/avis/produit/:spId/stats
func (ctl *ReviewController) Stats(c *gin.Context) {
	spID, ok := pathID(c, "spId")
	if !ok {
		return
	}
	stats, err := ctl.reviews.Stats(c.Request.Context(), spID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, stats)
}

// ForSeller handles GET /api/vendeur/avis
func (ctl *ReviewController) ForSeller(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	reviews, err := ctl.reviews.ForSeller(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, reviews)
}

// ToggleVisibility handles PUT /api/vendeur/avis/:id/toggle-visibilite
func (ctl *ReviewController) ToggleVisibility(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	message, err := ctl.reviews.ToggleVisibility(c.Request.Context(), sellerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, message)
}
