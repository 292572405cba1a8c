package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/services"
)

// ModerationController handles the admin approval desk for sellers and listings
type ModerationController struct {
	moderation *services.ModerationService
}

// NewModerationController creates a moderation controller
func NewModerationController(moderation *services.ModerationService) *ModerationController {
	return &ModerationController{moderation: moderation}
}

// Sellers returns a handler listing sellers in the given approval state
func (ctl *ModerationController) Sellers(a services.Approval) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellers, err := ctl.moderation.Sellers(c.Request.Context(), a)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, sellers)
	}
}

// Listings returns a handler listing seller-products in the given approval state
func (ctl *ModerationController) Listings(a services.Approval) gin.HandlerFunc {
	return func(c *gin.Context) {
		listings, err := ctl.moderation.Listings(c.Request.Context(), a)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, listings)
	}
}

// ApproveSeller handles POST /api/admin/vendeurs/:id/approuver
func (ctl *ModerationController) ApproveSeller(c *gin.Context) {
	ctl.transition(c, ctl.moderation.ApproveSeller)
}

// BanSeller handles POST /api/admin/vendeurs/:id/bannir
func (ctl *ModerationController) BanSeller(c *gin.Context) {
	ctl.transition(c, ctl.moderation.BanSeller)
}

// RejectSeller handles DELETE /api/admin/vendeurs/:id/rejeter
func (ctl *ModerationController) RejectSeller(c *gin.Context) {
	ctl.transition(c, ctl.moderation.RejectSeller)
}

// ApproveListing handles POST /api/admin/vendeur-produits/:id/approuver
func (ctl *ModerationController) ApproveListing(c *gin.Context) {
	ctl.transition(c, ctl.moderation.ApproveListing)
}

// BanListing handles POST /api/admin/vendeur-produits/:id/bannir
func (ctl *ModerationController) BanListing(c *gin.Context) {
	ctl.transition(c, ctl.moderation.BanListing)
}

// RejectListing handles DELETE /api/admin/vendeur-produits/:id/rejeter
func (ctl *ModerationController) RejectListing(c *gin.Context) {
	ctl.transition(c, ctl.moderation.RejectListing)
}

// Stats handles GET /api/admin/statistiques
func (ctl *ModerationController) Stats(c *gin.Context) {
	stats, err := ctl.moderation.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, stats)
}

func (ctl *ModerationController) transition(c *gin.Context, apply func(context.Context, uint) (string, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	message, err := apply(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, message)
}
