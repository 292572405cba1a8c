package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/services"
)

// AnalyticsController serves the seller and admin dashboards
type AnalyticsController struct {
	analytics       *services.AnalyticsService
	recommendations *services.RecommendationService
}

// NewAnalyticsController creates an analytics controller
func NewAnalyticsController(analytics *services.AnalyticsService, recommendations *services.RecommendationService) *AnalyticsController {
	return &AnalyticsController{analytics: analytics, recommendations: recommendations}
}

// sellerScope is 0 for admin routes and the caller's id for seller routes.
// Admin routes may still narrow to one seller through vendeurId.
type sellerScope func(c *gin.Context) (uint, bool)

// AdminScope leaves the dashboard platform-wide
func AdminScope(c *gin.Context) (uint, bool) {
	return 0, true
}

// SellerScope restricts the dashboard to the authenticated seller
func SellerScope(c *gin.Context) (uint, bool) {
	return currentUserID(c)
}

// KPIs handles GET /api/analytics/{admin,vendeur}/kpis
func (ctl *AnalyticsController) KPIs(scope sellerScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, f, ok := analyticsRequest(c, scope)
		if !ok {
			return
		}
		kpis, err := ctl.analytics.KPIs(c.Request.Context(), sellerID, f)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, kpis)
	}
}

// Trends handles GET /api/analytics/{admin,vendeur}/tendances
func (ctl *AnalyticsController) Trends(scope sellerScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, f, ok := analyticsRequest(c, scope)
		if !ok {
			return
		}
		trends, err := ctl.analytics.Trends(c.Request.Context(), sellerID, f)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, trends)
	}
}

// Products handles GET /api/analytics/{admin,vendeur}/produits
func (ctl *AnalyticsController) Products(scope sellerScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, f, ok := analyticsRequest(c, scope)
		if !ok {
			return
		}
		products, err := ctl.analytics.Products(c.Request.Context(), sellerID, f)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, products)
	}
}

// Categories handles GET /api/analytics/{admin,vendeur}/categories
func (ctl *AnalyticsController) Categories(scope sellerScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, f, ok := analyticsRequest(c, scope)
		if !ok {
			return
		}
		categories, err := ctl.analytics.Categories(c.Request.Context(), sellerID, f)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, categories)
	}
}

// Sellers handles GET /api/analytics/admin/vendeurs
func (ctl *AnalyticsController) Sellers(c *gin.Context) {
	_, f, ok := analyticsRequest(c, AdminScope)
	if !ok {
		return
	}
	sellers, err := ctl.analytics.Sellers(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, sellers)
}

// SellerRecommendations handles GET /api/analytics/vendeur/recommandations
func (ctl *AnalyticsController) SellerRecommendations(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	recs, err := ctl.recommendations.ForSeller(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, recs)
}

// AdminRecommendations handles GET /api/analytics/admin/recommandations
func (ctl *AnalyticsController) AdminRecommendations(c *gin.Context) {
	recs, err := ctl.recommendations.ForAdmin(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, recs)
}

// BuyerRecommendations handles GET /api/client/recommendations?maxSimilarClients=
func (ctl *AnalyticsController) BuyerRecommendations(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	k := 0
	if raw := strings.TrimSpace(c.Query("maxSimilarClients")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			respondValidation(c, "maxSimilarClients doit être un entier", err)
			return
		}
		k = v
	}

	listings, err := ctl.recommendations.ForBuyer(c.Request.Context(), buyerID, k)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, listings)
}

// SellerOrders handles GET /api/analytics/vendeur/commandes?statut=&dateDebut=&dateFin=
func (ctl *AnalyticsController) SellerOrders(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	from, ok := queryDate(c, "dateDebut")
	if !ok {
		return
	}
	to, ok := queryDate(c, "dateFin")
	if !ok {
		return
	}

	earnings, err := ctl.analytics.Earnings(c.Request.Context(), sellerID, c.Query("statut"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, earnings)
}

// Export handles GET /api/analytics/{admin,vendeur}/export. format=xlsx
// streams a workbook instead of the JSON payload.
func (ctl *AnalyticsController) Export(scope sellerScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, f, ok := analyticsRequest(c, scope)
		if !ok {
			return
		}
		data, err := ctl.analytics.Export(c.Request.Context(), sellerID, f, c.Query("format"))
		if err != nil {
			respondError(c, err)
			return
		}

		if data.Type != services.ExportExcel {
			respondData(c, http.StatusOK, data)
			return
		}
		name := fmt.Sprintf("analytics-%s.xlsx", data.ExportedAt.Format("20060102-150405"))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Status(http.StatusOK)
		if err := services.WriteXLSX(c.Writer, data); err != nil {
			// headers are gone, the truncated body is all the client gets
			c.Error(err)
		}
	}
}

// analyticsRequest resolves the scope and reads the filter query parameters
func analyticsRequest(c *gin.Context, scope sellerScope) (uint, services.Filter, bool) {
	var f services.Filter
	sellerID, ok := scope(c)
	if !ok {
		return 0, f, false
	}

	if f.DateFrom, ok = queryDate(c, "dateDebut"); !ok {
		return 0, f, false
	}
	if f.DateTo, ok = queryDate(c, "dateFin"); !ok {
		return 0, f, false
	}
	if f.CategoryID, ok = queryUint(c, "categorieId"); !ok {
		return 0, f, false
	}
	if sellerID == 0 {
		if f.SellerID, ok = queryUint(c, "vendeurId"); !ok {
			return 0, f, false
		}
	}
	if f.PriceMin, ok = queryDecimal(c, "prixMin"); !ok {
		return 0, f, false
	}
	if f.PriceMax, ok = queryDecimal(c, "prixMax"); !ok {
		return 0, f, false
	}
	if f.MinRating, ok = queryFloat(c, "noteMinimale"); !ok {
		return 0, f, false
	}
	if f.MinReviews, ok = queryInt(c, "nombreReviewsMin"); !ok {
		return 0, f, false
	}
	if f.OnlyApproved, ok = queryBool(c, "estApprouve"); !ok {
		return 0, f, false
	}

	f.SortBy = c.Query("triPar")
	f.Order = c.Query("ordreTri")
	if f.Order == "" {
		f.Order = c.Query("ordre")
	}
	f.PeriodType = c.Query("typePeriode")

	if err := f.Normalize(); err != nil {
		respondError(c, err)
		return 0, f, false
	}
	return sellerID, f, true
}
