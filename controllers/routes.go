package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/middleware"
	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/services"
)

// Handlers groups every controller mounted by RegisterRoutes
type Handlers struct {
	Users      *UserController
	Catalog    *CatalogController
	Carts      *CartController
	Orders     *OrderController
	Reviews    *ReviewController
	Listings   *ListingController
	Moderation *ModerationController
	Analytics  *AnalyticsController
	CSV        *CSVController
	Uploads    *UploadController
}

// RegisterRoutes mounts the API on router. authenticate must set the user id
// and role on the context; role guards run after it.
func RegisterRoutes(router *gin.Engine, h *Handlers, authenticate gin.HandlerFunc) {
	router.GET("/uploads/:folder/:filename", h.Uploads.GetUploadedImage)

	api := router.Group("/api")

	// Public catalog
	api.GET("/categories", h.Catalog.ListCategories)
	api.GET("/categories/:id", h.Catalog.GetCategory)
	api.GET("/produits", h.Catalog.ListProducts)
	api.GET("/produits/search", h.Catalog.SearchProducts)
	api.GET("/produits/categorie/:id", h.Catalog.ProductsByCategory)
	api.GET("/produits/:id", h.Catalog.GetProduct)
	api.GET("/vendeur-produits/approuves", h.Listings.Approved)
	api.GET("/avis/produit/:spId", h.Reviews.ForListing)
	api.GET("/avis/produit/:spId/stats", h.Reviews.Stats)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", h.Users.Signup)
		auth.POST("/login", h.Users.Login)
		auth.POST("/logout", h.Users.Logout)
		auth.GET("/me", authenticate, h.Users.Me)
	}

	api.POST("/avis", authenticate, middleware.RequireRole(models.RoleBuyer), h.Reviews.Post)

	client := api.Group("/client", authenticate, middleware.RequireRole(models.RoleBuyer))
	{
		client.GET("/profil", h.Users.GetProfile)
		client.PUT("/profil", h.Users.UpdateProfile)
		client.POST("/commandes", h.Orders.CreateOrder)
		client.GET("/commandes", h.Orders.ListMyOrders)
		client.GET("/commandes/:id", h.Orders.GetMyOrder)
		client.POST("/commandes/:id/annuler", h.Orders.CancelMyOrder)
		client.GET("/has-orders", h.Orders.HasOrders)
		client.GET("/recommendations", h.Analytics.BuyerRecommendations)

		client.GET("/panier", h.Carts.Get)
		client.POST("/panier/ajouter", h.Carts.Add)
		client.PUT("/panier/modifier", h.Carts.SetQuantity)
		client.DELETE("/panier/produit/:spId", h.Carts.Remove)
		client.DELETE("/panier/vider", h.Carts.Clear)
	}

	seller := api.Group("/vendeur", authenticate, middleware.RequireRole(models.RoleSeller))
	{
		seller.POST("/produits/inscrire", h.Listings.Inscribe)
		seller.GET("/mes-produits", h.Listings.MyListings)
		seller.GET("/mes-produits/:id", h.Listings.MyListing)
		seller.PUT("/mes-produits/:id", h.Listings.UpdateListing)
		seller.GET("/avis", h.Reviews.ForSeller)
		seller.PUT("/avis/:id/toggle-visibilite", h.Reviews.ToggleVisibility)
	}

	admin := api.Group("/admin", authenticate, middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/vendeurs", h.Moderation.Sellers(services.ApprovalAny))
		admin.GET("/vendeurs/en-attente", h.Moderation.Sellers(services.ApprovalPending))
		admin.GET("/vendeurs/approuves", h.Moderation.Sellers(services.ApprovalApproved))
		admin.POST("/vendeurs/:id/approuver", h.Moderation.ApproveSeller)
		admin.POST("/vendeurs/:id/bannir", h.Moderation.BanSeller)
		admin.DELETE("/vendeurs/:id/rejeter", h.Moderation.RejectSeller)

		admin.GET("/vendeur-produits", h.Moderation.Listings(services.ApprovalAny))
		admin.GET("/vendeur-produits/en-attente", h.Moderation.Listings(services.ApprovalPending))
		admin.GET("/vendeur-produits/approuves", h.Moderation.Listings(services.ApprovalApproved))
		admin.POST("/vendeur-produits/:id/approuver", h.Moderation.ApproveListing)
		admin.POST("/vendeur-produits/:id/bannir", h.Moderation.BanListing)
		admin.DELETE("/vendeur-produits/:id/rejeter", h.Moderation.RejectListing)

		admin.GET("/categories", h.Catalog.ListCategories)
		admin.POST("/categories", h.Catalog.CreateCategory)
		admin.PUT("/categories/:id", h.Catalog.UpdateCategory)
		admin.DELETE("/categories/:id", h.Catalog.DeleteCategory)

		admin.GET("/produits", h.Catalog.ListProducts)
		admin.POST("/produits", h.Catalog.CreateProduct)
		admin.PUT("/produits/:id", h.Catalog.UpdateProduct)
		admin.PUT("/produits/:id/stock", h.Catalog.UpdateStock)
		admin.DELETE("/produits/:id", h.Catalog.DeleteProduct)

		admin.GET("/commandes", h.Orders.ListOrders)
		admin.GET("/commandes/:id", h.Orders.GetOrder)
		admin.PUT("/commandes/:id/statut", h.Orders.UpdateStatus)

		admin.GET("/statistiques", h.Moderation.Stats)

		admin.POST("/csv/import", h.CSV.Import)
		admin.POST("/csv/valider", h.CSV.Validate)
		admin.GET("/csv/exemple", h.CSV.Sample)

		admin.POST("/uploads/:folder", h.Uploads.Upload)
	}

	sellerAnalytics := api.Group("/analytics/vendeur", authenticate, middleware.RequireRole(models.RoleSeller))
	{
		sellerAnalytics.GET("/kpis", h.Analytics.KPIs(SellerScope))
		sellerAnalytics.GET("/tendances", h.Analytics.Trends(SellerScope))
		sellerAnalytics.GET("/produits", h.Analytics.Products(SellerScope))
		sellerAnalytics.GET("/categories", h.Analytics.Categories(SellerScope))
		sellerAnalytics.GET("/recommandations", h.Analytics.SellerRecommendations)
		sellerAnalytics.GET("/commandes", h.Analytics.SellerOrders)
		sellerAnalytics.GET("/export", h.Analytics.Export(SellerScope))
	}

	adminAnalytics := api.Group("/analytics/admin", authenticate, middleware.RequireRole(models.RoleAdmin))
	{
		adminAnalytics.GET("/kpis", h.Analytics.KPIs(AdminScope))
		adminAnalytics.GET("/tendances", h.Analytics.Trends(AdminScope))
		adminAnalytics.GET("/produits", h.Analytics.Products(AdminScope))
		adminAnalytics.GET("/categories", h.Analytics.Categories(AdminScope))
		adminAnalytics.GET("/vendeurs", h.Analytics.Sellers)
		adminAnalytics.GET("/recommandations", h.Analytics.AdminRecommendations)
		adminAnalytics.GET("/export", h.Analytics.Export(AdminScope))
	}
}
