package services

import (
	"context"
	"strings"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListingView is the wire form of a seller's listing
type ListingView struct {
	ID            uint            `json:"id"`
	SellerID      uint            `json:"vendeurId"`
	SellerName    string          `json:"vendeurNom"`
	ProductID     uint            `json:"produitId"`
	ProductName   string          `json:"produitNom"`
	CatalogPrice  decimal.Decimal `json:"prixOriginal"`
	Price         decimal.Decimal `json:"prixVendeur"`
	Image         string          `json:"image"`
	Description   string          `json:"description"`
	Title         string          `json:"titre"`
	Approved      bool            `json:"estApprouve"`
	CategoryID    *uint           `json:"categorieId,omitempty"`
	CategoryName  string          `json:"categorieNom"`
	StockQuantity int             `json:"quantiteStock"`
}

// toListingView expects Seller and Product.Category to be loaded
func toListingView(sp *models.SellerProduct) ListingView {
	description := sp.Description
	if description == "" {
		description = sp.Product.Description
	}
	return ListingView{
		ID:            sp.ID,
		SellerID:      sp.SellerID,
		SellerName:    sp.Seller.Name,
		ProductID:     sp.ProductID,
		ProductName:   sp.Product.Name,
		CatalogPrice:  sp.Product.Price,
		Price:         sp.Price,
		Image:         sp.DisplayImage(),
		Description:   description,
		Title:         sp.DisplayTitle(),
		Approved:      sp.Approved,
		CategoryID:    sp.Product.CategoryID,
		CategoryName:  sp.Product.CategoryName(""),
		StockQuantity: sp.Product.Stock,
	}
}

func toListingViews(list []models.SellerProduct) []ListingView {
	views := make([]ListingView, 0, len(list))
	for i := range list {
		views = append(views, toListingView(&list[i]))
	}
	return views
}

// indexPayload builds the AI indexing request for a loaded listing
func indexPayload(sp *models.SellerProduct) IndexedProduct {
	return IndexedProduct{
		ID:          sp.ID,
		VendorPrice: sp.Price,
		Title:       sp.DisplayTitle(),
		Description: sp.Description,
		ImageURL:    sp.DisplayImage(),
	}
}

// InscriptionInput is a seller's request to sell a catalog product
type InscriptionInput struct {
	ProductID   uint            `json:"produitId"`
	Price       decimal.Decimal `json:"prixVendeur"`
	Title       string          `json:"titre"`
	Description string          `json:"description"`
}

// ListingUpdate carries the editable fields of a listing. Image is the
// already-stored path of a new upload, empty to keep the current one.
type ListingUpdate struct {
	Title       string          `json:"titre"`
	Price       decimal.Decimal `json:"prixVendeur"`
	Description *string         `json:"description"`
	Image       string          `json:"-"`
}

// SellerProductService handles the seller side of listings
type SellerProductService struct {
	store   *repository.Store
	indexer *ProductIndexer
}

// NewSellerProductService creates a listing service; indexer may be nil
func NewSellerProductService(store *repository.Store, indexer *ProductIndexer) *SellerProductService {
	return &SellerProductService{store: store, indexer: indexer}
}

// Inscribe creates a pending listing for an approved seller
func (s *SellerProductService) Inscribe(ctx context.Context, sellerID uint, in InscriptionInput) (*ListingView, error) {
	if in.ProductID == 0 {
		return nil, NewValidation("L'ID du produit est requis")
	}
	if !in.Price.IsPositive() {
		return nil, NewValidation("Le prix vendeur doit être positif")
	}

	var view ListingView
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		seller, err := repository.LockUser(tx, sellerID)
		if repository.IsNotFound(err) || (err == nil && !seller.IsSeller()) {
			return NewNotFound("Vendeur non trouvé")
		}
		if err != nil {
			return err
		}
		if !seller.Approved {
			return NewConflict("SELLER_NOT_APPROVED", "Vous devez être approuvé par l'administrateur avant de pouvoir commercialiser des produits")
		}

		var product models.Product
		err = tx.First(&product, in.ProductID).Error
		if repository.IsNotFound(err) {
			return NewNotFound("Produit non trouvé")
		}
		if err != nil {
			return err
		}
		if in.Price.LessThanOrEqual(product.Price) {
			return NewValidation("Le prix vendeur doit être supérieur au prix du produit (%s)", product.Price.StringFixed(2))
		}

		var count int64
		if err := tx.Model(&models.SellerProduct{}).
			Where("seller_id = ? AND product_id = ?", sellerID, in.ProductID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return NewConflict("ALREADY_LISTED", "Vous êtes déjà inscrit pour commercialiser ce produit")
		}

		sp := models.SellerProduct{
			SellerID:    sellerID,
			ProductID:   product.ID,
			Price:       in.Price.Round(2),
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			Approved:    false,
		}
		if err := tx.Create(&sp).Error; err != nil {
			return err
		}
		loaded, err := repository.LoadSellerProduct(tx, sp.ID)
		if err != nil {
			return err
		}
		view = toListingView(loaded)
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de l'inscription au produit")
	}
	return &view, nil
}

// MyListings returns every listing of the seller, approved or not
func (s *SellerProductService) MyListings(ctx context.Context, sellerID uint) ([]ListingView, error) {
	list, err := s.store.Listings(ctx, sellerID)
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement des produits")
	}
	return toListingViews(list), nil
}

// MyListing returns one listing owned by the seller
func (s *SellerProductService) MyListing(ctx context.Context, sellerID, id uint) (*ListingView, error) {
	sp, err := s.owned(s.store.DB(ctx), sellerID, id)
	if err != nil {
		return nil, err
	}
	view := toListingView(sp)
	return &view, nil
}

// UpdateListing edits a seller's listing and re-indexes it for search
func (s *SellerProductService) UpdateListing(ctx context.Context, sellerID, id uint, in ListingUpdate) (*ListingView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, NewValidation("Le titre est requis")
	}
	if !in.Price.IsPositive() {
		return nil, NewValidation("Le prix vendeur doit être positif")
	}

	var updated *models.SellerProduct
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		sp, err := s.owned(repository.ForUpdate(tx), sellerID, id)
		if err != nil {
			return err
		}
		if in.Price.LessThanOrEqual(sp.Product.Price) {
			return NewValidation("Le prix vendeur doit être supérieur au prix du produit (%s)", sp.Product.Price.StringFixed(2))
		}

		changes := map[string]interface{}{
			"title": title,
			"price": in.Price.Round(2),
		}
		if in.Description != nil {
			changes["description"] = strings.TrimSpace(*in.Description)
		}
		if in.Image != "" {
			changes["image"] = in.Image
		}
		if err := tx.Model(&models.SellerProduct{}).Where("id = ?", sp.ID).Updates(changes).Error; err != nil {
			return err
		}
		updated, err = repository.LoadSellerProduct(tx, sp.ID)
		return err
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de la mise à jour du produit")
	}

	s.indexer.Enqueue(indexPayload(updated))
	view := toListingView(updated)
	return &view, nil
}

// ApprovedListings returns the public catalog of approved listings
func (s *SellerProductService) ApprovedListings(ctx context.Context) ([]ListingView, error) {
	var list []models.SellerProduct
	err := s.store.DB(ctx).
		Preload("Seller").
		Preload("Product.Category").
		Joins("JOIN users ON users.id = seller_products.seller_id").
		Where("seller_products.approved = ? AND users.approved = ?", true, true).
		Order("seller_products.id").
		Find(&list).Error
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement des produits")
	}
	return toListingViews(list), nil
}

func (s *SellerProductService) owned(db *gorm.DB, sellerID, id uint) (*models.SellerProduct, error) {
	var sp models.SellerProduct
	err := db.Preload("Seller").Preload("Product.Category").First(&sp, id).Error
	if repository.IsNotFound(err) {
		return nil, NewNotFound("Produit vendeur non trouvé")
	}
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement du produit")
	}
	if sp.SellerID != sellerID {
		return nil, NewForbidden("Ce produit ne vous appartient pas")
	}
	return &sp, nil
}
