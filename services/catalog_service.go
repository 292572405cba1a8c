package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CategoryInput creates or edits a category. An empty Image keeps the
// current one on update.
type CategoryInput struct {
	Name  string
	Image string
}

// ProductInput creates or replaces a catalog product
type ProductInput struct {
	Name        string          `json:"nom"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"prix"`
	Stock       int             `json:"quantite"`
	Image       string          `json:"image"`
	CategoryID  *uint           `json:"categorieId"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidation("Le nom du produit est requis")
	}
	if in.Price.IsNegative() {
		return NewValidation("Le prix ne peut pas être négatif")
	}
	if in.Stock < 0 {
		return NewValidation("La quantité ne peut pas être négative")
	}
	return nil
}

// CatalogService manages categories and products
type CatalogService struct {
	store *repository.Store
	now   func() time.Time
}

// NewCatalogService creates a catalog service
func NewCatalogService(store *repository.Store) *CatalogService {
	return &CatalogService{store: store, now: time.Now}
}

// Categories lists every category by name
func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	var list []models.Category
	if err := s.store.DB(ctx).Order("name").Find(&list).Error; err != nil {
		return nil, Internal(err, "Erreur lors du chargement des catégories")
	}
	return list, nil
}

// Category returns one category
func (s *CatalogService) Category(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	err := s.store.DB(ctx).First(&c, id).Error
	if repository.IsNotFound(err) {
		return nil, NewNotFound("Catégorie non trouvée")
	}
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement de la catégorie")
	}
	return &c, nil
}

// CreateCategory adds a category with a unique name
func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, NewValidation("Le nom de la catégorie est requis")
	}

	c := models.Category{Name: name, Image: in.Image}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := uniqueCategoryName(tx, name, 0); err != nil {
			return err
		}
		return tx.Create(&c).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de la création de la catégorie")
	}
	return &c, nil
}

// UpdateCategory renames a category and optionally replaces its image
func (s *CatalogService) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, NewValidation("Le nom de la catégorie est requis")
	}

	var c models.Category
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		err := repository.ForUpdate(tx).First(&c, id).Error
		if repository.IsNotFound(err) {
			return NewNotFound("Catégorie non trouvée")
		}
		if err != nil {
			return err
		}
		if err := uniqueCategoryName(tx, name, id); err != nil {
			return err
		}
		c.Name = name
		if in.Image != "" {
			c.Image = in.Image
		}
		return tx.Save(&c).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de la mise à jour de la catégorie")
	}
	return &c, nil
}

// DeleteCategory removes a category and its products. It fails when any of
// those products was ever ordered or reviewed.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var c models.Category
		err := repository.ForUpdate(tx).First(&c, id).Error
		if repository.IsNotFound(err) {
			return NewNotFound("Catégorie non trouvée")
		}
		if err != nil {
			return err
		}

		var productIDs []uint
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Pluck("id", &productIDs).Error; err != nil {
			return err
		}
		if err := deleteProducts(tx, productIDs); err != nil {
			if errors.Is(err, repository.ErrListingReferenced) {
				return NewConflict("CATEGORY_IN_USE", "Impossible de supprimer la catégorie: des commandes référencent ses produits")
			}
			return err
		}
		return tx.Delete(&c).Error
	})
	return wrapDelete(err, "Erreur lors de la suppression de la catégorie")
}

// Products lists the catalog
func (s *CatalogService) Products(ctx context.Context) ([]models.Product, error) {
	return s.findProducts(s.store.DB(ctx))
}

// ProductsByCategory lists the products of one category
func (s *CatalogService) ProductsByCategory(ctx context.Context, categoryID uint) ([]models.Product, error) {
	return s.findProducts(s.store.DB(ctx).Where("category_id = ?", categoryID))
}

// SearchProducts matches product names case-insensitively
func (s *CatalogService) SearchProducts(ctx context.Context, name string) ([]models.Product, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(name)) + "%"
	return s.findProducts(s.store.DB(ctx).Where("LOWER(name) LIKE ?", pattern))
}

func (s *CatalogService) findProducts(db *gorm.DB) ([]models.Product, error) {
	var list []models.Product
	if err := db.Preload("Category").Order("id").Find(&list).Error; err != nil {
		return nil, Internal(err, "Erreur lors du chargement des produits")
	}
	return list, nil
}

// Product returns one product with its category
func (s *CatalogService) Product(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	err := s.store.DB(ctx).Preload("Category").First(&p, id).Error
	if repository.IsNotFound(err) {
		return nil, NewNotFound("Produit non trouvé")
	}
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement du produit")
	}
	return &p, nil
}

// CreateProduct adds a catalog product; its stock date is the creation time
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	p := models.Product{
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		Price:           in.Price.Round(2),
		Stock:           in.Stock,
		Image:           in.Image,
		LastRestockDate: &now,
		CategoryID:      in.CategoryID,
	}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := categoryExists(tx, in.CategoryID); err != nil {
			return err
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return tx.Preload("Category").First(&p, p.ID).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de la création du produit")
	}
	return &p, nil
}

// UpdateProduct replaces the fields of a product. An empty Image keeps the
// current one; the stock date moves only when the quantity changes.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var p *models.Product
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := categoryExists(tx, in.CategoryID); err != nil {
			return err
		}
		var err error
		if p, err = lockProduct(tx, id); err != nil {
			return err
		}
		changes := map[string]interface{}{
			"name":        strings.TrimSpace(in.Name),
			"description": in.Description,
			"price":       in.Price.Round(2),
			"category_id": in.CategoryID,
		}
		if in.Image != "" {
			changes["image"] = in.Image
		}
		if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return err
		}
		if _, err := repository.SetStock(tx, id, in.Stock, s.now()); err != nil {
			return err
		}
		return tx.Preload("Category").First(p, id).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de la mise à jour du produit")
	}
	return p, nil
}

// SetStock overwrites the stock of a product
func (s *CatalogService) SetStock(ctx context.Context, id uint, quantity int) (*models.Product, error) {
	if quantity < 0 {
		return nil, NewValidation("La quantité ne peut pas être négative")
	}

	var p *models.Product
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		p, err = repository.SetStock(tx, id, quantity, s.now())
		if repository.IsNotFound(err) {
			return NewNotFound("Produit non trouvé")
		}
		return err
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de la mise à jour du stock")
	}
	return p, nil
}

// DeleteProduct removes a product with its unreferenced listings
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := lockProduct(tx, id); err != nil {
			return err
		}
		if err := deleteProducts(tx, []uint{id}); err != nil {
			if errors.Is(err, repository.ErrListingReferenced) {
				return NewConflict("PRODUCT_IN_USE", "Impossible de supprimer le produit: il est référencé par des commandes ou des avis")
			}
			return err
		}
		return nil
	})
	return wrapDelete(err, "Erreur lors de la suppression du produit")
}

// deleteProducts cascades to listings explicitly, then removes the products
func deleteProducts(tx *gorm.DB, productIDs []uint) error {
	if len(productIDs) == 0 {
		return nil
	}
	listingIDs, err := repository.ListingIDs(tx, "product_id IN ?", productIDs)
	if err != nil {
		return err
	}
	if err := repository.DeleteListings(tx, listingIDs); err != nil {
		return err
	}
	return tx.Where("id IN ?", productIDs).Delete(&models.Product{}).Error
}

func lockProduct(tx *gorm.DB, id uint) (*models.Product, error) {
	p, err := repository.LockProduct(tx, id)
	if repository.IsNotFound(err) {
		return nil, NewNotFound("Produit non trouvé")
	}
	return p, err
}

func categoryExists(tx *gorm.DB, id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return NewNotFound("Catégorie non trouvée")
	}
	return nil
}

func uniqueCategoryName(tx *gorm.DB, name string, exceptID uint) error {
	var count int64
	if err := tx.Model(&models.Category{}).
		Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), exceptID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return NewConflict("CATEGORY_EXISTS", "Une catégorie nommée %q existe déjà", name)
	}
	return nil
}

func wrapDelete(err error, msg string) error {
	if err == nil {
		return nil
	}
	return wrapInternal(err, msg)
}
