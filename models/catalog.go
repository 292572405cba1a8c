package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups catalog products
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"nom"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName specifies the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// Product is a catalog entry holding the physical stock
type Product struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Name            string          `gorm:"not null" json:"nom"`
	Description     string          `gorm:"type:text" json:"description"`
	Price           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"prix"`
	Stock           int             `gorm:"not null;check:stock >= 0" json:"quantite"`
	Image           string          `json:"image,omitempty"`
	LastRestockDate *time.Time      `json:"dateDernierStock,omitempty"`
	CategoryID      *uint           `gorm:"index" json:"categorieId,omitempty"`
	Category        *Category       `gorm:"foreignKey:CategoryID" json:"categorie,omitempty"`
	CreatedAt       time.Time       `json:"-"`
	UpdatedAt       time.Time       `json:"-"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// CategoryName returns the category label or the given fallback
func (p Product) CategoryName(fallback string) string {
	if p.Category == nil {
		return fallback
	}
	return p.Category.Name
}

// SellerProduct is a seller's listing of a catalog product at their own price
type SellerProduct struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SellerID    uint            `gorm:"not null;uniqueIndex:idx_seller_product" json:"vendeurId"`
	Seller      User            `gorm:"foreignKey:SellerID" json:"-"`
	ProductID   uint            `gorm:"not null;uniqueIndex:idx_seller_product;index" json:"produitId"`
	Product     Product         `gorm:"foreignKey:ProductID" json:"-"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"prixVendeur"`
	Title       string          `json:"titre"`
	Description string          `gorm:"type:text" json:"description"`
	Image       string          `json:"image,omitempty"`
	Approved    bool            `gorm:"not null;index" json:"estApprouve"`
	CreatedAt   time.Time       `json:"-"`
	UpdatedAt   time.Time       `json:"-"`
}

// TableName specifies the table name for the SellerProduct model
func (SellerProduct) TableName() string {
	return "seller_products"
}

// Vendible requires both the listing and its seller to be approved.
// Seller and Product must be loaded.
func (sp SellerProduct) Vendible() bool {
	return sp.Approved && sp.Seller.Approved
}

// DisplayTitle falls back to the catalog name when the listing has no title
func (sp SellerProduct) DisplayTitle() string {
	if sp.Title != "" {
		return sp.Title
	}
	return sp.Product.Name
}

// DisplayImage falls back to the catalog image when the listing has none
func (sp SellerProduct) DisplayImage() string {
	if sp.Image != "" {
		return sp.Image
	}
	return sp.Product.Image
}
