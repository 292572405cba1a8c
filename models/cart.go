package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the per-buyer basket, created lazily
type Cart struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	BuyerID   uint       `gorm:"uniqueIndex;not null" json:"clientId"`
	Lines     []CartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time  `json:"dateCreation"`
	UpdatedAt time.Time  `json:"dateModification"`
}

// TableName specifies the table name for the Cart model
func (Cart) TableName() string {
	return "carts"
}

// CartLine holds a quantity of one listing with the price captured when it was added
type CartLine struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CartID          uint            `gorm:"not null;uniqueIndex:idx_cart_line" json:"-"`
	SellerProductID uint            `gorm:"not null;uniqueIndex:idx_cart_line" json:"vendeurProduitId"`
	SellerProduct   SellerProduct   `gorm:"foreignKey:SellerProductID;constraint:OnDelete:RESTRICT" json:"-"`
	Quantity        int             `gorm:"not null;check:quantity >= 1" json:"quantite"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"prixUnitaire"`
	CreatedAt       time.Time       `json:"-"`
	UpdatedAt       time.Time       `json:"-"`
}

// TableName specifies the table name for the CartLine model
func (CartLine) TableName() string {
	return "cart_lines"
}

// Subtotal is quantity × captured unit price
func (l CartLine) Subtotal() decimal.Decimal {
	return LineSubtotal(l.Quantity, l.UnitPrice)
}
