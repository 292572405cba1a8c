package models

import "time"

// Review is a buyer's rating of a listing. Hidden reviews stay in the table
// but are left out of public listings and aggregates.
type Review struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	BuyerID         uint          `gorm:"not null;uniqueIndex:idx_review_buyer_sp" json:"clientId"`
	Buyer           User          `gorm:"foreignKey:BuyerID" json:"-"`
	SellerProductID uint          `gorm:"not null;uniqueIndex:idx_review_buyer_sp;index" json:"vendeurProduitId"`
	SellerProduct   SellerProduct `gorm:"foreignKey:SellerProductID;constraint:OnDelete:RESTRICT" json:"-"`
	Rating          int           `gorm:"not null;check:rating BETWEEN 1 AND 5" json:"note"`
	Comment         string        `gorm:"type:text" json:"commentaire"`
	Date            time.Time     `gorm:"not null" json:"date"`
	Positive        bool          `gorm:"not null" json:"estPositif"`
	Hidden          bool          `gorm:"not null;index" json:"estMasque"`
}

// TableName specifies the table name for the Review model
func (Review) TableName() string {
	return "reviews"
}
