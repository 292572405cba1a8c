package repository

import (
	"context"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/shopspring/decimal"
)

// LineFact is the pre-joined order-line projection every analytics pass scans
type LineFact struct {
	LineID          uint
	OrderID         uint
	BuyerID         uint
	OrderedAt       time.Time
	Status          models.OrderStatus
	SellerProductID uint
	SellerID        uint
	ProductID       uint
	CategoryID      *uint
	Quantity        int
	UnitPrice       decimal.Decimal
	Subtotal        decimal.Decimal
	CatalogPrice    decimal.Decimal
	SellerPrice     decimal.Decimal
}

// FactFilter narrows OrderLineFacts. Zero values disable a criterion; To is
// exclusive.
type FactFilter struct {
	SellerID   uint
	CategoryID *uint
	From       time.Time
	To         time.Time
}

// OrderLineFacts returns one row per order line matching f, cancelled orders
// included
func (s *Store) OrderLineFacts(ctx context.Context, f FactFilter) ([]LineFact, error) {
	q := s.DB(ctx).
		Table("order_lines AS ol").
		Select(`ol.id AS line_id, o.id AS order_id, o.buyer_id, o.ordered_at, o.status,
			sp.id AS seller_product_id, sp.seller_id, p.id AS product_id, p.category_id,
			ol.quantity, ol.unit_price, ol.subtotal, p.price AS catalog_price, sp.price AS seller_price`).
		Joins("JOIN orders o ON o.id = ol.order_id").
		Joins("JOIN seller_products sp ON sp.id = ol.seller_product_id").
		Joins("JOIN products p ON p.id = sp.product_id")
	if f.SellerID != 0 {
		q = q.Where("sp.seller_id = ?", f.SellerID)
	}
	if f.CategoryID != nil {
		q = q.Where("p.category_id = ?", *f.CategoryID)
	}
	if !f.From.IsZero() {
		q = q.Where("o.ordered_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("o.ordered_at < ?", f.To.UTC())
	}

	var facts []LineFact
	if err := q.Order("o.ordered_at, ol.id").Scan(&facts).Error; err != nil {
		return nil, err
	}
	return facts, nil
}

// RatingStat aggregates the visible reviews of one listing
type RatingStat struct {
	SellerProductID uint
	Mean            float64
	Count           int
}

// ReviewStats returns mean rating and count of non-hidden reviews per listing
func (s *Store) ReviewStats(ctx context.Context) (map[uint]RatingStat, error) {
	var rows []RatingStat
	err := s.DB(ctx).Model(&models.Review{}).
		Select("seller_product_id, AVG(rating) AS mean, COUNT(*) AS count").
		Where("hidden = ?", false).
		Group("seller_product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]RatingStat, len(rows))
	for _, r := range rows {
		out[r.SellerProductID] = r
	}
	return out, nil
}

// Listings returns every seller-product with seller, product and category loaded
func (s *Store) Listings(ctx context.Context, sellerID uint) ([]models.SellerProduct, error) {
	q := s.DB(ctx).Preload("Seller").Preload("Product.Category")
	if sellerID != 0 {
		q = q.Where("seller_id = ?", sellerID)
	}
	var sps []models.SellerProduct
	if err := q.Order("id").Find(&sps).Error; err != nil {
		return nil, err
	}
	return sps, nil
}

// CollaborativeRow is one (buyer, category, quantity) triple
type CollaborativeRow struct {
	BuyerID  uint
	Category string
	Score    int
}

// CollaborativeRows sums ordered quantities per buyer and category
func (s *Store) CollaborativeRows(ctx context.Context) ([]CollaborativeRow, error) {
	var rows []CollaborativeRow
	err := s.DB(ctx).
		Table("order_lines AS ol").
		Select("o.buyer_id, c.name AS category, SUM(ol.quantity) AS score").
		Joins("JOIN orders o ON o.id = ol.order_id").
		Joins("JOIN seller_products sp ON sp.id = ol.seller_product_id").
		Joins("JOIN products p ON p.id = sp.product_id").
		Joins("JOIN categories c ON c.id = p.category_id").
		Group("o.buyer_id, c.name").
		Order("o.buyer_id, c.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListingsBoughtByOthers returns approved listings bought by any of buyerIDs
// and never bought by exclude
func (s *Store) ListingsBoughtByOthers(ctx context.Context, buyerIDs []uint, exclude uint) ([]models.SellerProduct, error) {
	if len(buyerIDs) == 0 {
		return nil, nil
	}
	db := s.DB(ctx)
	bought := db.Table("order_lines AS ol").
		Select("DISTINCT ol.seller_product_id").
		Joins("JOIN orders o ON o.id = ol.order_id").
		Where("o.buyer_id IN ?", buyerIDs)
	own := db.Table("order_lines AS ol2").
		Select("ol2.seller_product_id").
		Joins("JOIN orders o2 ON o2.id = ol2.order_id").
		Where("o2.buyer_id = ?", exclude)

	var sps []models.SellerProduct
	err := db.Preload("Seller").Preload("Product.Category").
		Where("approved = ?", true).
		Where("id IN (?)", bought).
		Where("id NOT IN (?)", own).
		Order("id").
		Find(&sps).Error
	if err != nil {
		return nil, err
	}
	return sps, nil
}

