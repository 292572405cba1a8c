package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientStock is returned by AdjustStock when a decrement would
// take a product below zero
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrListingReferenced is returned by DeleteListings when an order line or a
// review still points at one of the listings
var ErrListingReferenced = errors.New("listing referenced by orders or reviews")

// Store is the typed gateway to the relational store. Every mutating service
// call goes through exactly one Transaction.
type Store struct {
	db *gorm.DB
}

// New wraps an opened gorm connection
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns a session bound to ctx for read paths
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Transaction runs fn in a single database transaction. Any error returned by
// fn, or a cancelled ctx, rolls the whole scope back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Ping checks the underlying connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// ForUpdate adds SELECT ... FOR UPDATE. Drivers without row locks ignore it.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// IsNotFound reports whether err is gorm's missing-row error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation reports whether err comes from a unique index. Drivers
// opened with TranslateError return gorm.ErrDuplicatedKey; the message check
// covers connections opened without it.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}

// LockProduct loads a product row and holds its lock until the transaction ends
func LockProduct(tx *gorm.DB, id uint) (*models.Product, error) {
	var p models.Product
	if err := ForUpdate(tx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// LockUser loads a user row under lock; used to serialize moderation writes
func LockUser(tx *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := ForUpdate(tx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// LockCart loads the buyer's cart under lock, creating it on first touch
func LockCart(tx *gorm.DB, buyerID uint) (*models.Cart, error) {
	var cart models.Cart
	err := ForUpdate(tx).Where("buyer_id = ?", buyerID).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	cart = models.Cart{BuyerID: buyerID}
	if err := tx.Create(&cart).Error; err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return &cart, nil
}

// TouchCart refreshes the cart modification timestamp
func TouchCart(tx *gorm.DB, cartID uint, at time.Time) error {
	return tx.Model(&models.Cart{}).Where("id = ?", cartID).Update("updated_at", at).Error
}

// LoadSellerProduct loads a listing with its seller, product and category
func LoadSellerProduct(tx *gorm.DB, id uint) (*models.SellerProduct, error) {
	var sp models.SellerProduct
	err := tx.Preload("Seller").Preload("Product.Category").First(&sp, id).Error
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// AdjustStock adds delta to a product's stock and stamps last_restock_date.
// A negative delta that would leave the stock below zero fails with
// ErrInsufficientStock and writes nothing.
func AdjustStock(tx *gorm.DB, productID uint, delta int, at time.Time) error {
	if delta == 0 {
		return nil
	}
	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", productID, delta).
		Updates(map[string]interface{}{
			"stock":             gorm.Expr("stock + ?", delta),
			"last_restock_date": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// SetStock overwrites the stock; last_restock_date moves only when the value changes
func SetStock(tx *gorm.DB, productID uint, quantity int, at time.Time) (*models.Product, error) {
	p, err := LockProduct(tx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock == quantity {
		return p, nil
	}
	if err := AdjustStock(tx, productID, quantity-p.Stock, at); err != nil {
		return nil, err
	}
	p.Stock = quantity
	p.LastRestockDate = &at
	return p, nil
}

// ClearCart deletes every line of the buyer's cart, if any
func ClearCart(tx *gorm.DB, buyerID uint, at time.Time) error {
	var cart models.Cart
	err := ForUpdate(tx).Where("buyer_id = ?", buyerID).First(&cart).Error
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartLine{}).Error; err != nil {
		return err
	}
	return TouchCart(tx, cart.ID, at)
}

// DeleteListings removes listings together with the cart lines holding them.
// Listings that appear in an order line or a review are never deleted.
func DeleteListings(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var refs int64
	if err := tx.Model(&models.OrderLine{}).Where("seller_product_id IN ?", ids).Count(&refs).Error; err != nil {
		return err
	}
	if refs == 0 {
		if err := tx.Model(&models.Review{}).Where("seller_product_id IN ?", ids).Count(&refs).Error; err != nil {
			return err
		}
	}
	if refs > 0 {
		return ErrListingReferenced
	}
	if err := tx.Where("seller_product_id IN ?", ids).Delete(&models.CartLine{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.SellerProduct{}).Error
}

// ListingIDs returns the ids of the listings matching the condition
func ListingIDs(tx *gorm.DB, query string, args ...interface{}) ([]uint, error) {
	var ids []uint
	err := tx.Model(&models.SellerProduct{}).Where(query, args...).Pluck("id", &ids).Error
	return ids, err
}
