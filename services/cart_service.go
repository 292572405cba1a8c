package services

import (
	"context"
	"errors"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartLineView is one basket line with the live stock of its product
type CartLineView struct {
	ID              uint            `json:"id"`
	SellerProductID uint            `json:"vendeurProduitId"`
	ProductName     string          `json:"produitNom"`
	Title           string          `json:"produitTitre"`
	Image           string          `json:"produitImage"`
	SellerName      string          `json:"vendeurNom"`
	Quantity        int             `json:"quantite"`
	UnitPrice       decimal.Decimal `json:"prixUnitaire"`
	Subtotal        decimal.Decimal `json:"sousTotal"`
	AvailableStock  int             `json:"stockDisponible"`
}

// CartSnapshot is the buyer-facing view of a cart
type CartSnapshot struct {
	ID         uint            `json:"id"`
	BuyerID    uint            `json:"clientId"`
	Lines      []CartLineView  `json:"lignesPanier"`
	Total      decimal.Decimal `json:"montantTotal"`
	ItemCount  int             `json:"nombreProduits"`
	CreatedAt  time.Time       `json:"dateCreation"`
	ModifiedAt time.Time       `json:"dateModification"`
}

// CartService manages per-buyer baskets. Every call locks the buyer's cart
// row, so two requests of the same buyer never interleave.
type CartService struct {
	store *repository.Store
	now   func() time.Time
}

// NewCartService creates a cart service
func NewCartService(store *repository.Store) *CartService {
	return &CartService{store: store, now: time.Now}
}

// Get returns the buyer's cart, creating an empty one if needed
func (s *CartService) Get(ctx context.Context, buyerID uint) (*CartSnapshot, error) {
	var snap *CartSnapshot
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		cart, err := repository.LockCart(tx, buyerID)
		if err != nil {
			return err
		}
		snap, err = loadSnapshot(tx, cart)
		return err
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors du chargement du panier")
	}
	return snap, nil
}

// Add puts qty units of a listing in the cart, merging with an existing line
func (s *CartService) Add(ctx context.Context, buyerID, sellerProductID uint, qty int) (*CartSnapshot, error) {
	if sellerProductID == 0 {
		return nil, NewValidation("L'ID du produit est requis")
	}
	if qty <= 0 {
		return nil, NewValidation("La quantité doit être supérieure à 0")
	}

	var snap *CartSnapshot
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		cart, err := repository.LockCart(tx, buyerID)
		if err != nil {
			return err
		}

		sp, err := repository.LoadSellerProduct(tx, sellerProductID)
		if repository.IsNotFound(err) {
			return NewNotFound("Produit vendeur non trouvé")
		}
		if err != nil {
			return err
		}
		if !sp.Vendible() {
			return NewConflict("NOT_FOR_SALE", "Ce produit n'est pas disponible à la vente")
		}
		stock := sp.Product.Stock
		if stock <= 0 {
			return NewConflict("OUT_OF_STOCK", "Ce produit est en rupture de stock")
		}

		var line models.CartLine
		err = tx.Where("cart_id = ? AND seller_product_id = ?", cart.ID, sp.ID).First(&line).Error
		switch {
		case err == nil:
			newQty := line.Quantity + qty
			if newQty > stock {
				return insufficientStock(stock)
			}
			if err := tx.Model(&line).Update("quantity", newQty).Error; err != nil {
				return err
			}
		case repository.IsNotFound(err):
			if qty > stock {
				return insufficientStock(stock)
			}
			line = models.CartLine{CartID: cart.ID, SellerProductID: sp.ID, Quantity: qty, UnitPrice: sp.Price}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		default:
			return err
		}

		if err := repository.TouchCart(tx, cart.ID, s.now()); err != nil {
			return err
		}
		snap, err = loadSnapshot(tx, cart)
		return err
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de l'ajout au panier")
	}
	return snap, nil
}

// SetQuantity replaces a line quantity; qty <= 0 removes the line
func (s *CartService) SetQuantity(ctx context.Context, buyerID, sellerProductID uint, qty int) (*CartSnapshot, error) {
	var snap *CartSnapshot
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		cart, err := repository.LockCart(tx, buyerID)
		if err != nil {
			return err
		}

		var line models.CartLine
		err = tx.Preload("SellerProduct.Product").
			Where("cart_id = ? AND seller_product_id = ?", cart.ID, sellerProductID).
			First(&line).Error
		if repository.IsNotFound(err) {
			return NewNotFound("Produit non trouvé dans le panier")
		}
		if err != nil {
			return err
		}

		if qty <= 0 {
			if err := tx.Delete(&line).Error; err != nil {
				return err
			}
		} else {
			if stock := line.SellerProduct.Product.Stock; qty > stock {
				return insufficientStock(stock)
			}
			if err := tx.Model(&line).Update("quantity", qty).Error; err != nil {
				return err
			}
		}

		if err := repository.TouchCart(tx, cart.ID, s.now()); err != nil {
			return err
		}
		snap, err = loadSnapshot(tx, cart)
		return err
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de la modification du panier")
	}
	return snap, nil
}

// Remove deletes the line of a listing; a missing line is reported as not found
func (s *CartService) Remove(ctx context.Context, buyerID, sellerProductID uint) (*CartSnapshot, error) {
	var snap *CartSnapshot
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		cart, err := repository.LockCart(tx, buyerID)
		if err != nil {
			return err
		}
		res := tx.Where("cart_id = ? AND seller_product_id = ?", cart.ID, sellerProductID).Delete(&models.CartLine{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NewNotFound("Produit non trouvé dans le panier")
		}
		if err := repository.TouchCart(tx, cart.ID, s.now()); err != nil {
			return err
		}
		snap, err = loadSnapshot(tx, cart)
		return err
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de la suppression du produit")
	}
	return snap, nil
}

// Clear empties the cart; a buyer without cart is left untouched
func (s *CartService) Clear(ctx context.Context, buyerID uint) error {
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		return repository.ClearCart(tx, buyerID, s.now())
	})
	if err != nil {
		return wrapInternal(err, "Erreur lors du vidage du panier")
	}
	return nil
}

func loadSnapshot(tx *gorm.DB, cart *models.Cart) (*CartSnapshot, error) {
	var fresh models.Cart
	err := tx.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.SellerProduct.Seller").
		Preload("Lines.SellerProduct.Product").
		First(&fresh, cart.ID).Error
	if err != nil {
		return nil, err
	}

	snap := &CartSnapshot{
		ID:         fresh.ID,
		BuyerID:    fresh.BuyerID,
		Lines:      make([]CartLineView, 0, len(fresh.Lines)),
		Total:      decimal.Zero,
		CreatedAt:  fresh.CreatedAt,
		ModifiedAt: fresh.UpdatedAt,
	}
	for _, l := range fresh.Lines {
		sp := l.SellerProduct
		sub := l.Subtotal()
		snap.Lines = append(snap.Lines, CartLineView{
			ID:              l.ID,
			SellerProductID: sp.ID,
			ProductName:     sp.Product.Name,
			Title:           sp.DisplayTitle(),
			Image:           sp.DisplayImage(),
			SellerName:      sp.Seller.Name,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			Subtotal:        sub,
			AvailableStock:  sp.Product.Stock,
		})
		snap.Total = snap.Total.Add(sub)
		snap.ItemCount += l.Quantity
	}
	return snap, nil
}

func insufficientStock(available int) error {
	return NewConflict("INSUFFICIENT_STOCK", "Stock insuffisant. Disponible: %d", available)
}

// wrapInternal keeps typed errors and wraps anything else as internal
func wrapInternal(err error, msg string) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return Internal(err, "%s", msg)
}
