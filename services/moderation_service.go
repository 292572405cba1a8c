package services

import (
	"context"
	"errors"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"gorm.io/gorm"
)

// Approval narrows moderation lists
type Approval int

const (
	ApprovalAny Approval = iota
	ApprovalPending
	ApprovalApproved
)

func (a Approval) apply(db *gorm.DB, column string) *gorm.DB {
	switch a {
	case ApprovalPending:
		return db.Where(column+" = ?", false)
	case ApprovalApproved:
		return db.Where(column+" = ?", true)
	default:
		return db
	}
}

// PlatformStats are the counters of the admin dashboard
type PlatformStats struct {
	Sellers         int64 `json:"totalVendeurs"`
	ApprovedSellers int64 `json:"vendeursApprouves"`
	PendingSellers  int64 `json:"vendeursEnAttente"`
	Products        int64 `json:"totalProduits"`
	Categories      int64 `json:"totalCategories"`
	Orders          int64 `json:"totalCommandes"`
	PendingListings int64 `json:"inscriptionsProduitsEnAttente"`
}

// ModerationService drives the approval state of sellers and listings.
// Every write locks the seller row first so moderation of one seller is serialized.
type ModerationService struct {
	store   *repository.Store
	indexer *ProductIndexer
}

// NewModerationService creates a moderation service; indexer may be nil
func NewModerationService(store *repository.Store, indexer *ProductIndexer) *ModerationService {
	return &ModerationService{store: store, indexer: indexer}
}

// Sellers lists seller accounts by approval state
func (s *ModerationService) Sellers(ctx context.Context, a Approval) ([]models.User, error) {
	var list []models.User
	db := s.store.DB(ctx).Where("role = ?", models.RoleSeller)
	if err := a.apply(db, "approved").Order("id").Find(&list).Error; err != nil {
		return nil, Internal(err, "Erreur lors du chargement des vendeurs")
	}
	return list, nil
}

// ApproveSeller lets a pending or banned seller authenticate and sell again.
// Listings banned with the seller stay banned until approved one by one.
func (s *ModerationService) ApproveSeller(ctx context.Context, sellerID uint) (string, error) {
	var name string
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		seller, err := lockSeller(tx, sellerID)
		if err != nil {
			return err
		}
		name = seller.Name
		return tx.Model(&models.User{}).Where("id = ?", sellerID).Update("approved", true).Error
	})
	if err != nil {
		return "", wrapInternal(err, "Erreur lors de l'approbation du vendeur")
	}
	return "Vendeur " + name + " approuvé avec succès", nil
}

// BanSeller disapproves the seller and every listing they own in one transaction
func (s *ModerationService) BanSeller(ctx context.Context, sellerID uint) (string, error) {
	var name string
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		seller, err := lockSeller(tx, sellerID)
		if err != nil {
			return err
		}
		name = seller.Name
		if err := tx.Model(&models.User{}).Where("id = ?", sellerID).Update("approved", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.SellerProduct{}).Where("seller_id = ?", sellerID).Update("approved", false).Error
	})
	if err != nil {
		return "", wrapInternal(err, "Erreur lors du bannissement du vendeur")
	}
	return "Vendeur " + name + " banni avec succès", nil
}

// RejectSeller deletes the seller account and its unreferenced listings
func (s *ModerationService) RejectSeller(ctx context.Context, sellerID uint) (string, error) {
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := lockSeller(tx, sellerID); err != nil {
			return err
		}
		ids, err := repository.ListingIDs(tx, "seller_id = ?", sellerID)
		if err != nil {
			return err
		}
		if err := repository.DeleteListings(tx, ids); err != nil {
			if errors.Is(err, repository.ErrListingReferenced) {
				return NewConflict("SELLER_HAS_SALES", "Impossible de supprimer ce vendeur: ses produits ont déjà été commandés ou évalués")
			}
			return err
		}
		return tx.Delete(&models.User{}, sellerID).Error
	})
	if err != nil {
		return "", wrapInternal(err, "Erreur lors du rejet du vendeur")
	}
	return "Vendeur rejeté et supprimé", nil
}

// Listings lists every listing by approval state
func (s *ModerationService) Listings(ctx context.Context, a Approval) ([]ListingView, error) {
	var list []models.SellerProduct
	db := s.store.DB(ctx).Preload("Seller").Preload("Product.Category")
	if err := a.apply(db, "approved").Order("id").Find(&list).Error; err != nil {
		return nil, Internal(err, "Erreur lors du chargement des inscriptions")
	}
	return toListingViews(list), nil
}

// ApproveListing puts a listing on sale and sends it to the search index
func (s *ModerationService) ApproveListing(ctx context.Context, id uint) (string, error) {
	var sp *models.SellerProduct
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		if sp, err = s.lockListing(tx, id); err != nil {
			return err
		}
		if sp.Approved {
			return NewConflict("ALREADY_APPROVED", "Cette inscription est déjà approuvée")
		}
		if err := tx.Model(&models.SellerProduct{}).Where("id = ?", id).Update("approved", true).Error; err != nil {
			return err
		}
		sp.Approved = true
		return nil
	})
	if err != nil {
		return "", wrapInternal(err, "Erreur lors de l'approbation de l'inscription")
	}
	s.indexer.Enqueue(indexPayload(sp))
	return "Inscription du vendeur pour le produit approuvée", nil
}

// BanListing takes a listing off sale
func (s *ModerationService) BanListing(ctx context.Context, id uint) (string, error) {
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.lockListing(tx, id); err != nil {
			return err
		}
		return tx.Model(&models.SellerProduct{}).Where("id = ?", id).Update("approved", false).Error
	})
	if err != nil {
		return "", wrapInternal(err, "Erreur lors du bannissement de l'inscription")
	}
	return "Inscription du vendeur pour le produit bannie", nil
}

// RejectListing deletes a listing that was never ordered nor reviewed
func (s *ModerationService) RejectListing(ctx context.Context, id uint) (string, error) {
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.lockListing(tx, id); err != nil {
			return err
		}
		if err := repository.DeleteListings(tx, []uint{id}); err != nil {
			if errors.Is(err, repository.ErrListingReferenced) {
				return NewConflict("LISTING_IN_USE", "Impossible de supprimer cette inscription: elle est référencée par des commandes ou des avis")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", wrapInternal(err, "Erreur lors du rejet de l'inscription")
	}
	return "Inscription du vendeur pour le produit rejetée", nil
}

// Stats counts the platform entities
func (s *ModerationService) Stats(ctx context.Context) (*PlatformStats, error) {
	db := s.store.DB(ctx)
	var st PlatformStats
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&st.Sellers, db.Model(&models.User{}).Where("role = ?", models.RoleSeller)},
		{&st.ApprovedSellers, db.Model(&models.User{}).Where("role = ? AND approved = ?", models.RoleSeller, true)},
		{&st.PendingSellers, db.Model(&models.User{}).Where("role = ? AND approved = ?", models.RoleSeller, false)},
		{&st.Products, db.Model(&models.Product{})},
		{&st.Categories, db.Model(&models.Category{})},
		{&st.Orders, db.Model(&models.Order{})},
		{&st.PendingListings, db.Model(&models.SellerProduct{}).Where("approved = ?", false)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, Internal(err, "Erreur lors du calcul des statistiques")
		}
	}
	return &st, nil
}

// lockListing locks the owning seller row, then loads the listing
func (s *ModerationService) lockListing(tx *gorm.DB, id uint) (*models.SellerProduct, error) {
	var sellerIDs []uint
	err := tx.Model(&models.SellerProduct{}).Where("id = ?", id).Pluck("seller_id", &sellerIDs).Error
	if err != nil {
		return nil, err
	}
	if len(sellerIDs) == 0 {
		return nil, NewNotFound("Inscription vendeur-produit non trouvée")
	}
	if _, err := repository.LockUser(tx, sellerIDs[0]); err != nil {
		return nil, err
	}
	sp, err := repository.LoadSellerProduct(tx, id)
	if repository.IsNotFound(err) {
		return nil, NewNotFound("Inscription vendeur-produit non trouvée")
	}
	return sp, err
}

func lockSeller(tx *gorm.DB, id uint) (*models.User, error) {
	u, err := repository.LockUser(tx, id)
	if repository.IsNotFound(err) || (err == nil && !u.IsSeller()) {
		return nil, NewNotFound("Vendeur non trouvé")
	}
	return u, err
}
