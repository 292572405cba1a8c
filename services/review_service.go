package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"gorm.io/gorm"
)

// ReviewInput is a buyer's review of a listing
type ReviewInput struct {
	SellerProductID uint   `json:"vendeurProduitId"`
	Rating          int    `json:"note"`
	Comment         string `json:"commentaire"`
}

// ReviewView is the wire form of a review
type ReviewView struct {
	ID              uint      `json:"id"`
	BuyerID         uint      `json:"clientId"`
	BuyerName       string    `json:"clientNom"`
	SellerProductID uint      `json:"vendeurProduitId"`
	ProductTitle    string    `json:"produitTitre"`
	Rating          int       `json:"note"`
	Comment         string    `json:"commentaire"`
	Date            time.Time `json:"dateAvis"`
	Positive        bool      `json:"estPositif"`
	Hidden          bool      `json:"estCache"`
}

// ReviewStats summarises the visible reviews of a listing
type ReviewStats struct {
	Mean     float64 `json:"noteMoyenne"`
	Count    int64   `json:"nombreAvis"`
	Positive int64   `json:"avisPositifs"`
	Negative int64   `json:"avisNegatifs"`
}

// ReviewService posts reviews and lets sellers hide them
type ReviewService struct {
	store *repository.Store
	now   func() time.Time
}

// NewReviewService creates a review service
func NewReviewService(store *repository.Store) *ReviewService {
	return &ReviewService{store: store, now: time.Now}
}

func errDuplicateReview() error {
	return NewConflict("DUPLICATE_REVIEW", "Vous avez déjà donné un avis sur ce produit")
}

// Post records a review and derives its positivity from the comment and rating
func (s *ReviewService) Post(ctx context.Context, buyerID uint, in ReviewInput) (*ReviewView, error) {
	if in.SellerProductID == 0 {
		return nil, NewValidation("L'ID du produit est requis")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, NewValidation("La note doit être comprise entre 1 et 5")
	}

	var view ReviewView
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var buyer models.User
		err := tx.First(&buyer, buyerID).Error
		if repository.IsNotFound(err) || (err == nil && !buyer.IsBuyer()) {
			return NewNotFound("Client non trouvé")
		}
		if err != nil {
			return err
		}

		var sp models.SellerProduct
		err = tx.First(&sp, in.SellerProductID).Error
		if repository.IsNotFound(err) {
			return NewNotFound("Produit non trouvé")
		}
		if err != nil {
			return err
		}

		comment := strings.TrimSpace(in.Comment)
		review := models.Review{
			BuyerID:         buyerID,
			SellerProductID: sp.ID,
			Rating:          in.Rating,
			Comment:         comment,
			Date:            s.now(),
			Positive:        IsPositive(comment, in.Rating),
		}
		// the (buyer, listing) unique index settles concurrent posts
		if err := tx.Create(&review).Error; err != nil {
			if repository.IsUniqueViolation(err) {
				return errDuplicateReview()
			}
			return err
		}
		review.Buyer = buyer
		review.SellerProduct = sp
		view = toReviewView(&review)
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de l'ajout de l'avis")
	}
	return &view, nil
}

// ForListing returns the visible reviews of a listing, newest first
func (s *ReviewService) ForListing(ctx context.Context, sellerProductID uint) ([]ReviewView, error) {
	var reviews []models.Review
	err := s.store.DB(ctx).
		Preload("Buyer").
		Preload("SellerProduct.Product").
		Where("seller_product_id = ? AND hidden = ?", sellerProductID, false).
		Order("date DESC, id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement des avis")
	}
	return toReviewViews(reviews), nil
}

// ForSeller returns every review on the seller's listings, hidden ones included
func (s *ReviewService) ForSeller(ctx context.Context, sellerID uint) ([]ReviewView, error) {
	var reviews []models.Review
	err := s.store.DB(ctx).
		Preload("Buyer").
		Preload("SellerProduct.Product").
		Joins("JOIN seller_products ON seller_products.id = reviews.seller_product_id").
		Where("seller_products.seller_id = ?", sellerID).
		Order("reviews.date DESC, reviews.id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement des avis")
	}
	return toReviewViews(reviews), nil
}

// Stats aggregates the visible reviews of a listing; the mean has one decimal
func (s *ReviewService) Stats(ctx context.Context, sellerProductID uint) (*ReviewStats, error) {
	var row struct {
		Mean     *float64
		Count    int64
		Positive int64
	}
	err := s.store.DB(ctx).Model(&models.Review{}).
		Select("AVG(rating) AS mean, COUNT(*) AS count, "+
			"COALESCE(SUM(CASE WHEN positive THEN 1 ELSE 0 END), 0) AS positive").
		Where("seller_product_id = ? AND hidden = ?", sellerProductID, false).
		Scan(&row).Error
	if err != nil {
		return nil, Internal(err, "Erreur lors du calcul des statistiques")
	}

	stats := &ReviewStats{Count: row.Count, Positive: row.Positive, Negative: row.Count - row.Positive}
	if row.Mean != nil {
		stats.Mean = math.Round(*row.Mean*10) / 10
	}
	return stats, nil
}

// ToggleVisibility flips the hidden flag of a review on one of the seller's
// listings and returns the resulting state message
func (s *ReviewService) ToggleVisibility(ctx context.Context, sellerID, reviewID uint) (string, error) {
	var msg string
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var review models.Review
		err := repository.ForUpdate(tx).Preload("SellerProduct").First(&review, reviewID).Error
		if repository.IsNotFound(err) {
			return NewNotFound("Avis non trouvé")
		}
		if err != nil {
			return err
		}
		if review.SellerProduct.SellerID != sellerID {
			return NewForbidden("Vous n'êtes pas autorisé à modifier cet avis")
		}

		hidden := !review.Hidden
		if err := tx.Model(&models.Review{}).Where("id = ?", review.ID).Update("hidden", hidden).Error; err != nil {
			return err
		}
		msg = "Avis affiché"
		if hidden {
			msg = "Avis masqué"
		}
		return nil
	})
	if err != nil {
		return "", wrapInternal(err, "Erreur lors de la modification de l'avis")
	}
	return msg, nil
}

func toReviewView(r *models.Review) ReviewView {
	return ReviewView{
		ID:              r.ID,
		BuyerID:         r.BuyerID,
		BuyerName:       r.Buyer.Name,
		SellerProductID: r.SellerProductID,
		ProductTitle:    r.SellerProduct.DisplayTitle(),
		Rating:          r.Rating,
		Comment:         r.Comment,
		Date:            r.Date,
		Positive:        r.Positive,
		Hidden:          r.Hidden,
	}
}

func toReviewViews(reviews []models.Review) []ReviewView {
	views := make([]ReviewView, 0, len(reviews))
	for i := range reviews {
		views = append(views, toReviewView(&reviews[i]))
	}
	return views
}
