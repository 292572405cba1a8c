package services

import (
	"context"
	"log"
)

// DefaultSimilarBuyers is k when the caller does not choose
const DefaultSimilarBuyers = 5

// ForBuyer recommends approved listings bought by the buyers most similar to
// buyerID and never bought by them. A missing or failing similarity service
// yields an empty list, as does a buyer without orders.
func (s *RecommendationService) ForBuyer(ctx context.Context, buyerID uint, k int) ([]ListingView, error) {
	if k <= 0 {
		k = DefaultSimilarBuyers
	}
	if s.ai == nil {
		return []ListingView{}, nil
	}

	rows, err := s.store.CollaborativeRows(ctx)
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement de l'historique d'achats")
	}
	table := CollaborativeTable{}
	present := false
	for _, r := range rows {
		table.ClientIDs = append(table.ClientIDs, r.BuyerID)
		table.Categories = append(table.Categories, r.Category)
		table.Scores = append(table.Scores, r.Score)
		if r.BuyerID == buyerID {
			present = true
		}
	}
	if !present {
		return []ListingView{}, nil
	}

	similar, err := s.ai.SimilarBuyers(ctx, table, buyerID, k)
	if err != nil {
		log.Printf("[ai] collaborative filtering for buyer %d failed: %v", buyerID, err)
		return []ListingView{}, nil
	}

	others := make([]uint, 0, len(similar))
	for _, id := range similar {
		if id != buyerID {
			others = append(others, id)
		}
	}
	listings, err := s.store.ListingsBoughtByOthers(ctx, others, buyerID)
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement des recommandations")
	}
	return toListingViews(listings), nil
}
