package services

import (
	"context"
	"math"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
)

// ProductPerformance highlights one listing in the KPI board
type ProductPerformance struct {
	SellerProductID uint            `json:"vendeurProduitId"`
	Name            string          `json:"nomProduit"`
	Category        string          `json:"categorie"`
	Sales           int64           `json:"nombreVentes"`
	Revenue         decimal.Decimal `json:"chiffreAffaires"`
	Rating          *float64        `json:"noteMoyenne"`
	Reviews         int64           `json:"nombreReviews"`
	Image           string          `json:"image"`
	SellerName      string          `json:"vendeurNom"`
}

// KPIs is the dashboard summary of a window
type KPIs struct {
	Revenue         decimal.Decimal     `json:"chiffreAffairesTotal"`
	Orders          int64               `json:"nombreTotalVentes"`
	Items           int64               `json:"nombreProduitsVendus"`
	MeanOrderValue  decimal.Decimal     `json:"prixMoyenCommande"`
	BestSeller      *ProductPerformance `json:"produitPlusVendu"`
	BestRated       *ProductPerformance `json:"produitMieuxNote"`
	Growth          float64             `json:"tauxCroissanceVentes"`
	Reviews         int64               `json:"nombreTotalReviews"`
	MeanRating      *float64            `json:"noteMoyenneGlobale"`
	Pending         int64               `json:"commandesEnAttente"`
	Confirmed       int64               `json:"commandesConfirmees"`
	InShipping      int64               `json:"commandesEnLivraison"`
	Delivered       int64               `json:"commandesLivrees"`
	Cancelled       int64               `json:"commandesAnnulees"`
	PreviousRevenue decimal.Decimal     `json:"chiffreAffairesPeriodePrecedente"`
	PreviousOrders  int64               `json:"nombreVentesPeriodePrecedente"`
}

// KPIs computes the dashboard of sellerID, or of the whole platform when
// sellerID is 0
func (s *AnalyticsService) KPIs(ctx context.Context, sellerID uint, f Filter) (*KPIs, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, "kpis", s.key(sellerID, f, ""), func() (*KPIs, error) {
		sc, w := newScope(sellerID, f), s.window(f)
		ds, err := s.load(ctx, sc, w)
		if err != nil {
			return nil, err
		}
		return s.kpis(ds, sc, w), nil
	})
}

func (s *AnalyticsService) kpis(ds *dataset, sc scope, w window) *KPIs {
	cur := ds.lines(sc, w)
	prev := ds.lines(sc, w.previous())
	t, pt := tallyOf(cur), tallyOf(prev)

	k := &KPIs{
		Revenue:         t.Revenue,
		Orders:          t.Orders(),
		Items:           t.Items,
		MeanOrderValue:  decimal.Zero,
		Growth:          GrowthRate(t.Revenue, pt.Revenue),
		PreviousRevenue: pt.Revenue,
		PreviousOrders:  pt.Orders(),
	}
	if n := t.DeliveredOrders(); n > 0 {
		k.MeanOrderValue = t.Revenue.Div(decimal.NewFromInt(n)).Round(2)
	}

	perListing := tallyBy(cur, func(l *repository.LineFact) uint { return l.SellerProductID })
	k.BestSeller = ds.bestSeller(perListing)
	k.BestRated = ds.bestRated(sc, perListing)

	stats, count := ds.ratingsOf(sc.listing)
	k.Reviews = count
	if mean := WeightedMean(stats); mean != nil {
		r := round2(*mean)
		k.MeanRating = &r
	}

	for status, n := range ds.statusCounts(sc, w) {
		switch status {
		case models.StatusPending:
			k.Pending = n
		case models.StatusConfirmed:
			k.Confirmed = n
		case models.StatusInShipping:
			k.InShipping = n
		case models.StatusDelivered:
			k.Delivered = n
		case models.StatusCancelled:
			k.Cancelled = n
		}
	}
	return k
}

// statusCounts counts the orders of the window touching the scope, cancelled
// ones included
func (ds *dataset) statusCounts(sc scope, w window) map[models.OrderStatus]int64 {
	seen := map[uint]models.OrderStatus{}
	for i := range ds.facts {
		l := &ds.facts[i]
		if w.contains(l.OrderedAt) && sc.line(l) {
			seen[l.OrderID] = l.Status
		}
	}
	out := map[models.OrderStatus]int64{}
	for _, st := range seen {
		out[st]++
	}
	return out
}

// bestSeller picks the listing with the most units sold, lowest id on ties
func (ds *dataset) bestSeller(perListing map[uint]*tally) *ProductPerformance {
	var best uint
	var bestItems int64
	for _, id := range sortedIDs(perListing) {
		if items := perListing[id].Items; items > bestItems {
			best, bestItems = id, items
		}
	}
	if best == 0 {
		return nil
	}
	return ds.performance(best, perListing[best])
}

// bestRated ranks listings by mean·ln(n+1) so a single five-star review does
// not beat a well established product
func (ds *dataset) bestRated(sc scope, perListing map[uint]*tally) *ProductPerformance {
	var best uint
	bestScore := -1.0
	for i := range ds.listings {
		sp := &ds.listings[i]
		if !sc.listing(sp) {
			continue
		}
		st, ok := ds.ratings[sp.ID]
		if !ok || st.Count == 0 {
			continue
		}
		if score := st.Mean * math.Log(float64(st.Count)+1); score > bestScore {
			best, bestScore = sp.ID, score
		}
	}
	if best == 0 {
		return nil
	}
	return ds.performance(best, perListing[best])
}

func (ds *dataset) performance(id uint, t *tally) *ProductPerformance {
	p := &ProductPerformance{SellerProductID: id, Revenue: decimal.Zero}
	if sp, ok := ds.byID[id]; ok {
		p.Name = sp.DisplayTitle()
		p.Category = sp.Product.CategoryName("")
		p.Image = sp.DisplayImage()
		p.SellerName = sp.Seller.Name
	}
	if t != nil {
		p.Sales = t.Items
		p.Revenue = t.Revenue
	}
	p.Rating, p.Reviews = ds.rating(id)
	if p.Rating != nil {
		r := round2(*p.Rating)
		p.Rating = &r
	}
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
