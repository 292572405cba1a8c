package services

import (
	"context"
	"sort"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
)

// CategoryStats is the analytics row of one category
type CategoryStats struct {
	CategoryID   uint            `json:"categorieId"`
	Name         string          `json:"categorieNom"`
	Image        string          `json:"image"`
	Revenue      decimal.Decimal `json:"chiffreAffaires"`
	Sales        int64           `json:"nombreVentes"`
	Products     int64           `json:"nombreProduits"`
	MeanPrice    decimal.Decimal `json:"prixMoyen"`
	Rating       *float64        `json:"noteMoyenne"`
	RevenueShare float64         `json:"pourcentageCA"`
	SalesShare   float64         `json:"pourcentageVentes"`
	Performance  string          `json:"performance"`
	Growth       float64         `json:"tauxCroissance"`
}

// CategoryAnalytics breaks a scope down by category
type CategoryAnalytics struct {
	Categories []CategoryStats `json:"categories"`
	Revenue    decimal.Decimal `json:"chiffreAffairesTotal"`
	Sales      int64           `json:"nombreTotalVentes"`
}

// Categories computes per-category figures. Sellers only see categories they
// list products in; the platform view covers every category.
func (s *AnalyticsService) Categories(ctx context.Context, sellerID uint, f Filter) (*CategoryAnalytics, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, "categories", s.key(sellerID, f, ""), func() (*CategoryAnalytics, error) {
		sc, w := newScope(sellerID, f), s.window(f)
		ds, err := s.load(ctx, sc, w)
		if err != nil {
			return nil, err
		}
		var cats []models.Category
		if err := s.store.DB(ctx).Order("id").Find(&cats).Error; err != nil {
			return nil, Internal(err, "Erreur lors du chargement des catégories")
		}
		return s.categories(ds, cats, sc, w), nil
	})
}

func (s *AnalyticsService) categories(ds *dataset, cats []models.Category, sc scope, w window) *CategoryAnalytics {
	byCat := func(l *repository.LineFact) uint {
		if l.CategoryID == nil {
			return 0
		}
		return *l.CategoryID
	}
	cur := tallyBy(ds.lines(sc, w), byCat)
	prev := tallyBy(ds.lines(sc, w.previous()), byCat)

	type listingAgg struct {
		count int64
		price decimal.Decimal
	}
	listed := map[uint]*listingAgg{}
	for i := range ds.listings {
		sp := &ds.listings[i]
		if !sc.listing(sp) || sp.Product.CategoryID == nil {
			continue
		}
		a, ok := listed[*sp.Product.CategoryID]
		if !ok {
			a = &listingAgg{price: decimal.Zero}
			listed[*sp.Product.CategoryID] = a
		}
		a.count++
		a.price = a.price.Add(sp.Price)
	}

	out := &CategoryAnalytics{Categories: []CategoryStats{}, Revenue: decimal.Zero}
	for id, t := range cur {
		if id != 0 {
			out.Revenue = out.Revenue.Add(t.Revenue)
			out.Sales += t.Items
		}
	}

	for _, c := range cats {
		if sc.categoryID != nil && c.ID != *sc.categoryID {
			continue
		}
		agg, hasListings := listed[c.ID]
		t, hasSales := cur[c.ID]
		if sc.sellerID != 0 && !hasListings && !hasSales {
			continue
		}

		st := CategoryStats{CategoryID: c.ID, Name: c.Name, Image: c.Image, Revenue: decimal.Zero, MeanPrice: decimal.Zero}
		if hasSales {
			st.Revenue = t.Revenue
			st.Sales = t.Items
		}
		if hasListings {
			st.Products = agg.count
			st.MeanPrice = agg.price.Div(decimal.NewFromInt(agg.count)).Round(2)
		}
		catID := c.ID
		stats, _ := ds.ratingsOf(func(sp *models.SellerProduct) bool {
			return sc.listing(sp) && sp.Product.CategoryID != nil && *sp.Product.CategoryID == catID
		})
		if mean := WeightedMean(stats); mean != nil {
			r := round2(*mean)
			st.Rating = &r
		}
		st.RevenueShare = percent(st.Revenue, out.Revenue)
		st.SalesShare = percent(decimal.NewFromInt(st.Sales), decimal.NewFromInt(out.Sales))
		st.Performance = CategoryTag(st.RevenueShare, st.Rating, st.Sales)
		prevRevenue := decimal.Zero
		if p, ok := prev[c.ID]; ok {
			prevRevenue = p.Revenue
		}
		st.Growth = GrowthRate(st.Revenue, prevRevenue)
		out.Categories = append(out.Categories, st)
	}

	sort.SliceStable(out.Categories, func(i, j int) bool {
		a, b := out.Categories[i], out.Categories[j]
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		return a.CategoryID < b.CategoryID
	})
	return out
}

// SellerStats is the analytics row of one approved seller
type SellerStats struct {
	SellerID         uint            `json:"vendeurId"`
	Name             string          `json:"vendeurNom"`
	Email            string          `json:"email"`
	Revenue          decimal.Decimal `json:"chiffreAffaires"`
	Sales            int64           `json:"nombreVentes"`
	Products         int64           `json:"nombreProduits"`
	ApprovedProducts int64           `json:"nombreProduitsApprouves"`
	Rating           *float64        `json:"noteMoyenne"`
	Reviews          int64           `json:"nombreReviews"`
	ConversionRate   float64         `json:"tauxConversion"`
	Performance      string          `json:"performance"`
	Growth           float64         `json:"tauxCroissance"`
}

// SellerAnalytics ranks the approved sellers by revenue
type SellerAnalytics struct {
	Sellers []SellerStats `json:"vendeurs"`
	Top     []SellerStats `json:"topVendeurs"`
	Active  int64         `json:"nombreVendeursActifs"`
}

const topSellers = 5

// Sellers ranks every approved seller of the platform
func (s *AnalyticsService) Sellers(ctx context.Context, f Filter) (*SellerAnalytics, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, "sellers", s.key(0, f, ""), func() (*SellerAnalytics, error) {
		ds, err := s.load(ctx, scope{categoryID: f.CategoryID}, s.window(f))
		if err != nil {
			return nil, err
		}
		var sellers []models.User
		err = s.store.DB(ctx).
			Where("role = ? AND approved = ?", models.RoleSeller, true).
			Order("id").Find(&sellers).Error
		if err != nil {
			return nil, Internal(err, "Erreur lors du chargement des vendeurs")
		}
		return s.sellers(ds, sellers, f), nil
	})
}

func (s *AnalyticsService) sellers(ds *dataset, sellers []models.User, f Filter) *SellerAnalytics {
	sc, w := scope{categoryID: f.CategoryID}, s.window(f)
	bySeller := func(l *repository.LineFact) uint { return l.SellerID }
	cur := tallyBy(ds.lines(sc, w), bySeller)
	prev := tallyBy(ds.lines(sc, w.previous()), bySeller)

	out := &SellerAnalytics{Sellers: []SellerStats{}, Active: int64(len(sellers))}
	for _, u := range sellers {
		st := SellerStats{SellerID: u.ID, Name: u.Name, Email: u.Email, Revenue: decimal.Zero}
		if t, ok := cur[u.ID]; ok {
			st.Revenue = t.Revenue
			st.Sales = t.Items
		}

		owned := scope{sellerID: u.ID, categoryID: f.CategoryID}
		var stock int64
		for i := range ds.listings {
			sp := &ds.listings[i]
			if !owned.listing(sp) {
				continue
			}
			st.Products++
			if sp.Approved {
				st.ApprovedProducts++
			}
			stock += int64(sp.Product.Stock)
		}
		stats, count := ds.ratingsOf(owned.listing)
		st.Reviews = count
		if mean := WeightedMean(stats); mean != nil {
			r := round2(*mean)
			st.Rating = &r
		}
		if total := st.Sales + stock; total > 0 {
			st.ConversionRate = round2(100 * float64(st.Sales) / float64(total))
		}
		prevRevenue := decimal.Zero
		if p, ok := prev[u.ID]; ok {
			prevRevenue = p.Revenue
		}
		st.Growth = GrowthRate(st.Revenue, prevRevenue)
		st.Performance = SellerTag(st.Revenue, st.Rating)
		out.Sellers = append(out.Sellers, st)
	}

	sort.SliceStable(out.Sellers, func(i, j int) bool {
		a, b := out.Sellers[i], out.Sellers[j]
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		return a.SellerID < b.SellerID
	})
	out.Top = out.Sellers
	if len(out.Top) > topSellers {
		out.Top = out.Top[:topSellers]
	}
	return out
}
