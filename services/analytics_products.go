package services

import (
	"cmp"
	"context"
	"sort"
	"strings"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
)

// ProductStats is the analytics row of one listing
type ProductStats struct {
	SellerProductID uint            `json:"vendeurProduitId"`
	Name            string          `json:"nomProduit"`
	Title           string          `json:"titre"`
	Image           string          `json:"image"`
	CategoryID      *uint           `json:"categorieId"`
	CategoryName    string          `json:"categorieNom"`
	SellerID        uint            `json:"vendeurId"`
	SellerName      string          `json:"vendeurNom"`
	SellerPrice     decimal.Decimal `json:"prixVendeur"`
	CatalogPrice    decimal.Decimal `json:"prixOriginal"`
	Sales           int64           `json:"nombreVentes"`
	Revenue         decimal.Decimal `json:"chiffreAffaires"`
	Rating          *float64        `json:"noteMoyenne"`
	Reviews         int64           `json:"nombreReviews"`
	Stock           int             `json:"quantiteStock"`
	Trend           string          `json:"statut"`
	Growth          float64         `json:"tauxCroissance"`
	Approved        bool            `json:"estApprouve"`
}

// ProductAnalytics ranks the listings of a scope
type ProductAnalytics struct {
	TopSales   []ProductStats `json:"top10ParVentes"`
	TopRevenue []ProductStats `json:"top10ParCA"`
	TopRated   []ProductStats `json:"top10ParNote"`
	All        []ProductStats `json:"tousLesProduits"`
	Total      int64          `json:"nombreTotalProduits"`
}

const topN = 10

// Products computes per-listing figures and the three top-10 rankings. The
// price, rating and approval filters narrow the listed products only.
func (s *AnalyticsService) Products(ctx context.Context, sellerID uint, f Filter) (*ProductAnalytics, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, "products", s.key(sellerID, f, ""), func() (*ProductAnalytics, error) {
		ds, err := s.load(ctx, newScope(sellerID, f), s.window(f))
		if err != nil {
			return nil, err
		}
		return s.products(ds, sellerID, f), nil
	})
}

func (s *AnalyticsService) products(ds *dataset, sellerID uint, f Filter) *ProductAnalytics {
	sc, w := newScope(sellerID, f), s.window(f)
	bySP := func(l *repository.LineFact) uint { return l.SellerProductID }
	cur := tallyBy(ds.lines(sc, w), bySP)
	prev := tallyBy(ds.lines(sc, w.previous()), bySP)

	all := []ProductStats{}
	for i := range ds.listings {
		sp := &ds.listings[i]
		if !sc.listing(sp) || !f.keepListing(sp) {
			continue
		}
		st := productStats(ds, sp, cur[sp.ID], prev[sp.ID])
		if !f.keepRating(st.Rating, st.Reviews) {
			continue
		}
		all = append(all, st)
	}

	out := &ProductAnalytics{
		TopSales: topBy(all, func(p ProductStats) bool { return p.Sales > 0 }, func(a, b ProductStats) bool {
			return a.Sales > b.Sales
		}),
		TopRevenue: topBy(all, func(p ProductStats) bool { return p.Revenue.IsPositive() }, func(a, b ProductStats) bool {
			return a.Revenue.GreaterThan(b.Revenue)
		}),
		TopRated: topBy(all, func(p ProductStats) bool { return p.Reviews > 0 }, func(a, b ProductStats) bool {
			if *a.Rating != *b.Rating {
				return *a.Rating > *b.Rating
			}
			return a.Reviews > b.Reviews
		}),
		Total: int64(len(all)),
	}
	sortProducts(all, f.SortBy, f.Order)
	out.All = all
	return out
}

func productStats(ds *dataset, sp *models.SellerProduct, cur, prev *tally) ProductStats {
	st := ProductStats{
		SellerProductID: sp.ID,
		Name:            sp.Product.Name,
		Title:           sp.DisplayTitle(),
		Image:           sp.DisplayImage(),
		CategoryID:      sp.Product.CategoryID,
		CategoryName:    sp.Product.CategoryName(""),
		SellerID:        sp.SellerID,
		SellerName:      sp.Seller.Name,
		SellerPrice:     sp.Price,
		CatalogPrice:    sp.Product.Price,
		Revenue:         decimal.Zero,
		Stock:           sp.Product.Stock,
		Approved:        sp.Approved,
	}
	var prevItems int64
	if cur != nil {
		st.Sales = cur.Items
		st.Revenue = cur.Revenue
	}
	if prev != nil {
		prevItems = prev.Items
	}
	st.Growth = GrowthRate(decimal.NewFromInt(st.Sales), decimal.NewFromInt(prevItems))
	st.Trend = TrendTag(st.Growth)
	if mean, n := ds.rating(sp.ID); mean != nil {
		r := round2(*mean)
		st.Rating, st.Reviews = &r, n
	}
	return st
}

func (f Filter) keepListing(sp *models.SellerProduct) bool {
	if f.OnlyApproved != nil && sp.Approved != *f.OnlyApproved {
		return false
	}
	if f.PriceMin != nil && sp.Price.LessThan(*f.PriceMin) {
		return false
	}
	if f.PriceMax != nil && sp.Price.GreaterThan(*f.PriceMax) {
		return false
	}
	return true
}

// keepRating applies the review filters; an unrated listing fails a minimum rating
func (f Filter) keepRating(rating *float64, reviews int64) bool {
	if f.MinRating != nil && (rating == nil || *rating < *f.MinRating) {
		return false
	}
	if f.MinReviews != nil && reviews < *f.MinReviews {
		return false
	}
	return true
}

// topBy returns up to ten rows passing keep, best first, lowest id on ties
func topBy(all []ProductStats, keep func(ProductStats) bool, better func(a, b ProductStats) bool) []ProductStats {
	out := []ProductStats{}
	for _, p := range all {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if better(out[i], out[j]) {
			return true
		}
		if better(out[j], out[i]) {
			return false
		}
		return out[i].SellerProductID < out[j].SellerProductID
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// sortProducts orders rows in place. Names sort ascending by default, every
// other key descending; unrated rows always come last.
func sortProducts(list []ProductStats, by, order string) {
	desc := by != SortName
	if order != "" {
		desc = order == "DESC"
	}
	compare := func(a, b ProductStats) int {
		switch by {
		case SortRevenue:
			return a.Revenue.Cmp(b.Revenue)
		case SortRating:
			return cmp.Compare(*a.Rating, *b.Rating)
		case SortPrice:
			return a.SellerPrice.Cmp(b.SellerPrice)
		case SortName:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		default:
			return cmp.Compare(a.Sales, b.Sales)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if by == SortRating && (a.Rating == nil || b.Rating == nil) {
			if (a.Rating == nil) != (b.Rating == nil) {
				return b.Rating == nil
			}
			return a.SellerProductID < b.SellerProductID
		}
		c := compare(a, b)
		if c == 0 {
			return a.SellerProductID < b.SellerProductID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}
