package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
)

// Insight is an informational message of the recommendation board
type Insight struct {
	Type    string `json:"type"`
	Title   string `json:"titre"`
	Message string `json:"message"`
	Icon    string `json:"icone"`
	Action  string `json:"action,omitempty"`
	Link    string `json:"lien,omitempty"`
}

// Opportunity is a suggested move with its estimated value
type Opportunity struct {
	Type        string           `json:"type"`
	Title       string           `json:"titre"`
	Description string           `json:"description"`
	Potential   *decimal.Decimal `json:"potentielEstime,omitempty"`
	Priority    string           `json:"priorite"`
	ProductIDs  []uint           `json:"produitsIds,omitempty"`
}

// Alert flags something that needs attention
type Alert struct {
	Type        string `json:"type"`
	Title       string `json:"titre"`
	Message     string `json:"message"`
	Severity    string `json:"severite"`
	ElementID   uint   `json:"elementId,omitempty"`
	ElementType string `json:"elementType,omitempty"`
}

// PotentialProduct is a product worth listing or promoting
type PotentialProduct struct {
	SellerProductID uint     `json:"vendeurProduitId,omitempty"`
	ProductID       uint     `json:"produitId,omitempty"`
	Name            string   `json:"nomProduit"`
	Category        string   `json:"categorie"`
	Rating          *float64 `json:"noteMoyenne,omitempty"`
	Reviews         int64    `json:"nombreReviews"`
	Sales           int64    `json:"nombreVentes"`
	Reason          string   `json:"raison"`
	Suggestion      string   `json:"suggestion"`
}

// ProductToImprove is a listing whose figures call for action
type ProductToImprove struct {
	SellerProductID uint     `json:"vendeurProduitId"`
	Name            string   `json:"nomProduit"`
	Category        string   `json:"categorie"`
	Rating          *float64 `json:"noteMoyenne"`
	Sales           int64    `json:"nombreVentes"`
	Problem         string   `json:"probleme"`
	Suggestion      string   `json:"suggestion"`
}

// CategoryTrend classifies a category by its revenue share
type CategoryTrend struct {
	CategoryID  uint    `json:"categorieId"`
	Name        string  `json:"categorieNom"`
	Growth      float64 `json:"tauxCroissance"`
	Share       float64 `json:"partCA"`
	Trend       string  `json:"tendance"`
	Opportunity string  `json:"opportunite"`
}

// Recommendations is the full advice board of a seller or of the platform
type Recommendations struct {
	Insights          []Insight          `json:"insights"`
	Opportunities     []Opportunity      `json:"opportunites"`
	Alerts            []Alert            `json:"alertes"`
	PotentialProducts []PotentialProduct `json:"produitsFortPotentiel"`
	ToImprove         []ProductToImprove `json:"produitsAAmeliorer"`
	CategoryTrends    []CategoryTrend    `json:"categoriesTendance"`
}

func newRecommendations() *Recommendations {
	return &Recommendations{
		Insights:          []Insight{},
		Opportunities:     []Opportunity{},
		Alerts:            []Alert{},
		PotentialProducts: []PotentialProduct{},
		ToImprove:         []ProductToImprove{},
		CategoryTrends:    []CategoryTrend{},
	}
}

// Trend directions
const (
	TrendUp   = "UP"
	TrendDown = "DOWN"
)

// Insight types
const (
	InsightSuccess     = "SUCCESS"
	InsightWarning     = "WARNING"
	InsightOpportunity = "OPPORTUNITY"
)

// Severities
const (
	SeverityWarning  = "AVERTISSEMENT"
	SeverityCritical = "CRITIQUE"
)

const (
	maxOpportunities   = 3
	maxCatalogIdeas    = 5
	maxProblemProducts = 5
	maxTopInsights     = 3
)

var (
	priceHigh   = decimal.RequireFromString("1.2")
	priceLow    = decimal.RequireFromString("0.8")
	priceTarget = decimal.RequireFromString("0.95")
	successRate = decimal.RequireFromString("0.3")
)

// RecommendationService derives advice from the analytics figures and
// recommends listings to buyers through the AI similarity service
type RecommendationService struct {
	analytics *AnalyticsService
	store     *repository.Store
	ai        AIClient
}

// NewRecommendationService creates a recommendation service; ai may be nil
func NewRecommendationService(analytics *AnalyticsService, store *repository.Store, ai AIClient) *RecommendationService {
	return &RecommendationService{analytics: analytics, store: store, ai: ai}
}

// allTime sums the units sold per listing and per catalog product over every
// non-cancelled order, with the mean listing price paid per product
type allTime struct {
	perListing map[uint]int64
	perProduct map[uint]int64
	priceSum   map[uint]decimal.Decimal
	priceN     map[uint]int64
}

func allTimeSales(ds *dataset) *allTime {
	a := &allTime{
		perListing: map[uint]int64{},
		perProduct: map[uint]int64{},
		priceSum:   map[uint]decimal.Decimal{},
		priceN:     map[uint]int64{},
	}
	for i := range ds.facts {
		l := &ds.facts[i]
		if l.Status == models.StatusCancelled {
			continue
		}
		a.perListing[l.SellerProductID] += int64(l.Quantity)
		a.perProduct[l.ProductID] += int64(l.Quantity)
		a.priceSum[l.ProductID] = a.priceSum[l.ProductID].Add(l.SellerPrice)
		a.priceN[l.ProductID]++
	}
	return a
}

func (a *allTime) meanPrice(productID uint) (decimal.Decimal, bool) {
	n := a.priceN[productID]
	if n == 0 {
		return decimal.Zero, false
	}
	return a.priceSum[productID].Div(decimal.NewFromInt(n)).Round(2), true
}

// ForSeller builds the advice board of one seller
func (s *RecommendationService) ForSeller(ctx context.Context, sellerID uint) (*Recommendations, error) {
	ds, err := s.analytics.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	var products []models.Product
	if err := s.store.DB(ctx).Preload("Category").Order("id").Find(&products).Error; err != nil {
		return nil, Internal(err, "Erreur lors du chargement des produits")
	}
	var cats []models.Category
	if err := s.store.DB(ctx).Order("id").Find(&cats).Error; err != nil {
		return nil, Internal(err, "Erreur lors du chargement des catégories")
	}

	rec := newRecommendations()
	sales := allTimeSales(ds)

	var own []*models.SellerProduct
	listed := map[uint]bool{}
	for i := range ds.listings {
		if sp := &ds.listings[i]; sp.SellerID == sellerID {
			own = append(own, sp)
			listed[sp.ProductID] = true
		}
	}

	// catalog expansion
	for _, p := range products {
		sold := sales.perProduct[p.ID]
		if listed[p.ID] || sold < 5 {
			continue
		}
		price, ok := sales.meanPrice(p.ID)
		if !ok {
			price = p.Price
		}
		rec.PotentialProducts = append(rec.PotentialProducts, PotentialProduct{
			ProductID:  p.ID,
			Name:       p.Name,
			Category:   p.CategoryName("Non catégorisé"),
			Sales:      sold,
			Reason:     fmt.Sprintf("Produit populaire (%d ventes) que vous ne vendez pas encore", sold),
			Suggestion: fmt.Sprintf("Inscrivez-vous pour vendre ce produit. Prix moyen recommandé: %s DH", price.StringFixed(2)),
		})
	}
	sort.SliceStable(rec.PotentialProducts, func(i, j int) bool {
		return rec.PotentialProducts[i].Sales > rec.PotentialProducts[j].Sales
	})
	if len(rec.PotentialProducts) > maxCatalogIdeas {
		rec.PotentialProducts = rec.PotentialProducts[:maxCatalogIdeas]
	}

	for _, sp := range own {
		sold := sales.perListing[sp.ID]
		rating, reviews := ds.rating(sp.ID)
		title := sp.DisplayTitle()

		if m, ok := competitorMean(ds, sp); ok {
			target := m.Mul(priceTarget).Round(2)
			if sp.Price.GreaterThan(m.Mul(priceHigh)) && sold < 3 {
				rec.Insights = append(rec.Insights, Insight{
					Type:  InsightWarning,
					Title: "Prix élevé: " + title,
					Message: fmt.Sprintf("Votre prix (%s DH) est supérieur à la moyenne du marché (%s DH). Envisagez de baisser à environ %s DH",
						sp.Price.StringFixed(2), m.StringFixed(2), target.StringFixed(2)),
					Icon:   "price_tag",
					Action: "Ajuster le prix pour être plus compétitif",
				})
			}
			if sp.Price.LessThan(m.Mul(priceLow)) && sold > 10 {
				rec.Insights = append(rec.Insights, Insight{
					Type:  InsightOpportunity,
					Title: "Opportunité de marge: " + title,
					Message: fmt.Sprintf("Vous vendez bien à %s DH alors que le marché est à %s DH. Vous pourriez augmenter à %s DH",
						sp.Price.StringFixed(2), m.StringFixed(2), target.StringFixed(2)),
					Icon:   "trending_up",
					Action: "Augmenter le prix pour améliorer votre marge",
				})
			}
		}

		if rating != nil && *rating >= 4.0 && reviews >= 3 && sold < 5 {
			r := round1(*rating)
			rec.ToImprove = append(rec.ToImprove, ProductToImprove{
				SellerProductID: sp.ID,
				Name:            title,
				Category:        sp.Product.CategoryName("N/A"),
				Rating:          &r,
				Sales:           sold,
				Problem:         fmt.Sprintf("Produit très bien noté (%.1f/5) mais peu vendu", *rating),
				Suggestion:      "Investissez dans le marketing: promotions, réseaux sociaux, mise en avant",
			})
		}

		if sold >= 15 && sp.Approved && sp.Product.CategoryID != nil {
			if next := sameCategoryUnlisted(products, *sp.Product.CategoryID, listed); next != nil {
				potential := sp.Price.Mul(decimal.NewFromInt(sold)).Mul(successRate).Round(2)
				rec.Opportunities = append(rec.Opportunities, Opportunity{
					Type:  "NOUVEAU_PRODUIT",
					Title: "Étendez votre gamme: " + next.Name,
					Description: fmt.Sprintf("Vous vendez bien '%s' (%d ventes). Le produit '%s' est dans la même catégorie et pourrait bien se vendre pour vous aussi.",
						title, sold, next.Name),
					Potential:  &potential,
					Priority:   "HAUTE",
					ProductIDs: []uint{next.ID},
				})
			}
		}

		if sp.Approved && sp.Product.Stock < 5 {
			rec.Alerts = append(rec.Alerts, Alert{
				Type:        "STOCK_FAIBLE",
				Title:       "Stock faible",
				Message:     fmt.Sprintf("Le produit '%s' a un stock de %d unités", title, sp.Product.Stock),
				Severity:    SeverityWarning,
				ElementID:   sp.ID,
				ElementType: "PRODUIT",
			})
		}
		if rating != nil && *rating < 3.0 && reviews >= 3 {
			rec.Alerts = append(rec.Alerts, Alert{
				Type:        "MAUVAISES_NOTES",
				Title:       "Note faible",
				Message:     fmt.Sprintf("Le produit '%s' a une note de %.1f/5. Vérifiez les avis clients.", title, *rating),
				Severity:    SeverityWarning,
				ElementID:   sp.ID,
				ElementType: "PRODUIT",
			})
		}
	}

	w := s.analytics.window(Filter{})
	sc := scope{sellerID: sellerID}
	kpis := s.analytics.kpis(ds, sc, w)
	switch {
	case kpis.Growth > 20:
		rec.Insights = append(rec.Insights, Insight{
			Type:    InsightSuccess,
			Title:   "Excellente croissance!",
			Message: fmt.Sprintf("Vos ventes ont augmenté de %.1f%% ce mois-ci. Continuez ainsi!", kpis.Growth),
			Icon:    "trending_up",
		})
	case kpis.Growth < -10:
		rec.Insights = append(rec.Insights, Insight{
			Type:    InsightWarning,
			Title:   "Baisse des ventes",
			Message: fmt.Sprintf("Vos ventes ont diminué de %.1f%% ce mois-ci", math.Abs(kpis.Growth)),
			Icon:    "trending_down",
			Action:  "Revoir votre stratégie de prix et de promotion",
		})
	}

	for _, c := range s.analytics.categories(ds, cats, sc, w).Categories {
		t := CategoryTrend{CategoryID: c.CategoryID, Name: c.Name, Growth: c.Growth, Share: c.RevenueShare}
		switch {
		case c.RevenueShare > 30:
			t.Trend = TrendUp
			t.Opportunity = fmt.Sprintf("Cette catégorie représente %.1f%% de votre CA. Excellent!", c.RevenueShare)
		case c.RevenueShare > 15:
			t.Trend = TrendStable
			t.Opportunity = "Catégorie stable. Continuez à la développer."
		default:
			t.Trend = TrendDown
			t.Opportunity = "Cette catégorie est sous-exploitée. Envisagez d'ajouter plus de produits."
		}
		rec.CategoryTrends = append(rec.CategoryTrends, t)
	}

	if len(rec.Opportunities) > maxOpportunities {
		rec.Opportunities = rec.Opportunities[:maxOpportunities]
	}
	return rec, nil
}

// competitorMean is the mean price of the other approved sellers listing the
// same catalog product
func competitorMean(ds *dataset, sp *models.SellerProduct) (decimal.Decimal, bool) {
	sum := decimal.Zero
	var n int64
	for i := range ds.listings {
		o := &ds.listings[i]
		if o.ProductID != sp.ProductID || o.SellerID == sp.SellerID || !o.Approved {
			continue
		}
		sum = sum.Add(o.Price)
		n++
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(n)).Round(2), true
}

func sameCategoryUnlisted(products []models.Product, categoryID uint, listed map[uint]bool) *models.Product {
	for i := range products {
		p := &products[i]
		if p.CategoryID != nil && *p.CategoryID == categoryID && !listed[p.ID] {
			return p
		}
	}
	return nil
}

// ForAdmin builds the platform advice board
func (s *RecommendationService) ForAdmin(ctx context.Context) (*Recommendations, error) {
	ds, err := s.analytics.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	var sellers []models.User
	err = s.store.DB(ctx).Where("role = ? AND approved = ?", models.RoleSeller, true).Order("id").Find(&sellers).Error
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement des vendeurs")
	}
	var cats []models.Category
	if err := s.store.DB(ctx).Order("id").Find(&cats).Error; err != nil {
		return nil, Internal(err, "Erreur lors du chargement des catégories")
	}

	rec := newRecommendations()
	f := Filter{}
	_ = f.Normalize()
	w := s.analytics.window(f)

	sellerStats := s.analytics.sellers(ds, sellers, f)
	var top, struggling int
	for _, v := range sellerStats.Sellers {
		switch v.Performance {
		case SellerTopPerformer:
			top++
			if top <= maxTopInsights {
				msg := fmt.Sprintf("CA de %s DH avec %d ventes. ", v.Revenue.StringFixed(2), v.Sales)
				if v.Rating != nil {
					msg += fmt.Sprintf("Note: %.1f/5", *v.Rating)
				}
				rec.Insights = append(rec.Insights, Insight{
					Type:    InsightSuccess,
					Title:   "Top vendeur: " + v.Name,
					Message: msg,
					Icon:    "star",
				})
			}
		case SellerToImprove:
			struggling++
			if v.Sales < 5 && v.Products > 3 {
				rec.Alerts = append(rec.Alerts, Alert{
					Type:        "PERFORMANCE",
					Title:       "Vendeur en difficulté: " + v.Name,
					Message:     fmt.Sprintf("Seulement %d ventes malgré %d produits. Proposer un accompagnement.", v.Sales, v.Products),
					Severity:    SeverityWarning,
					ElementID:   v.SellerID,
					ElementType: "VENDEUR",
				})
			}
		}
		if v.Growth > 50 {
			rec.Insights = append(rec.Insights, Insight{
				Type:    InsightSuccess,
				Title:   "Croissance exceptionnelle",
				Message: fmt.Sprintf("%s a une croissance de +%.1f%%!", v.Name, v.Growth),
				Icon:    "rocket",
			})
		}
	}

	kpis := s.analytics.kpis(ds, scope{}, w)
	if kpis.Pending > 10 {
		rec.Alerts = append(rec.Alerts, Alert{
			Type:     "PERFORMANCE",
			Title:    "Commandes en attente",
			Message:  fmt.Sprintf("%d commandes sont en attente de traitement", kpis.Pending),
			Severity: SeverityWarning,
		})
	}
	switch {
	case kpis.Growth > 20:
		rec.Insights = append(rec.Insights, Insight{
			Type:    InsightSuccess,
			Title:   "Croissance globale excellente",
			Message: fmt.Sprintf("La plateforme affiche une croissance de +%.1f%% ce mois!", kpis.Growth),
			Icon:    "trending_up",
		})
	case kpis.Growth < -15:
		rec.Alerts = append(rec.Alerts, Alert{
			Type:     "BAISSE_VENTES",
			Title:    "Baisse des ventes significative",
			Message:  fmt.Sprintf("Les ventes ont diminué de %.1f%%. Actions marketing recommandées.", math.Abs(kpis.Growth)),
			Severity: SeverityCritical,
		})
	}

	products := s.analytics.products(ds, 0, f)
	for i, p := range products.TopSales {
		if i >= 5 {
			break
		}
		if p.Sales >= 20 && p.Rating != nil && *p.Rating >= 4.0 {
			rec.PotentialProducts = append(rec.PotentialProducts, PotentialProduct{
				SellerProductID: p.SellerProductID,
				Name:            p.Title,
				Category:        p.CategoryName,
				Rating:          p.Rating,
				Reviews:         p.Reviews,
				Sales:           p.Sales,
				Reason:          fmt.Sprintf("Best-seller potentiel: %d ventes, note %.1f/5", p.Sales, *p.Rating),
				Suggestion:      "Mettre en avant ce produit sur la page d'accueil et dans les campagnes marketing",
			})
		}
	}
	for _, p := range products.All {
		if len(rec.ToImprove) >= maxProblemProducts {
			break
		}
		if p.Rating != nil && *p.Rating < 2.5 && p.Reviews >= 5 {
			rec.ToImprove = append(rec.ToImprove, ProductToImprove{
				SellerProductID: p.SellerProductID,
				Name:            p.Title,
				Category:        p.CategoryName,
				Rating:          p.Rating,
				Sales:           p.Sales,
				Problem:         fmt.Sprintf("Note très basse (%.1f/5) avec %d avis", *p.Rating, p.Reviews),
				Suggestion:      fmt.Sprintf("Contacter le vendeur %s pour améliorer le produit ou le retirer", p.SellerName),
			})
		}
	}

	for _, c := range s.analytics.categories(ds, cats, scope{}, w).Categories {
		t := CategoryTrend{CategoryID: c.CategoryID, Name: c.Name, Growth: c.Growth, Share: c.RevenueShare}
		switch {
		case c.RevenueShare > 25:
			t.Trend = TrendUp
			t.Opportunity = fmt.Sprintf("Catégorie dominante avec %.1f%% du CA. Excellente performance!", c.RevenueShare)
		case c.RevenueShare < 5 && c.Products > 10:
			t.Trend = TrendDown
			t.Opportunity = fmt.Sprintf("Catégorie sous-performante malgré %d produits. Analyser les prix et la visibilité.", c.Products)
			rec.Opportunities = append(rec.Opportunities, Opportunity{
				Type:        "CATEGORIE",
				Title:       "Développer la catégorie " + c.Name,
				Description: fmt.Sprintf("Cette catégorie ne représente que %.1f%% du CA. Potentiel d'amélioration.", c.RevenueShare),
				Priority:    "MOYENNE",
			})
		default:
			t.Trend = TrendStable
			t.Opportunity = fmt.Sprintf("Catégorie stable avec %.1f%% du CA.", c.RevenueShare)
		}
		rec.CategoryTrends = append(rec.CategoryTrends, t)
	}

	if struggling > 3 {
		rec.Opportunities = append(rec.Opportunities, Opportunity{
			Type:        "FORMATION",
			Title:       "Programme d'accompagnement vendeurs",
			Description: fmt.Sprintf("%d vendeurs ont des performances faibles. Proposer des formations ou du support.", struggling),
			Priority:    "HAUTE",
		})
	}
	if sellerStats.Active < 10 {
		rec.Opportunities = append(rec.Opportunities, Opportunity{
			Type:        "RECRUTEMENT",
			Title:       "Recruter plus de vendeurs",
			Description: fmt.Sprintf("Seulement %d vendeurs actifs. Augmenter la base pour diversifier l'offre.", sellerStats.Active),
			Priority:    "MOYENNE",
		})
	}
	return rec, nil
}
