package services

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
)

// Period types of sales trends
const (
	PeriodDay   = "JOUR"
	PeriodWeek  = "SEMAINE"
	PeriodMonth = "MOIS"
)

// Product sort keys
const (
	SortSales   = "VENTES"
	SortRevenue = "CA"
	SortRating  = "NOTE"
	SortPrice   = "PRIX"
	SortName    = "NOM"
)

// Filter narrows every analytics computation. Nil fields are not applied.
// Dates are calendar days in the service time zone.
type Filter struct {
	DateFrom     *time.Time       `json:"dateDebut,omitempty"`
	DateTo       *time.Time       `json:"dateFin,omitempty"`
	CategoryID   *uint            `json:"categorieId,omitempty"`
	SellerID     *uint            `json:"vendeurId,omitempty"`
	PriceMin     *decimal.Decimal `json:"prixMin,omitempty"`
	PriceMax     *decimal.Decimal `json:"prixMax,omitempty"`
	MinRating    *float64         `json:"noteMinimale,omitempty"`
	MinReviews   *int64           `json:"nombreReviewsMin,omitempty"`
	SortBy       string           `json:"triPar,omitempty"`
	Order        string           `json:"ordreTri,omitempty"`
	OnlyApproved *bool            `json:"estApprouve,omitempty"`
	PeriodType   string           `json:"typePeriode,omitempty"`
}

var periodAliases = map[string]string{
	"":        PeriodDay,
	"JOUR":    PeriodDay,
	"DAY":     PeriodDay,
	"SEMAINE": PeriodWeek,
	"WEEK":    PeriodWeek,
	"MOIS":    PeriodMonth,
	"MONTH":   PeriodMonth,
}

var sortAliases = map[string]string{
	"":        SortSales,
	"VENTES":  SortSales,
	"SALES":   SortSales,
	"CA":      SortRevenue,
	"REVENUE": SortRevenue,
	"NOTE":    SortRating,
	"RATING":  SortRating,
	"PRIX":    SortPrice,
	"PRICE":   SortPrice,
	"NOM":     SortName,
	"NAME":    SortName,
}

// Normalize validates the enumerations and rewrites aliases to their
// canonical form
func (f *Filter) Normalize() error {
	period, ok := periodAliases[strings.ToUpper(strings.TrimSpace(f.PeriodType))]
	if !ok {
		return NewValidation("typePeriode invalide: %s (JOUR, SEMAINE ou MOIS)", f.PeriodType)
	}
	f.PeriodType = period

	sortBy, ok := sortAliases[strings.ToUpper(strings.TrimSpace(f.SortBy))]
	if !ok {
		return NewValidation("triPar invalide: %s (VENTES, CA, NOTE, PRIX ou NOM)", f.SortBy)
	}
	f.SortBy = sortBy

	switch order := strings.ToUpper(strings.TrimSpace(f.Order)); order {
	case "", "ASC", "DESC":
		f.Order = order
	default:
		return NewValidation("ordreTri invalide: %s (ASC ou DESC)", f.Order)
	}

	if f.PriceMin != nil && f.PriceMax != nil && f.PriceMin.GreaterThan(*f.PriceMax) {
		return NewValidation("prixMin doit être inférieur ou égal à prixMax")
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return NewValidation("dateDebut doit précéder dateFin")
	}
	return nil
}

// window is a closed interval of calendar days
type window struct {
	From time.Time
	To   time.Time
}

// contains reports whether t falls on a day of the window
func (w window) contains(t time.Time) bool {
	t = t.In(w.From.Location())
	return !t.Before(w.From) && t.Before(w.To.AddDate(0, 0, 1))
}

func (w window) days() int {
	return int(math.Round(w.To.Sub(w.From).Hours()/24)) + 1
}

// previous is the window of the same length ending the day before w
func (w window) previous() window {
	n := w.days()
	return window{From: w.From.AddDate(0, 0, -n), To: w.From.AddDate(0, 0, -1)}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// AnalyticsService computes read-only KPIs, trends and rankings from the
// order-line projection. Results may be cached for a short time.
type AnalyticsService struct {
	store *repository.Store
	cache AnalyticsCache
	loc   *time.Location
	now   func() time.Time
}

// NewAnalyticsService creates an analytics service. cache may be nil; loc
// defaults to UTC.
func NewAnalyticsService(store *repository.Store, cache AnalyticsCache, loc *time.Location) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{store: store, cache: cache, loc: loc, now: time.Now}
}

// window resolves the filter dates, defaulting to the last month up to today
func (s *AnalyticsService) window(f Filter) window {
	today := startOfDay(s.now(), s.loc)
	w := window{From: today.AddDate(0, -1, 0), To: today}
	if f.DateFrom != nil {
		w.From = startOfDay(*f.DateFrom, s.loc)
	}
	if f.DateTo != nil {
		w.To = startOfDay(*f.DateTo, s.loc)
	}
	return w
}

// cached returns the cached result for key or computes and stores it.
// Cache failures only cost a recomputation.
func cached[T any](ctx context.Context, c AnalyticsCache, scope string, key interface{}, compute func() (*T, error)) (*T, error) {
	if c != nil {
		var hit T
		ok, err := c.Get(ctx, scope, key, &hit)
		if err != nil {
			log.Printf("[analytics] cache read %s failed: %v", scope, err)
		} else if ok {
			return &hit, nil
		}
	}
	out, err := compute()
	if err != nil {
		return nil, err
	}
	if c != nil {
		if err := c.Set(ctx, scope, key, out); err != nil {
			log.Printf("[analytics] cache write %s failed: %v", scope, err)
		}
	}
	return out, nil
}

type cacheKey struct {
	SellerID uint      `json:"s"`
	Window   window    `json:"w"`
	Filter   Filter    `json:"f"`
	Extra    string    `json:"x,omitempty"`
	Day      time.Time `json:"d"`
}

func (s *AnalyticsService) key(sellerID uint, f Filter, extra string) cacheKey {
	return cacheKey{SellerID: sellerID, Window: s.window(f), Filter: f, Extra: extra, Day: startOfDay(s.now(), s.loc)}
}

// dataset is everything one analytics call scans
type dataset struct {
	facts    []repository.LineFact
	ratings  map[uint]repository.RatingStat
	listings []models.SellerProduct
	byID     map[uint]*models.SellerProduct
}

// load reads the order lines of sc from the start of the window preceding w
// to the end of w, with the review aggregates and the listings of sc's
// seller. The database bounds get a day of slack on each side; lines applies
// the exact ones.
func (s *AnalyticsService) load(ctx context.Context, sc scope, w window) (*dataset, error) {
	return s.read(ctx, repository.FactFilter{
		SellerID:   sc.sellerID,
		CategoryID: sc.categoryID,
		From:       w.previous().From.AddDate(0, 0, -1),
		To:         w.To.AddDate(0, 0, 2),
	})
}

// loadAll reads the whole history of every seller
func (s *AnalyticsService) loadAll(ctx context.Context) (*dataset, error) {
	return s.read(ctx, repository.FactFilter{})
}

func (s *AnalyticsService) read(ctx context.Context, f repository.FactFilter) (*dataset, error) {
	facts, err := s.store.OrderLineFacts(ctx, f)
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement des ventes")
	}
	ratings, err := s.store.ReviewStats(ctx)
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement des avis")
	}
	listings, err := s.store.Listings(ctx, f.SellerID)
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement des produits")
	}
	ds := &dataset{facts: facts, ratings: ratings, listings: listings, byID: make(map[uint]*models.SellerProduct, len(listings))}
	for i := range ds.listings {
		ds.byID[ds.listings[i].ID] = &ds.listings[i]
	}
	return ds, nil
}

// scope restricts order lines and listings to a seller and a category
type scope struct {
	sellerID   uint
	categoryID *uint
}

func newScope(sellerID uint, f Filter) scope {
	if sellerID == 0 && f.SellerID != nil {
		sellerID = *f.SellerID
	}
	return scope{sellerID: sellerID, categoryID: f.CategoryID}
}

func (sc scope) line(l *repository.LineFact) bool {
	if sc.sellerID != 0 && l.SellerID != sc.sellerID {
		return false
	}
	if sc.categoryID != nil && (l.CategoryID == nil || *l.CategoryID != *sc.categoryID) {
		return false
	}
	return true
}

func (sc scope) listing(sp *models.SellerProduct) bool {
	if sc.sellerID != 0 && sp.SellerID != sc.sellerID {
		return false
	}
	if sc.categoryID != nil && (sp.Product.CategoryID == nil || *sp.Product.CategoryID != *sc.categoryID) {
		return false
	}
	return true
}

// lines returns the non-cancelled lines of the scope inside w
func (ds *dataset) lines(sc scope, w window) []*repository.LineFact {
	var out []*repository.LineFact
	for i := range ds.facts {
		l := &ds.facts[i]
		if l.Status == models.StatusCancelled || !w.contains(l.OrderedAt) || !sc.line(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// tally accumulates the sales figures of a set of non-cancelled lines.
// Revenue only counts delivered orders.
type tally struct {
	Revenue   decimal.Decimal
	Items     int64
	orders    map[uint]struct{}
	delivered map[uint]struct{}
}

func newTally() *tally {
	return &tally{orders: map[uint]struct{}{}, delivered: map[uint]struct{}{}}
}

func (t *tally) add(l *repository.LineFact) {
	t.Items += int64(l.Quantity)
	t.orders[l.OrderID] = struct{}{}
	if l.Status == models.StatusDelivered {
		t.Revenue = t.Revenue.Add(l.Subtotal)
		t.delivered[l.OrderID] = struct{}{}
	}
}

func (t *tally) Orders() int64          { return int64(len(t.orders)) }
func (t *tally) DeliveredOrders() int64 { return int64(len(t.delivered)) }

func tallyOf(lines []*repository.LineFact) *tally {
	t := newTally()
	for _, l := range lines {
		t.add(l)
	}
	return t
}

// tallyBy groups lines by key
func tallyBy(lines []*repository.LineFact, key func(*repository.LineFact) uint) map[uint]*tally {
	out := map[uint]*tally{}
	for _, l := range lines {
		k := key(l)
		t, ok := out[k]
		if !ok {
			t = newTally()
			out[k] = t
		}
		t.add(l)
	}
	return out
}

// GrowthRate is the percentage change from previous to current, rounded to
// two decimals. A start from zero counts as 100% when anything was sold.
func GrowthRate(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsPositive() {
			return 100
		}
		return 0
	}
	return current.Sub(previous).Mul(decimal.NewFromInt(100)).Div(previous).Round(2).InexactFloat64()
}

// WeightedMean averages per-product means weighted by their review counts.
// It returns nil when no product has a review.
func WeightedMean(stats []repository.RatingStat) *float64 {
	var sum float64
	var n int
	for _, st := range stats {
		if st.Count <= 0 {
			continue
		}
		sum += st.Mean * float64(st.Count)
		n += st.Count
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// ratingsOf collects the review aggregates of the listings matching keep
func (ds *dataset) ratingsOf(keep func(*models.SellerProduct) bool) ([]repository.RatingStat, int64) {
	var stats []repository.RatingStat
	var count int64
	for i := range ds.listings {
		sp := &ds.listings[i]
		if !keep(sp) {
			continue
		}
		if st, ok := ds.ratings[sp.ID]; ok {
			stats = append(stats, st)
			count += int64(st.Count)
		}
	}
	return stats, count
}

func (ds *dataset) rating(id uint) (*float64, int64) {
	st, ok := ds.ratings[id]
	if !ok || st.Count == 0 {
		return nil, 0
	}
	mean := st.Mean
	return &mean, int64(st.Count)
}

// Category performance tags
const (
	CategoryPerforming     = "PERFORMING"
	CategoryHighPotential  = "HIGH_POTENTIAL"
	CategoryUnderExploited = "UNDER_EXPLOITED"
	CategoryStable         = "STABLE"
)

// wellRated reports a weighted rating of at least 4. unrated is the answer
// for an entity without reviews.
func wellRated(rating *float64, unrated bool) bool {
	if rating == nil {
		return unrated
	}
	return *rating >= 4.0
}

// CategoryTag classifies a category from its revenue share (percent), its
// weighted rating and its units sold. A category without reviews can still
// be PERFORMING on sales alone but is never HIGH_POTENTIAL.
func CategoryTag(share float64, rating *float64, sales int64) string {
	switch {
	case share >= 20 && wellRated(rating, true):
		return CategoryPerforming
	case share < 10 && wellRated(rating, false):
		return CategoryHighPotential
	case share < 5 && sales < 10:
		return CategoryUnderExploited
	default:
		return CategoryStable
	}
}

// Seller performance tags
const (
	SellerTopPerformer = "TOP_PERFORMER"
	SellerPerforming   = "PERFORMING"
	SellerAverage      = "AVERAGE"
	SellerToImprove    = "TO_IMPROVE"
)

var (
	tenThousand  = decimal.NewFromInt(10000)
	fiveThousand = decimal.NewFromInt(5000)
	oneThousand  = decimal.NewFromInt(1000)
)

// SellerTag classifies a seller from delivered revenue and weighted rating.
// An unreviewed seller is judged on revenue only.
func SellerTag(revenue decimal.Decimal, rating *float64) string {
	switch {
	case revenue.GreaterThanOrEqual(tenThousand) && wellRated(rating, true):
		return SellerTopPerformer
	case revenue.GreaterThanOrEqual(fiveThousand):
		return SellerPerforming
	case revenue.GreaterThanOrEqual(oneThousand):
		return SellerAverage
	default:
		return SellerToImprove
	}
}

// Product growth tags
const (
	TrendGrowing   = "GROWING"
	TrendStable    = "STABLE"
	TrendDeclining = "DECLINING"
)

// TrendTag turns a growth percentage into a tag with a ±10% dead band
func TrendTag(growth float64) string {
	switch {
	case growth > 10:
		return TrendGrowing
	case growth < -10:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// percent is 100·part/total rounded to two decimals, 0 for an empty total
func percent(part, total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	return part.Mul(decimal.NewFromInt(100)).Div(total).Round(2).InexactFloat64()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func sortedIDs[V any](m map[uint]V) []uint {
	ids := make([]uint, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
