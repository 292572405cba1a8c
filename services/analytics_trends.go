package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
)

// TrendPoint is one bucket of a sales series
type TrendPoint struct {
	Label   string          `json:"periode"`
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"chiffreAffaires"`
	Orders  int64           `json:"nombreVentes"`
	Items   int64           `json:"nombreProduits"`
}

// Trends is a bucketed sales series with the preceding window for comparison
type Trends struct {
	Points     []TrendPoint    `json:"pointsVente"`
	Previous   []TrendPoint    `json:"pointsVenteComparaison"`
	Revenue    decimal.Decimal `json:"totalVentes"`
	Orders     int64           `json:"nombreCommandes"`
	MeanPerBin decimal.Decimal `json:"moyenneParPeriode"`
	From       string          `json:"dateDebut"`
	To         string          `json:"dateFin"`
	PeriodType string          `json:"typePeriode"`
}

const dayLayout = "2006-01-02"

// Trends buckets the window by day, ISO week or month
func (s *AnalyticsService) Trends(ctx context.Context, sellerID uint, f Filter) (*Trends, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, "trends", s.key(sellerID, f, ""), func() (*Trends, error) {
		sc, w := newScope(sellerID, f), s.window(f)
		ds, err := s.load(ctx, sc, w)
		if err != nil {
			return nil, err
		}

		tr := &Trends{
			Points:     s.buckets(ds.lines(sc, w), f.PeriodType),
			Previous:   s.buckets(ds.lines(sc, w.previous()), f.PeriodType),
			Revenue:    decimal.Zero,
			MeanPerBin: decimal.Zero,
			From:       w.From.Format(dayLayout),
			To:         w.To.Format(dayLayout),
			PeriodType: f.PeriodType,
		}
		for _, p := range tr.Points {
			tr.Revenue = tr.Revenue.Add(p.Revenue)
			tr.Orders += p.Orders
		}
		if n := len(tr.Points); n > 0 {
			tr.MeanPerBin = tr.Revenue.Div(decimal.NewFromInt(int64(n))).Round(2)
		}
		return tr, nil
	})
}

// buckets groups lines into chronologically sorted points; empty buckets are
// not emitted
func (s *AnalyticsService) buckets(lines []*repository.LineFact, period string) []TrendPoint {
	groups := map[int64][]*repository.LineFact{}
	starts := map[int64]time.Time{}
	for _, l := range lines {
		start := bucketStart(l.OrderedAt.In(s.loc), period)
		k := start.Unix()
		groups[k] = append(groups[k], l)
		starts[k] = start
	}

	keys := make([]int64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	points := make([]TrendPoint, 0, len(keys))
	for _, k := range keys {
		t := tallyOf(groups[k])
		points = append(points, TrendPoint{
			Label:   bucketLabel(starts[k], period),
			Date:    starts[k].Format(dayLayout),
			Revenue: t.Revenue,
			Orders:  t.Orders(),
			Items:   t.Items,
		})
	}
	return points
}

func bucketStart(t time.Time, period string) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch period {
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

func bucketLabel(start time.Time, period string) string {
	switch period {
	case PeriodWeek:
		year, week := start.ISOWeek()
		return fmt.Sprintf("S%d %d", week, year)
	case PeriodMonth:
		return strings.ToUpper(start.Format("Jan 2006"))
	default:
		return start.Format(dayLayout)
	}
}
