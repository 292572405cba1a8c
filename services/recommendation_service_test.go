package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecommender(m *market, ai AIClient) *RecommendationService {
	return NewRecommendationService(newAnalytics(m, nil), m.store, ai)
}

func TestSellerRecommendations(t *testing.T) {
	m := newMarket(t)
	seedKPIWindow(t, m)
	require.NoError(t, m.db.Model(&models.Product{}).Where("id = ?", m.product.ID).Update("stock", 2).Error)

	rec, err := newRecommender(m, nil).ForSeller(context.Background(), m.seller.ID)
	require.NoError(t, err)

	require.NotEmpty(t, rec.Insights)
	assert.Equal(t, "Excellente croissance!", rec.Insights[len(rec.Insights)-1].Title)

	require.Len(t, rec.Alerts, 1)
	assert.Equal(t, "STOCK_FAIBLE", rec.Alerts[0].Type)
	assert.Equal(t, m.listing.ID, rec.Alerts[0].ElementID)

	require.Len(t, rec.CategoryTrends, 1)
	assert.Equal(t, TrendUp, rec.CategoryTrends[0].Trend)
	assert.Equal(t, 100.0, rec.CategoryTrends[0].Share)
}

func TestSellerRecommendationsPriceWarning(t *testing.T) {
	m := newMarket(t)
	rival := testutil.CreateUser(t, m.db, "rival@example.com", models.RoleSeller, true)
	testutil.CreateListing(t, m.db, rival, m.product, "110.00", true)

	rec, err := newRecommender(m, nil).ForSeller(context.Background(), m.seller.ID)
	require.NoError(t, err)

	require.NotEmpty(t, rec.Insights)
	assert.Equal(t, InsightWarning, rec.Insights[0].Type)
	assert.Contains(t, rec.Insights[0].Message, "110.00 DH")
	assert.Contains(t, rec.Insights[0].Message, "104.50 DH")
}

func TestSellerRecommendationsCatalogExpansion(t *testing.T) {
	m := newMarket(t)
	rival := testutil.CreateUser(t, m.db, "rival@example.com", models.RoleSeller, true)
	popular := testutil.CreateProduct(t, m.db, "Lime", "5.00", 100, m.category)
	theirs := testutil.CreateListing(t, m.db, rival, popular, "8.00", true)
	testutil.CreateOrder(t, m.db, m.buyer, models.StatusDelivered, time.Now(),
		testutil.LineSpec{Listing: theirs, Quantity: 6, Price: "8.00"})

	rec, err := newRecommender(m, nil).ForSeller(context.Background(), m.seller.ID)
	require.NoError(t, err)

	require.Len(t, rec.PotentialProducts, 1)
	assert.Equal(t, popular.ID, rec.PotentialProducts[0].ProductID)
	assert.Equal(t, int64(6), rec.PotentialProducts[0].Sales)
	assert.Contains(t, rec.PotentialProducts[0].Suggestion, "8.00 DH")
}

func TestAdminRecommendationsEmptyPlatform(t *testing.T) {
	m := newMarket(t)
	rec, err := newRecommender(m, nil).ForAdmin(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rec.Insights)
	assert.NotNil(t, rec.Alerts)
	assert.NotNil(t, rec.Opportunities)
}

// collaborativeMarket adds a second buyer who bought a listing the first
// buyer never ordered
func collaborativeMarket(t *testing.T) (*market, *models.User, *models.SellerProduct) {
	t.Helper()
	m := newMarket(t)
	neighbour := testutil.CreateUser(t, m.db, "voisin@example.com", models.RoleBuyer, true)
	other := testutil.CreateListing(t, m.db, m.seller, testutil.CreateProduct(t, m.db, "Lime", "5.00", 10, m.category), "8.00", true)

	testutil.CreateOrder(t, m.db, m.buyer, models.StatusDelivered, time.Now(),
		testutil.LineSpec{Listing: m.listing, Quantity: 1, Price: "150.00"})
	testutil.CreateOrder(t, m.db, neighbour, models.StatusDelivered, time.Now(),
		testutil.LineSpec{Listing: m.listing, Quantity: 1, Price: "150.00"},
		testutil.LineSpec{Listing: other, Quantity: 2, Price: "8.00"})
	return m, neighbour, other
}

func TestForBuyer(t *testing.T) {
	m, neighbour, other := collaborativeMarket(t)
	ai := &fakeAI{similar: []uint{m.buyer.ID, neighbour.ID}}

	list, err := newRecommender(m, ai).ForBuyer(context.Background(), m.buyer.ID, 0)
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)
	assert.Equal(t, DefaultSimilarBuyers, ai.lastK)
	assert.ElementsMatch(t, []uint{m.buyer.ID, neighbour.ID}, ai.lastSeen.ClientIDs)
	assert.Equal(t, []string{"Vernis", "Vernis"}, ai.lastSeen.Categories)
}

func TestForBuyerFallsBackToEmpty(t *testing.T) {
	m, neighbour, _ := collaborativeMarket(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ai   AIClient
	}{
		{"no AI client configured", nil},
		{"AI service down", &fakeAI{err: errors.New("connection refused")}},
		{"only the buyer is similar", &fakeAI{similar: []uint{m.buyer.ID}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := newRecommender(m, tt.ai).ForBuyer(ctx, m.buyer.ID, 3)
			require.NoError(t, err)
			assert.NotNil(t, list)
			assert.Empty(t, list)
		})
	}

	newcomer := testutil.CreateUser(t, m.db, "nouveau@example.com", models.RoleBuyer, true)
	untouched := &fakeAI{similar: []uint{neighbour.ID}}
	list, err := newRecommender(m, untouched).ForBuyer(ctx, newcomer.ID, 3)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, untouched.lastK, "buyers without history are not sent to the AI service")
}
