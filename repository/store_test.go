package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	if os.Getenv("GO_ENV") == "" {
		os.Setenv("GO_ENV", "test")
	}
	if os.Getenv("GO_ENV") != "test" {
		os.Stderr.WriteString("refusing to run tests outside GO_ENV=test\n")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestAdjustStock(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := New(db)
	p := testutil.CreateProduct(t, db, "Vernis", "10.00", 5, nil)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	err := store.Transaction(context.Background(), func(tx *gorm.DB) error {
		return AdjustStock(tx, p.ID, -3, at)
	})
	require.NoError(t, err)

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, 2, got.Stock)
	require.NotNil(t, got.LastRestockDate)
	assert.True(t, got.LastRestockDate.Equal(at))

	err = store.Transaction(context.Background(), func(tx *gorm.DB) error {
		return AdjustStock(tx, p.ID, -3, at)
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, 2, got.Stock, "failed decrement must not write")
}

func TestSetStockOnlyStampsOnChange(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := New(db)
	p := testutil.CreateProduct(t, db, "Lime", "4.00", 7, nil)
	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	err := store.Transaction(context.Background(), func(tx *gorm.DB) error {
		_, err := SetStock(tx, p.ID, 7, at)
		return err
	})
	require.NoError(t, err)

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Nil(t, got.LastRestockDate)

	err = store.Transaction(context.Background(), func(tx *gorm.DB) error {
		_, err := SetStock(tx, p.ID, 20, at)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, 20, got.Stock)
	assert.NotNil(t, got.LastRestockDate)
}

func TestLockCartCreatesOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := New(db)
	buyer := testutil.CreateUser(t, db, "b@test.com", models.RoleBuyer, false)

	var first, second *models.Cart
	require.NoError(t, store.Transaction(context.Background(), func(tx *gorm.DB) error {
		var err error
		first, err = LockCart(tx, buyer.ID)
		return err
	}))
	require.NoError(t, store.Transaction(context.Background(), func(tx *gorm.DB) error {
		var err error
		second, err = LockCart(tx, buyer.ID)
		return err
	}))

	assert.Equal(t, first.ID, second.ID)
	var count int64
	db.Model(&models.Cart{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestClearCartWithoutCartIsNoop(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := New(db)
	err := store.Transaction(context.Background(), func(tx *gorm.DB) error {
		return ClearCart(tx, 42, time.Now())
	})
	assert.NoError(t, err)
}

func TestOrderLineFactsAndReviewStats(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := New(db)
	cat := testutil.CreateCategory(t, db, "Ongles")
	seller := testutil.CreateUser(t, db, "s@test.com", models.RoleSeller, true)
	other := testutil.CreateUser(t, db, "s2@test.com", models.RoleSeller, true)
	buyer := testutil.CreateUser(t, db, "b@test.com", models.RoleBuyer, false)
	p := testutil.CreateProduct(t, db, "Vernis", "10.00", 50, cat)
	sp := testutil.CreateListing(t, db, seller, p, "15.00", true)
	sp2 := testutil.CreateListing(t, db, other, p, "14.00", true)
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	testutil.CreateOrder(t, db, buyer, models.StatusDelivered, at,
		testutil.LineSpec{Listing: sp, Quantity: 2, Price: "15.00"},
		testutil.LineSpec{Listing: sp2, Quantity: 1, Price: "14.00"})

	facts, err := store.OrderLineFacts(context.Background(), FactFilter{})
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, models.StatusDelivered, facts[0].Status)
	assert.Equal(t, buyer.ID, facts[0].BuyerID)
	require.NotNil(t, facts[0].CategoryID)
	assert.Equal(t, cat.ID, *facts[0].CategoryID)
	assert.True(t, facts[0].Subtotal.Equal(testutil.Price("30")))
	assert.True(t, facts[0].CatalogPrice.Equal(testutil.Price("10")))
	assert.True(t, facts[0].OrderedAt.Equal(at))

	own, err := store.OrderLineFacts(context.Background(), FactFilter{SellerID: seller.ID})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, sp.ID, own[0].SellerProductID)

	b2 := testutil.CreateUser(t, db, "b2@test.com", models.RoleBuyer, false)
	testutil.CreateReview(t, db, buyer, sp, 5, false)
	testutil.CreateReview(t, db, b2, sp, 2, true)

	stats, err := store.ReviewStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats[sp.ID].Count, "hidden reviews are excluded")
	assert.InDelta(t, 5.0, stats[sp.ID].Mean, 0.0001)
	_, ok := stats[sp2.ID]
	assert.False(t, ok)
}

func TestOrderLineFactsFilters(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := New(db)
	nails := testutil.CreateCategory(t, db, "Ongles")
	care := testutil.CreateCategory(t, db, "Soins")
	seller := testutil.CreateUser(t, db, "s@test.com", models.RoleSeller, true)
	buyer := testutil.CreateUser(t, db, "b@test.com", models.RoleBuyer, true)
	polish := testutil.CreateListing(t, db, seller, testutil.CreateProduct(t, db, "Vernis", "10.00", 50, nails), "15.00", true)
	cream := testutil.CreateListing(t, db, seller, testutil.CreateProduct(t, db, "Crème", "8.00", 50, care), "12.00", true)

	old := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	march := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	testutil.CreateOrder(t, db, buyer, models.StatusDelivered, old, testutil.LineSpec{Listing: polish, Quantity: 1, Price: "15.00"})
	testutil.CreateOrder(t, db, buyer, models.StatusDelivered, march,
		testutil.LineSpec{Listing: polish, Quantity: 2, Price: "15.00"},
		testutil.LineSpec{Listing: cream, Quantity: 1, Price: "12.00"})

	ctx := context.Background()
	from, to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	recent, err := store.OrderLineFacts(ctx, FactFilter{From: from, To: to})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	polishOnly, err := store.OrderLineFacts(ctx, FactFilter{CategoryID: &nails.ID, From: from, To: to})
	require.NoError(t, err)
	require.Len(t, polishOnly, 1)
	assert.Equal(t, polish.ID, polishOnly[0].SellerProductID)

	allPolish, err := store.OrderLineFacts(ctx, FactFilter{CategoryID: &nails.ID})
	require.NoError(t, err)
	assert.Len(t, allPolish, 2)

	// To is exclusive
	none, err := store.OrderLineFacts(ctx, FactFilter{From: from, To: march})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCollaborativeQueries(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := New(db)
	cat := testutil.CreateCategory(t, db, "Soins")
	seller := testutil.CreateUser(t, db, "s@test.com", models.RoleSeller, true)
	b1 := testutil.CreateUser(t, db, "b1@test.com", models.RoleBuyer, false)
	b2 := testutil.CreateUser(t, db, "b2@test.com", models.RoleBuyer, false)
	p1 := testutil.CreateProduct(t, db, "Huile", "5.00", 50, cat)
	p2 := testutil.CreateProduct(t, db, "Creme", "8.00", 50, cat)
	p3 := testutil.CreateProduct(t, db, "Gel", "8.00", 50, cat)
	sp1 := testutil.CreateListing(t, db, seller, p1, "6.00", true)
	sp2 := testutil.CreateListing(t, db, seller, p2, "9.00", true)
	sp3 := testutil.CreateListing(t, db, seller, p3, "9.00", false)
	now := time.Now()

	testutil.CreateOrder(t, db, b1, models.StatusDelivered, now, testutil.LineSpec{Listing: sp1, Quantity: 2, Price: "6.00"})
	testutil.CreateOrder(t, db, b2, models.StatusPending, now,
		testutil.LineSpec{Listing: sp1, Quantity: 1, Price: "6.00"},
		testutil.LineSpec{Listing: sp2, Quantity: 3, Price: "9.00"},
		testutil.LineSpec{Listing: sp3, Quantity: 1, Price: "9.00"})

	rows, err := store.CollaborativeRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []CollaborativeRow{
		{BuyerID: b1.ID, Category: "Soins", Score: 2},
		{BuyerID: b2.ID, Category: "Soins", Score: 5},
	}, rows)

	recs, err := store.ListingsBoughtByOthers(context.Background(), []uint{b2.ID}, b1.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1, "already bought and unapproved listings are left out")
	assert.Equal(t, sp2.ID, recs[0].ID)
	assert.Equal(t, "Creme", recs[0].Product.Name)
}

func TestIsUniqueViolation(t *testing.T) {
	db := testutil.NewTestDB(t)
	u := testutil.CreateUser(t, db, "nadia@example.com", models.RoleBuyer, true)

	dup := models.User{Name: "Copie", Email: u.Email, PasswordHash: "x", Role: models.RoleBuyer}
	err := db.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(db.First(&models.User{}, 9999).Error))
	assert.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`)))
}
