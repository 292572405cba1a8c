package services

import (
	"context"
	"testing"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanSellerDisapprovesListings(t *testing.T) {
	m := newMarket(t)
	mod := NewModerationService(m.store, nil)
	ctx := context.Background()

	msg, err := mod.BanSeller(ctx, m.seller.ID)
	require.NoError(t, err)
	assert.Contains(t, msg, "banni")

	var seller models.User
	require.NoError(t, m.db.First(&seller, m.seller.ID).Error)
	assert.False(t, seller.Approved)
	var sp models.SellerProduct
	require.NoError(t, m.db.First(&sp, m.listing.ID).Error)
	assert.False(t, sp.Approved)

	_, err = mod.ApproveSeller(ctx, m.seller.ID)
	require.NoError(t, err)
	require.NoError(t, m.db.First(&sp, m.listing.ID).Error)
	assert.False(t, sp.Approved, "listings stay banned until approved one by one")

	_, err = mod.BanSeller(ctx, m.buyer.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestRejectSeller(t *testing.T) {
	m := newMarket(t)
	mod := NewModerationService(m.store, nil)
	ctx := context.Background()

	fresh := testutil.CreateUser(t, m.db, "nouveau@example.com", models.RoleSeller, false)
	testutil.CreateListing(t, m.db, fresh, m.product, "120.00", false)
	_, err := mod.RejectSeller(ctx, fresh.ID)
	require.NoError(t, err)
	var count int64
	require.NoError(t, m.db.Model(&models.User{}).Where("id = ?", fresh.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	testutil.CreateOrder(t, m.db, m.buyer, models.StatusDelivered, time.Now(),
		testutil.LineSpec{Listing: m.listing, Quantity: 1, Price: "150.00"})
	_, err = mod.RejectSeller(ctx, m.seller.ID)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestListingModeration(t *testing.T) {
	m := newMarket(t)
	ai := &fakeAI{}
	indexer := NewProductIndexer(ai, 4, time.Second)
	indexer.Start()
	mod := NewModerationService(m.store, indexer)
	ctx := context.Background()

	pending := testutil.CreateListing(t, m.db, testutil.CreateUser(t, m.db, "autre@example.com", models.RoleSeller, true), m.product, "130.00", false)

	list, err := mod.Listings(ctx, ApprovalPending)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0].ID)

	_, err = mod.ApproveListing(ctx, pending.ID)
	require.NoError(t, err)
	_, err = mod.ApproveListing(ctx, pending.ID)
	assert.Equal(t, KindConflict, KindOf(err))

	indexer.Close()
	require.Len(t, ai.indexed, 1)
	assert.Equal(t, pending.ID, ai.indexed[0].ID)
	assert.True(t, ai.indexed[0].VendorPrice.Equal(decimal.RequireFromString("130.00")))

	_, err = mod.BanListing(ctx, pending.ID)
	require.NoError(t, err)
	_, err = mod.RejectListing(ctx, pending.ID)
	require.NoError(t, err)
	_, err = mod.RejectListing(ctx, pending.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestPlatformStats(t *testing.T) {
	m := newMarket(t)
	testutil.CreateUser(t, m.db, "pending@example.com", models.RoleSeller, false)

	st, err := NewModerationService(m.store, nil).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Sellers)
	assert.Equal(t, int64(1), st.ApprovedSellers)
	assert.Equal(t, int64(1), st.PendingSellers)
	assert.Equal(t, int64(1), st.Products)
	assert.Equal(t, int64(1), st.Categories)
	assert.Equal(t, int64(0), st.PendingListings)
}

func TestInscribe(t *testing.T) {
	m := newMarket(t)
	listings := NewSellerProductService(m.store, nil)
	ctx := context.Background()
	seller := testutil.CreateUser(t, m.db, "nouveau@example.com", models.RoleSeller, true)

	_, err := listings.Inscribe(ctx, seller.ID, InscriptionInput{ProductID: m.product.ID, Price: decimal.NewFromInt(100)})
	assert.Equal(t, KindValidation, KindOf(err), "price must exceed the catalog price")

	view, err := listings.Inscribe(ctx, seller.ID, InscriptionInput{ProductID: m.product.ID, Price: decimal.RequireFromString("110.456"), Title: " Vernis pro "})
	require.NoError(t, err)
	assert.False(t, view.Approved)
	assert.Equal(t, "Vernis pro", view.Title)
	assert.True(t, view.Price.Equal(decimal.RequireFromString("110.46")))

	_, err = listings.Inscribe(ctx, seller.ID, InscriptionInput{ProductID: m.product.ID, Price: decimal.NewFromInt(120)})
	assert.Equal(t, "ALREADY_LISTED", AsError(err).Code)

	pending := testutil.CreateUser(t, m.db, "pending@example.com", models.RoleSeller, false)
	_, err = listings.Inscribe(ctx, pending.ID, InscriptionInput{ProductID: m.product.ID, Price: decimal.NewFromInt(120)})
	assert.Equal(t, "SELLER_NOT_APPROVED", AsError(err).Code)
}

func TestUpdateListingOwnership(t *testing.T) {
	m := newMarket(t)
	listings := NewSellerProductService(m.store, nil)
	ctx := context.Background()

	desc := "Tenue 10 jours"
	view, err := listings.UpdateListing(ctx, m.seller.ID, m.listing.ID, ListingUpdate{
		Title: "Rouge intense", Price: decimal.NewFromInt(155), Description: &desc, Image: "/uploads/vendeur-produits/a.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "Rouge intense", view.Title)
	assert.Equal(t, desc, view.Description)
	assert.Equal(t, "/uploads/vendeur-produits/a.png", view.Image)

	other := testutil.CreateUser(t, m.db, "autre@example.com", models.RoleSeller, true)
	_, err = listings.UpdateListing(ctx, other.ID, m.listing.ID, ListingUpdate{Title: "x", Price: decimal.NewFromInt(200)})
	assert.Equal(t, KindForbidden, KindOf(err))

	public, err := listings.ApprovedListings(ctx)
	require.NoError(t, err)
	assert.Len(t, public, 1)

	_, err = NewModerationService(m.store, nil).BanSeller(ctx, m.seller.ID)
	require.NoError(t, err)
	public, err = listings.ApprovedListings(ctx)
	require.NoError(t, err)
	assert.Empty(t, public)
}
