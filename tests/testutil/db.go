package testutil

import (
	"testing"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/config"
	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database private to the test.
// A single connection serializes concurrent transactions the way row locks
// would on Postgres.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	RequireTestEnvironment(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := config.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// Price parses a decimal literal, panicking on garbage
func Price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// TestPassword is the clear-text password of every fixture user
const TestPassword = "password123"

var testPasswordHash string

func passwordHash(t *testing.T) string {
	t.Helper()
	if testPasswordHash == "" {
		h, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}
		testPasswordHash = string(h)
	}
	return testPasswordHash
}

// CreateUser inserts a user with the given role
func CreateUser(t *testing.T, db *gorm.DB, email string, role models.Role, approved bool) *models.User {
	t.Helper()
	u := &models.User{
		Name:         "User " + email,
		Email:        email,
		PasswordHash: passwordHash(t),
		Phone:        "0600000000",
		Role:         role,
		Approved:     approved,
	}
	if role == models.RoleBuyer {
		u.DeliveryAddress = "12 rue des Lilas, Rabat"
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return u
}

// CreateCategory inserts a category
func CreateCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}
	return c
}

// CreateProduct inserts a catalog product
func CreateProduct(t *testing.T, db *gorm.DB, name, price string, stock int, category *models.Category) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Description: name, Price: Price(price), Stock: stock}
	if category != nil {
		p.CategoryID = &category.ID
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	return p
}

// CreateListing inserts a seller-product
func CreateListing(t *testing.T, db *gorm.DB, seller *models.User, product *models.Product, price string, approved bool) *models.SellerProduct {
	t.Helper()
	sp := &models.SellerProduct{
		SellerID:  seller.ID,
		ProductID: product.ID,
		Price:     Price(price),
		Title:     product.Name + " by " + seller.Name,
		Approved:  approved,
	}
	if err := db.Create(sp).Error; err != nil {
		t.Fatalf("Failed to create seller product: %v", err)
	}
	return sp
}

// LineSpec describes one order line fixture
type LineSpec struct {
	Listing  *models.SellerProduct
	Quantity int
	Price    string
}

// CreateOrder inserts an order with its lines directly, bypassing stock checks
func CreateOrder(t *testing.T, db *gorm.DB, buyer *models.User, status models.OrderStatus, at time.Time, lines ...LineSpec) *models.Order {
	t.Helper()
	o := &models.Order{BuyerID: buyer.ID, OrderedAt: at.UTC(), Status: status, Total: decimal.Zero}
	for _, l := range lines {
		unit := Price(l.Price)
		sub := models.LineSubtotal(l.Quantity, unit)
		o.Lines = append(o.Lines, models.OrderLine{
			SellerProductID: l.Listing.ID,
			Quantity:        l.Quantity,
			UnitPrice:       unit,
			Subtotal:        sub,
		})
		o.Total = o.Total.Add(sub)
	}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	return o
}

// CreateReview inserts a review
func CreateReview(t *testing.T, db *gorm.DB, buyer *models.User, listing *models.SellerProduct, rating int, hidden bool) *models.Review {
	t.Helper()
	r := &models.Review{
		BuyerID:         buyer.ID,
		SellerProductID: listing.ID,
		Rating:          rating,
		Date:            time.Now().UTC(),
		Positive:        rating >= 3,
		Hidden:          hidden,
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("Failed to create review: %v", err)
	}
	return r
}
