package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusConfirmed  OrderStatus = "CONFIRMED"
	StatusInShipping OrderStatus = "IN_SHIPPING"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:  {StatusInShipping: true, StatusCancelled: true},
	StatusInShipping: {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// Terminal statuses accept no further transition
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

var statusAliases = map[string]OrderStatus{
	"PENDING":            StatusPending,
	"EN_ATTENTE":         StatusPending,
	"CONFIRMED":          StatusConfirmed,
	"CONFIRMEE":          StatusConfirmed,
	"IN_SHIPPING":        StatusInShipping,
	"EN_COURS_LIVRAISON": StatusInShipping,
	"DELIVERED":          StatusDelivered,
	"LIVREE":             StatusDelivered,
	"CANCELLED":          StatusCancelled,
	"ANNULEE":            StatusCancelled,
}

// ParseOrderStatus accepts the canonical names and the French labels used by
// historical exports
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st, ok := statusAliases[strings.ToUpper(strings.TrimSpace(s))]
	return st, ok
}

// Order is a committed purchase. Buyer, date and total never change after creation.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	BuyerID         uint            `gorm:"not null;index;uniqueIndex:idx_order_buyer_idempotency" json:"clientId"`
	Buyer           User            `gorm:"foreignKey:BuyerID" json:"-"`
	IdempotencyKey  *string         `gorm:"size:128;uniqueIndex:idx_order_buyer_idempotency" json:"-"`
	OrderedAt       time.Time       `gorm:"not null;index" json:"dateCommande"`
	Status          OrderStatus     `gorm:"type:varchar(24);not null;index" json:"statut"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"montantTotal"`
	DeliveryAddress string          `json:"adresseLivraison,omitempty"`
	Phone           string          `json:"telephoneLivraison,omitempty"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
	Lines           []OrderLine     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lignes"`
	CreatedAt       time.Time       `json:"-"`
	UpdatedAt       time.Time       `json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderLine snapshots quantity and price of one listing at order time
type OrderLine struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderID         uint            `gorm:"not null;index" json:"commandeId"`
	SellerProductID uint            `gorm:"not null;index" json:"vendeurProduitId"`
	SellerProduct   SellerProduct   `gorm:"foreignKey:SellerProductID;constraint:OnDelete:RESTRICT" json:"-"`
	Quantity        int             `gorm:"not null;check:quantity > 0" json:"quantite"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"prixUnitaire"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"sousTotal"`
}

// TableName specifies the table name for the OrderLine model
func (OrderLine) TableName() string {
	return "order_lines"
}

// LineSubtotal is quantity × unit price rounded half up to cents
func LineSubtotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
