package services

import (
	"context"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/shopspring/decimal"
)

// EarningLine is one of the seller's lines in an order with its margin over
// the catalog price
type EarningLine struct {
	ID           uint            `json:"id"`
	ProductName  string          `json:"produitNom"`
	ProductImage string          `json:"produitImage"`
	Quantity     int             `json:"quantite"`
	CatalogPrice decimal.Decimal `json:"prixOriginal"`
	SellerPrice  decimal.Decimal `json:"prixVendeur"`
	UnitMargin   decimal.Decimal `json:"margeUnitaire"`
	Subtotal     decimal.Decimal `json:"sousTotal"`
	LineMargin   decimal.Decimal `json:"margeLigne"`
}

// SellerOrder is an order seen from one seller: only their lines, their
// share of the amount and their margin
type SellerOrder struct {
	ID              uint               `json:"id"`
	BuyerName       string             `json:"clientNom"`
	BuyerEmail      string             `json:"clientEmail"`
	DeliveryAddress string             `json:"adresseLivraison"`
	Date            time.Time          `json:"dateCommande"`
	Status          models.OrderStatus `json:"statut"`
	Amount          decimal.Decimal    `json:"montantVendu"`
	Margin          decimal.Decimal    `json:"margeVendeur"`
	Total           decimal.Decimal    `json:"montantTotal"`
	Lines           []EarningLine      `json:"lignesCommande"`
	LineCount       int                `json:"nombreProduits"`
}

// Earnings lists a seller's orders with the status counters of the period.
// Only delivered orders count towards the earned margin.
type Earnings struct {
	Orders     []SellerOrder   `json:"commandes"`
	Total      int64           `json:"totalCommandes"`
	Earned     decimal.Decimal `json:"totalCA"`
	Items      int64           `json:"totalProduits"`
	Pending    int64           `json:"enAttente"`
	Confirmed  int64           `json:"confirmees"`
	InShipping int64           `json:"enLivraison"`
	Delivered  int64           `json:"livrees"`
	Cancelled  int64           `json:"annulees"`
}

// Earnings returns the orders containing the seller's listings, newest first.
// Counters cover every order of the period; status only narrows the list and
// is ignored when it is not a known status.
func (s *AnalyticsService) Earnings(ctx context.Context, sellerID uint, status string, from, to *time.Time) (*Earnings, error) {
	db := s.store.DB(ctx).
		Preload("Buyer").
		Preload("Lines.SellerProduct.Product").
		Where("id IN (?)", s.store.DB(ctx).
			Table("order_lines AS ol").
			Select("ol.order_id").
			Joins("JOIN seller_products sp ON sp.id = ol.seller_product_id").
			Where("sp.seller_id = ?", sellerID))
	if from != nil {
		db = db.Where("ordered_at >= ?", startOfDay(*from, s.loc))
	}
	if to != nil {
		db = db.Where("ordered_at < ?", startOfDay(*to, s.loc).AddDate(0, 0, 1))
	}

	var orders []models.Order
	if err := db.Order("ordered_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, Internal(err, "Erreur lors du chargement des commandes")
	}

	wanted, filtered := models.ParseOrderStatus(status)
	out := &Earnings{Orders: []SellerOrder{}, Earned: decimal.Zero}
	for i := range orders {
		so := sellerOrder(&orders[i], sellerID)
		if len(so.Lines) == 0 {
			continue
		}
		for _, l := range so.Lines {
			out.Items += int64(l.Quantity)
		}

		out.Total++
		switch so.Status {
		case models.StatusPending:
			out.Pending++
		case models.StatusConfirmed:
			out.Confirmed++
		case models.StatusInShipping:
			out.InShipping++
		case models.StatusDelivered:
			out.Delivered++
			out.Earned = out.Earned.Add(so.Margin)
		case models.StatusCancelled:
			out.Cancelled++
		}

		if filtered && so.Status != wanted {
			continue
		}
		out.Orders = append(out.Orders, so)
	}
	return out, nil
}

func sellerOrder(o *models.Order, sellerID uint) SellerOrder {
	so := SellerOrder{
		ID:              o.ID,
		BuyerName:       o.Buyer.Name,
		BuyerEmail:      o.Buyer.Email,
		DeliveryAddress: o.DeliveryAddress,
		Date:            o.OrderedAt,
		Status:          o.Status,
		Amount:          decimal.Zero,
		Margin:          decimal.Zero,
		Total:           o.Total,
		Lines:           []EarningLine{},
	}
	if so.DeliveryAddress == "" {
		so.DeliveryAddress = o.Buyer.DeliveryAddress
	}
	for _, l := range o.Lines {
		sp := l.SellerProduct
		if sp.SellerID != sellerID {
			continue
		}
		unit := l.UnitPrice.Sub(sp.Product.Price)
		margin := unit.Mul(decimal.NewFromInt(int64(l.Quantity)))
		so.Lines = append(so.Lines, EarningLine{
			ID:           l.ID,
			ProductName:  sp.DisplayTitle(),
			ProductImage: sp.DisplayImage(),
			Quantity:     l.Quantity,
			CatalogPrice: sp.Product.Price,
			SellerPrice:  l.UnitPrice,
			UnitMargin:   unit,
			Subtotal:     l.Subtotal,
			LineMargin:   margin,
		})
		so.Amount = so.Amount.Add(l.Subtotal)
		so.Margin = so.Margin.Add(margin)
	}
	so.LineCount = len(so.Lines)
	return so
}
