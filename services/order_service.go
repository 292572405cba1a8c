package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlaceLine is one requested line of a new order
type PlaceLine struct {
	SellerProductID uint `json:"vendeurProduitId"`
	Quantity        int  `json:"quantite"`
}

// PlaceOrderInput is the buyer's order request. Empty overrides keep the
// buyer's stored address and phone.
type PlaceOrderInput struct {
	DeliveryAddress string
	Phone           string
	Notes           string
	Lines           []PlaceLine
	IdempotencyKey  string
}

// OrderLineView is an order line with its listing
type OrderLineView struct {
	ID              uint            `json:"id"`
	SellerProductID uint            `json:"vendeurProduitId"`
	SellerProduct   ListingView     `json:"vendeurProduit"`
	Quantity        int             `json:"quantite"`
	UnitPrice       decimal.Decimal `json:"prixUnitaire"`
	Subtotal        decimal.Decimal `json:"sousTotal"`
}

// OrderView is the wire form of an order
type OrderView struct {
	ID              uint               `json:"id"`
	BuyerID         uint               `json:"clientId"`
	BuyerName       string             `json:"clientNom"`
	OrderedAt       time.Time          `json:"dateCommande"`
	Status          models.OrderStatus `json:"statut"`
	Total           decimal.Decimal    `json:"montantTotal"`
	DeliveryAddress string             `json:"adresseLivraison"`
	Phone           string             `json:"telephone,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	Lines           []OrderLineView    `json:"lignesCommande"`
}

// OrderFilter narrows the admin order list; zero values disable a criterion
type OrderFilter struct {
	SellerID  uint
	ProductID uint
	Status    string
}

// OrderService places, cancels and advances orders. Product rows are locked
// for the whole placement so concurrent orders never oversell.
type OrderService struct {
	store       *repository.Store
	events      EventPublisher
	idempotency IdempotencyStore
	now         func() time.Time
}

// NewOrderService creates an order service. events and idempotency may be nil.
func NewOrderService(store *repository.Store, events EventPublisher, idempotency IdempotencyStore) *OrderService {
	if events == nil {
		events = NopPublisher{}
	}
	return &OrderService{store: store, events: events, idempotency: idempotency, now: time.Now}
}

// Place validates the requested lines against live stock, reserves the
// units and records the order, all in one transaction
func (s *OrderService) Place(ctx context.Context, buyerID uint, in PlaceOrderInput) (*OrderView, error) {
	if len(in.Lines) == 0 {
		return nil, NewValidation("Le panier est vide")
	}
	for _, l := range in.Lines {
		if l.SellerProductID == 0 {
			return nil, NewValidation("vendeurProduitId est obligatoire")
		}
		if l.Quantity <= 0 {
			return nil, NewValidation("La quantité doit être supérieure à 0")
		}
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKey {
		return nil, NewValidation("%s ne doit pas dépasser %d caractères", "Idempotency-Key", maxIdempotencyKey)
	}
	if key != "" {
		if existing, err := s.replay(ctx, buyerID, key); existing != nil || err != nil {
			return existing, err
		}
	}

	var order models.Order
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		startedAt := s.now().UTC()

		var buyer models.User
		err := tx.Where("id = ? AND role = ?", buyerID, models.RoleBuyer).First(&buyer).Error
		if repository.IsNotFound(err) {
			return NewNotFound("Client non trouvé. Veuillez vous reconnecter.")
		}
		if err != nil {
			return err
		}

		if addr := strings.TrimSpace(in.DeliveryAddress); addr != "" && addr != buyer.DeliveryAddress {
			if err := tx.Model(&buyer).Update("delivery_address", addr).Error; err != nil {
				return err
			}
			buyer.DeliveryAddress = addr
		}

		listings := make([]*models.SellerProduct, len(in.Lines))
		demand := map[uint]int{}
		for i, l := range in.Lines {
			sp, err := repository.LoadSellerProduct(tx, l.SellerProductID)
			if repository.IsNotFound(err) {
				return NewNotFound("Produit vendeur non trouvé: %d", l.SellerProductID)
			}
			if err != nil {
				return err
			}
			if !sp.Vendible() {
				return NewConflict("NOT_FOR_SALE", "Le produit '%s' n'est pas disponible à la vente", sp.DisplayTitle())
			}
			listings[i] = sp
			demand[sp.ProductID] += l.Quantity
		}

		// Lock in id order so two orders touching the same products cannot deadlock.
		productIDs := make([]uint, 0, len(demand))
		for id := range demand {
			productIDs = append(productIDs, id)
		}
		sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })
		stock := make(map[uint]int, len(productIDs))
		for _, id := range productIDs {
			p, err := repository.LockProduct(tx, id)
			if err != nil {
				return err
			}
			stock[id] = p.Stock
		}
		for i := range in.Lines {
			sp := listings[i]
			if available, wanted := stock[sp.ProductID], demand[sp.ProductID]; available < wanted {
				return NewConflict("INSUFFICIENT_STOCK",
					"Stock insuffisant pour le produit '%s'. Stock disponible: %d, demandé: %d",
					sp.DisplayTitle(), available, wanted)
			}
		}

		order = models.Order{
			BuyerID:         buyer.ID,
			IdempotencyKey:  optional(key),
			OrderedAt:       startedAt,
			Status:          models.StatusPending,
			Total:           decimal.Zero,
			DeliveryAddress: buyer.DeliveryAddress,
			Phone:           buyer.Phone,
			Notes:           strings.TrimSpace(in.Notes),
		}
		if phone := strings.TrimSpace(in.Phone); phone != "" {
			order.Phone = phone
		}
		for i, l := range in.Lines {
			sp := listings[i]
			if err := repository.AdjustStock(tx, sp.ProductID, -l.Quantity, startedAt); err != nil {
				return err
			}
			sub := models.LineSubtotal(l.Quantity, sp.Price)
			order.Lines = append(order.Lines, models.OrderLine{
				SellerProductID: sp.ID,
				Quantity:        l.Quantity,
				UnitPrice:       sp.Price,
				Subtotal:        sub,
			})
			order.Total = order.Total.Add(sub)
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if err := repository.ClearCart(tx, buyer.ID, startedAt); err != nil {
			return err
		}
		return loadOrder(tx, order.ID, &order)
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, NewConflict("INSUFFICIENT_STOCK", "Stock insuffisant")
		}
		// a concurrent request with the same key won the unique index
		if key != "" && repository.IsUniqueViolation(err) {
			if existing, lookupErr := s.replay(ctx, buyerID, key); existing != nil || lookupErr != nil {
				return existing, lookupErr
			}
		}
		return nil, wrapInternal(err, "Erreur lors de la création de la commande")
	}

	log.Printf("[orders] order %d placed by buyer %d, total %s", order.ID, buyerID, order.Total.StringFixed(2))
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.Remember(ctx, buyerID, key, order.ID); err != nil {
			log.Printf("[orders] failed to store idempotency key for order %d: %v", order.ID, err)
		}
	}
	s.publish(ctx, EventOrderPlaced, &order, "")
	return toOrderView(&order), nil
}

const maxIdempotencyKey = 128

// replay returns the order an earlier request with the same key produced, or
// nil when there is none. Redis is consulted first; the orders table is the
// authority.
func (s *OrderService) replay(ctx context.Context, buyerID uint, key string) (*OrderView, error) {
	if s.idempotency != nil {
		if orderID, ok, err := s.idempotency.Lookup(ctx, buyerID, key); err != nil {
			log.Printf("[orders] idempotency lookup failed for buyer %d: %v", buyerID, err)
		} else if ok {
			return s.GetForBuyer(ctx, buyerID, orderID)
		}
	}

	var ids []uint
	err := s.store.DB(ctx).Model(&models.Order{}).
		Where("buyer_id = ? AND idempotency_key = ?", buyerID, key).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, Internal(err, "Erreur lors de la création de la commande")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.GetForBuyer(ctx, buyerID, ids[0])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Cancel lets a buyer cancel one of their pending orders; stock is restored
// in the same transaction
func (s *OrderService) Cancel(ctx context.Context, buyerID, orderID uint) (*OrderView, error) {
	var order models.Order
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return NewForbidden("Vous n'êtes pas autorisé à annuler cette commande")
		}
		if order.Status != models.StatusPending {
			return NewConflict("INVALID_STATUS_TRANSITION",
				"Impossible d'annuler cette commande. Seules les commandes en attente peuvent être annulées.")
		}
		if err := s.restoreStock(tx, &order); err != nil {
			return err
		}
		if err := tx.Model(&order).Update("status", models.StatusCancelled).Error; err != nil {
			return err
		}
		return loadOrder(tx, order.ID, &order)
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de l'annulation de la commande")
	}

	log.Printf("[orders] order %d cancelled by buyer %d, stock restored", order.ID, buyerID)
	s.publish(ctx, EventOrderCancelled, &order, string(models.StatusPending))
	return toOrderView(&order), nil
}

// UpdateStatus applies an administrator transition. Moving to CANCELLED
// restores stock like a buyer cancellation.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, status string) (*OrderView, error) {
	next, ok := models.ParseOrderStatus(status)
	if !ok {
		return nil, NewValidation("Statut invalide: %s", status)
	}

	var order models.Order
	var previous models.OrderStatus
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		previous = order.Status
		if order.Status == models.StatusDelivered {
			return NewConflict("INVALID_STATUS_TRANSITION", "Une commande livrée ne peut plus changer de statut")
		}
		if !models.CanTransition(order.Status, next) {
			return NewConflict("INVALID_STATUS_TRANSITION", "Transition de statut non autorisée: %s -> %s", order.Status, next)
		}
		if next == models.StatusCancelled {
			if err := s.restoreStock(tx, &order); err != nil {
				return err
			}
		}
		if err := tx.Model(&order).Update("status", next).Error; err != nil {
			return err
		}
		return loadOrder(tx, order.ID, &order)
	})
	if err != nil {
		return nil, wrapInternal(err, "Erreur lors de la mise à jour du statut")
	}

	log.Printf("[orders] order %d moved %s -> %s", order.ID, previous, next)
	eventType := EventOrderStatusChanged
	if next == models.StatusCancelled {
		eventType = EventOrderCancelled
	}
	s.publish(ctx, eventType, &order, string(previous))
	return toOrderView(&order), nil
}

func (s *OrderService) restoreStock(tx *gorm.DB, order *models.Order) error {
	at := s.now().UTC()
	restock := map[uint]int{}
	for _, l := range order.Lines {
		restock[l.SellerProduct.ProductID] += l.Quantity
	}
	ids := make([]uint, 0, len(restock))
	for id := range restock {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, err := repository.LockProduct(tx, id); err != nil {
			return err
		}
		if err := repository.AdjustStock(tx, id, restock[id], at); err != nil {
			return err
		}
	}
	return nil
}

// ListForBuyer returns the buyer's orders, newest first
func (s *OrderService) ListForBuyer(ctx context.Context, buyerID uint) ([]OrderView, error) {
	var orders []models.Order
	err := orderPreloads(s.store.DB(ctx)).
		Where("buyer_id = ?", buyerID).
		Order("ordered_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, Internal(err, "Erreur lors du chargement des commandes")
	}
	return toOrderViews(orders), nil
}

// GetForBuyer returns one order if it belongs to the buyer
func (s *OrderService) GetForBuyer(ctx context.Context, buyerID, orderID uint) (*OrderView, error) {
	var order models.Order
	if err := loadOrder(s.store.DB(ctx), orderID, &order); err != nil {
		return nil, wrapInternal(err, "Erreur lors du chargement de la commande")
	}
	if order.BuyerID != buyerID {
		return nil, NewForbidden("Accès non autorisé à cette commande")
	}
	return toOrderView(&order), nil
}

// HasOrders reports whether the buyer placed at least one order
func (s *OrderService) HasOrders(ctx context.Context, buyerID uint) (bool, error) {
	var count int64
	if err := s.store.DB(ctx).Model(&models.Order{}).Where("buyer_id = ?", buyerID).Count(&count).Error; err != nil {
		return false, Internal(err, "Erreur lors du comptage des commandes")
	}
	return count > 0, nil
}

// List returns all orders matching the admin filter, newest first. An
// unknown status filter is ignored.
func (s *OrderService) List(ctx context.Context, f OrderFilter) ([]OrderView, error) {
	db := s.store.DB(ctx)
	q := orderPreloads(db)
	if st, ok := models.ParseOrderStatus(f.Status); ok {
		q = q.Where("status = ?", st)
	}
	if f.SellerID != 0 || f.ProductID != 0 {
		sub := db.Table("order_lines AS ol").
			Select("ol.order_id").
			Joins("JOIN seller_products sp ON sp.id = ol.seller_product_id")
		if f.SellerID != 0 {
			sub = sub.Where("sp.seller_id = ?", f.SellerID)
		}
		if f.ProductID != 0 {
			sub = sub.Where("sp.product_id = ?", f.ProductID)
		}
		q = q.Where("id IN (?)", sub)
	}

	var orders []models.Order
	if err := q.Order("ordered_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, Internal(err, "Erreur lors du chargement des commandes")
	}
	return toOrderViews(orders), nil
}

// Get returns any order by id
func (s *OrderService) Get(ctx context.Context, orderID uint) (*OrderView, error) {
	var order models.Order
	if err := loadOrder(s.store.DB(ctx), orderID, &order); err != nil {
		return nil, wrapInternal(err, "Erreur lors du chargement de la commande")
	}
	return toOrderView(&order), nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order, previous string) {
	if err := s.events.Publish(ctx, eventType, orderKey(order.ID), newOrderEventPayload(order, previous)); err != nil {
		log.Printf("[events] failed to publish %s for order %d: %v", eventType, order.ID, err)
	}
}

func orderPreloads(db *gorm.DB) *gorm.DB {
	return db.Preload("Buyer").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.SellerProduct.Seller").
		Preload("Lines.SellerProduct.Product.Category")
}

func loadOrder(db *gorm.DB, id uint, out *models.Order) error {
	*out = models.Order{}
	err := orderPreloads(db).First(out, id).Error
	if repository.IsNotFound(err) {
		return NewNotFound("Commande non trouvée")
	}
	return err
}

func lockOrder(tx *gorm.DB, id uint, out *models.Order) error {
	err := repository.ForUpdate(tx).
		Preload("Lines").
		Preload("Lines.SellerProduct").
		First(out, id).Error
	if repository.IsNotFound(err) {
		return NewNotFound("Commande non trouvée")
	}
	return err
}

func toOrderViews(orders []models.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for i := range orders {
		out = append(out, *toOrderView(&orders[i]))
	}
	return out
}

func toOrderView(o *models.Order) *OrderView {
	v := &OrderView{
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		BuyerName:       o.Buyer.Name,
		OrderedAt:       o.OrderedAt,
		Status:          o.Status,
		Total:           o.Total,
		DeliveryAddress: o.DeliveryAddress,
		Phone:           o.Phone,
		Notes:           o.Notes,
		Lines:           make([]OrderLineView, 0, len(o.Lines)),
	}
	if v.DeliveryAddress == "" {
		v.DeliveryAddress = o.Buyer.DeliveryAddress
	}
	for _, l := range o.Lines {
		v.Lines = append(v.Lines, OrderLineView{
			ID:              l.ID,
			SellerProductID: l.SellerProductID,
			SellerProduct:   toListingView(&l.SellerProduct),
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			Subtotal:        l.Subtotal,
		})
	}
	return v
}
