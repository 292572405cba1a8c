package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/services"
)

// IdempotencyHeader lets a client retry an order placement safely
const IdempotencyHeader = "Idempotency-Key"

// OrderController handles buyer orders and the admin order desk
type OrderController struct {
	orders *services.OrderService
}

// NewOrderController creates an order controller
func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// CreateOrderRequest represents the request body for placing an order
type CreateOrderRequest struct {
	DeliveryAddress string               `json:"adresseLivraison"`
	Phone           string               `json:"telephone"`
	Notes           string               `json:"notes"`
	Lines           []services.PlaceLine `json:"lignesCommande" binding:"required"`
}

// UpdateStatusRequest represents the body of an admin status change
type UpdateStatusRequest struct {
	Status string `json:"statut"`
}

// CreateOrder handles POST /api/client/commandes
func (ctl *OrderController) CreateOrder(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request data", err)
		return
	}

	order, err := ctl.orders.Place(c.Request.Context(), buyerID, services.PlaceOrderInput{
		DeliveryAddress: req.DeliveryAddress,
		Phone:           req.Phone,
		Notes:           req.Notes,
		Lines:           req.Lines,
		IdempotencyKey:  c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, order)
}

// ListMyOrders handles GET /api/client/commandes
func (ctl *OrderController) ListMyOrders(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	orders, err := ctl.orders.ListForBuyer(c.Request.Context(), buyerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, orders)
}

// GetMyOrder handles GET /api/client/commandes/:id
func (ctl *OrderController) GetMyOrder(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := ctl.orders.GetForBuyer(c.Request.Context(), buyerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// CancelMyOrder handles POST /api/client/commandes/:id/annuler
func (ctl *OrderController) CancelMyOrder(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := ctl.orders.Cancel(c.Request.Context(), buyerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Commande annulée avec succès",
		"data":    order,
	})
}

// HasOrders handles GET /api/client/has-orders
func (ctl *OrderController) HasOrders(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}
	has, err := ctl.orders.HasOrders(c.Request.Context(), buyerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"hasOrders": has})
}

// ListOrders handles GET /api/admin/commandes?vendeurId=&produitId=&statut=
func (ctl *OrderController) ListOrders(c *gin.Context) {
	sellerID, ok := queryUint(c, "vendeurId")
	if !ok {
		return
	}
	productID, ok := queryUint(c, "produitId")
	if !ok {
		return
	}

	filter := services.OrderFilter{Status: strings.TrimSpace(c.Query("statut"))}
	if sellerID != nil {
		filter.SellerID = *sellerID
	}
	if productID != nil {
		filter.ProductID = *productID
	}

	orders, err := ctl.orders.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, orders)
}

// GetOrder handles GET /api/admin/commandes/:id
func (ctl *OrderController) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := ctl.orders.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// UpdateStatus handles PUT /api/admin/commandes/:id/statut
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		respondValidation(c, "Le statut est obligatoire", err)
		return
	}

	order, err := ctl.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Statut de la commande mis à jour",
		"data":    order,
	})
}
