package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/services"
	"github.com/kendall-kelly/gestion-ventes-api/utils"
	"github.com/shopspring/decimal"
)

// CatalogController serves categories and products. Reads are public,
// writes are admin-only and accept multipart forms with an optional image.
type CatalogController struct {
	catalog *services.CatalogService
	images  services.ImageStore
}

// NewCatalogController creates a catalog controller
func NewCatalogController(catalog *services.CatalogService, images services.ImageStore) *CatalogController {
	return &CatalogController{catalog: catalog, images: images}
}

// ListCategories handles GET /api/categories
func (ctl *CatalogController) ListCategories(c *gin.Context) {
	categories, err := ctl.catalog.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, categories)
}

// GetCategory handles GET /api/categories/:id
func (ctl *CatalogController) GetCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	category, err := ctl.catalog.Category(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, category)
}

// CreateCategory handles POST /api/admin/categories
func (ctl *CatalogController) CreateCategory(c *gin.Context) {
	image, ok := ctl.saveImage(c, utils.FolderCategories)
	if !ok {
		return
	}

	category, err := ctl.catalog.CreateCategory(c.Request.Context(), services.CategoryInput{
		Name:  c.PostForm("nom"),
		Image: image,
	})
	if err != nil {
		ctl.discard(c, image)
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, category)
}

// UpdateCategory handles PUT /api/admin/categories/:id
func (ctl *CatalogController) UpdateCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	previous, err := ctl.catalog.Category(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	image, ok := ctl.saveImage(c, utils.FolderCategories)
	if !ok {
		return
	}

	category, err := ctl.catalog.UpdateCategory(c.Request.Context(), id, services.CategoryInput{
		Name:  c.PostForm("nom"),
		Image: image,
	})
	if err != nil {
		ctl.discard(c, image)
		respondError(c, err)
		return
	}
	if image != "" && previous.Image != image {
		ctl.discard(c, previous.Image)
	}
	respondData(c, http.StatusOK, category)
}

// DeleteCategory handles DELETE /api/admin/categories/:id
func (ctl *CatalogController) DeleteCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := ctl.catalog.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Catégorie supprimée avec succès")
}

// ListProducts handles GET /api/produits
func (ctl *CatalogController) ListProducts(c *gin.Context) {
	products, err := ctl.catalog.Products(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, products)
}

// GetProduct handles GET /api/produits/:id
func (ctl *CatalogController) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	product, err := ctl.catalog.Product(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, product)
}

// ProductsByCategory handles GET /api/produits/categorie/:id
func (ctl *CatalogController) ProductsByCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	products, err := ctl.catalog.ProductsByCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, products)
}

// SearchProducts handles GET /api/produits/search?nom=
func (ctl *CatalogController) SearchProducts(c *gin.Context) {
	products, err := ctl.catalog.SearchProducts(c.Request.Context(), c.Query("nom"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, products)
}

// CreateProduct handles POST /api/admin/produits
func (ctl *CatalogController) CreateProduct(c *gin.Context) {
	in, ok := productForm(c)
	if !ok {
		return
	}
	if in.Image, ok = ctl.saveImage(c, utils.FolderProducts); !ok {
		return
	}

	product, err := ctl.catalog.CreateProduct(c.Request.Context(), in)
	if err != nil {
		ctl.discard(c, in.Image)
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/admin/produits/:id
func (ctl *CatalogController) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, ok := productForm(c)
	if !ok {
		return
	}
	previous, err := ctl.catalog.Product(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if in.Image, ok = ctl.saveImage(c, utils.FolderProducts); !ok {
		return
	}

	product, err := ctl.catalog.UpdateProduct(c.Request.Context(), id, in)
	if err != nil {
		ctl.discard(c, in.Image)
		respondError(c, err)
		return
	}
	if in.Image != "" && previous.Image != in.Image {
		ctl.discard(c, previous.Image)
	}
	respondData(c, http.StatusOK, product)
}

// UpdateStock handles PUT /api/admin/produits/:id/stock?quantite=
func (ctl *CatalogController) UpdateStock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(c.Query("quantite")))
	if err != nil {
		respondValidation(c, "Le paramètre quantite est obligatoire", err)
		return
	}

	product, err := ctl.catalog.SetStock(c.Request.Context(), id, quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Stock mis à jour avec succès",
		"data":    product,
	})
}

// DeleteProduct handles DELETE /api/admin/produits/:id
func (ctl *CatalogController) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := ctl.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Produit supprimé avec succès")
}

// productForm reads the product fields of a multipart or urlencoded form
func productForm(c *gin.Context) (services.ProductInput, bool) {
	in := services.ProductInput{
		Name:        c.PostForm("nom"),
		Description: c.PostForm("description"),
	}

	price, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("prix")))
	if err != nil {
		respondValidation(c, "Le prix est obligatoire et doit être numérique", err)
		return in, false
	}
	in.Price = price

	quantity, err := strconv.Atoi(strings.TrimSpace(c.PostForm("quantite")))
	if err != nil {
		respondValidation(c, "La quantité est obligatoire et doit être entière", err)
		return in, false
	}
	in.Stock = quantity

	if raw := strings.TrimSpace(c.PostForm("categorieId")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondValidation(c, "categorieId invalide", err)
			return in, false
		}
		categoryID := uint(v)
		in.CategoryID = &categoryID
	}
	return in, true
}

// saveImage stores the optional "image" file of the form. An absent file
// yields an empty path.
func (ctl *CatalogController) saveImage(c *gin.Context, folder string) (string, bool) {
	return saveFormImage(c, ctl.images, folder)
}

func (ctl *CatalogController) discard(c *gin.Context, path string) {
	discardImage(c, ctl.images, path)
}

func saveFormImage(c *gin.Context, images services.ImageStore, folder string) (string, bool) {
	fileHeader, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", true
	}
	if err != nil {
		respondValidation(c, "Impossible de lire l'image envoyée", err)
		return "", false
	}

	path, err := images.Save(c.Request.Context(), folder, fileHeader)
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return path, true
}

func discardImage(c *gin.Context, images services.ImageStore, path string) {
	if path == "" {
		return
	}
	if err := images.Delete(c.Request.Context(), path); err != nil {
		log.Printf("Failed to delete image %s: %v", path, err)
	}
}
