package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/services"
	"github.com/kendall-kelly/gestion-ventes-api/utils"
)

// UploadController serves stored images. With a local directory the files
// are streamed from disk; otherwise the client is redirected to a short-lived
// object store URL.
type UploadController struct {
	images services.ImageStore
	dir    string
}

// NewUploadController creates an upload controller; dir is empty for remote stores
func NewUploadController(images services.ImageStore, dir string) *UploadController {
	return &UploadController{images: images, dir: dir}
}

// GetUploadedImage handles GET /uploads/:folder/:filename
func (ctl *UploadController) GetUploadedImage(c *gin.Context) {
	folder := c.Param("folder")
	filename := c.Param("filename")

	// Validate filename is not empty
	if filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Filename is required",
			},
		})
		return
	}

	// Security: Prevent directory traversal attacks
	if !utils.ValidFolder(folder) || strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_FILENAME",
				"message": "Invalid filename",
			},
		})
		return
	}

	contentType := utils.ContentType(filename)
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_FILE_TYPE",
				"message": "Only png, jpg, jpeg, gif and webp images are served",
			},
		})
		return
	}

	if ctl.dir == "" {
		url, err := ctl.images.URL(c.Request.Context(), utils.PublicPath(folder, filename))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	filePath := filepath.Join(ctl.dir, folder, filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_NOT_FOUND",
				"message": "Image not found",
			},
		})
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=86400") // Cache for 24 hours
	c.File(filePath)
}

// Upload handles POST /api/admin/uploads/:folder and returns the public path
// of the stored image, to be sent later in a JSON body
func (ctl *UploadController) Upload(c *gin.Context) {
	folder := c.Param("folder")
	if !utils.ValidFolder(folder) {
		respondValidation(c, "Dossier d'upload inconnu: "+folder, nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondValidation(c, "Le fichier est obligatoire (champ file)", err)
		return
	}

	path, err := ctl.images.Save(c.Request.Context(), folder, fileHeader)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, gin.H{"path": path})
}
