package controllers

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/services"
	"github.com/kendall-kelly/gestion-ventes-api/utils"
)

// CSVController handles /api/admin/csv
type CSVController struct {
	csv *services.CSVImportService
}

// NewCSVController creates a CSV import controller
func NewCSVController(csv *services.CSVImportService) *CSVController {
	return &CSVController{csv: csv}
}

// Import handles POST /api/admin/csv/import
func (ctl *CSVController) Import(c *gin.Context) {
	ctl.run(c, ctl.csv.Import)
}

// Validate handles POST /api/admin/csv/valider
func (ctl *CSVController) Validate(c *gin.Context) {
	ctl.run(c, ctl.csv.Validate)
}

// Sample handles GET /api/admin/csv/exemple
func (ctl *CSVController) Sample(c *gin.Context) {
	sample, err := ctl.csv.Sample(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="exemple_import.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(sample))
}

func (ctl *CSVController) run(c *gin.Context, process func(context.Context, io.Reader) (*services.ImportResult, error)) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondValidation(c, "Le fichier CSV est obligatoire (champ file)", err)
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_FILE_FORMAT",
				"message": "Le fichier doit être au format CSV",
			},
		})
		return
	}
	if fileHeader.Size > utils.MaxFileSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_TOO_LARGE",
				"message": "Le fichier CSV est trop volumineux",
			},
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondValidation(c, "Impossible de lire le fichier CSV", err)
		return
	}
	defer file.Close()

	result, err := process(c.Request.Context(), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
