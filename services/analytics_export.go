package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tealeg/xlsx"
)

// Export formats
const (
	ExportJSON  = "JSON"
	ExportExcel = "EXCEL"
)

// ExportData bundles the figures of a report
type ExportData struct {
	ExportedAt time.Time       `json:"dateExport"`
	Type       string          `json:"typeExport"`
	Role       string          `json:"roleUtilisateur"`
	UserID     *uint           `json:"utilisateurId,omitempty"`
	Filters    Filter          `json:"filtresAppliques"`
	KPIs       *KPIs           `json:"kpis"`
	Products   []ProductStats  `json:"produits"`
	Categories []CategoryStats `json:"categories"`
	Summary    string          `json:"resumeAnalytique"`
}

// Export gathers KPIs, products and categories of a scope with a plain text
// summary. sellerID 0 exports the platform.
func (s *AnalyticsService) Export(ctx context.Context, sellerID uint, f Filter, format string) (*ExportData, error) {
	kpis, err := s.KPIs(ctx, sellerID, f)
	if err != nil {
		return nil, err
	}
	products, err := s.Products(ctx, sellerID, f)
	if err != nil {
		return nil, err
	}
	categories, err := s.Categories(ctx, sellerID, f)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	data := &ExportData{
		ExportedAt: now,
		Type:       ExportJSON,
		Role:       "ADMIN",
		Filters:    f,
		KPIs:       kpis,
		Products:   products.All,
		Categories: categories.Categories,
		Summary:    summary(now, kpis),
	}
	if strings.EqualFold(format, "xlsx") || strings.EqualFold(format, ExportExcel) {
		data.Type = ExportExcel
	}
	if sellerID != 0 {
		data.Role = "VENDEUR"
		data.UserID = &sellerID
	}
	return data, nil
}

func summary(at time.Time, k *KPIs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rapport analytique généré le %s\n\n", at.Format("2006-01-02 15:04:05"))
	b.WriteString("RÉSUMÉ DES PERFORMANCES\n")
	b.WriteString("=======================\n")
	fmt.Fprintf(&b, "Chiffre d'affaires total: %s DH\n", k.Revenue.StringFixed(2))
	fmt.Fprintf(&b, "Nombre de ventes: %d\n", k.Orders)
	fmt.Fprintf(&b, "Produits vendus: %d\n", k.Items)
	if k.MeanRating != nil {
		fmt.Fprintf(&b, "Note moyenne: %.2f/5\n", *k.MeanRating)
	} else {
		b.WriteString("Note moyenne: N/A/5\n")
	}
	sign := ""
	if k.Growth >= 0 {
		sign = "+"
	}
	fmt.Fprintf(&b, "Croissance: %s%.1f%%\n", sign, k.Growth)
	return b.String()
}

// WriteXLSX renders an export as a workbook with one sheet per section
func WriteXLSX(w io.Writer, data *ExportData) error {
	file := xlsx.NewFile()

	kpiSheet, err := file.AddSheet("KPIs")
	if err != nil {
		return err
	}
	addRow(kpiSheet, "Indicateur", "Valeur")
	k := data.KPIs
	addRow(kpiSheet, "Chiffre d'affaires", k.Revenue.StringFixed(2))
	addRow(kpiSheet, "Nombre de ventes", k.Orders)
	addRow(kpiSheet, "Produits vendus", k.Items)
	addRow(kpiSheet, "Panier moyen", k.MeanOrderValue.StringFixed(2))
	addRow(kpiSheet, "Croissance (%)", k.Growth)
	addRow(kpiSheet, "Nombre d'avis", k.Reviews)
	addRow(kpiSheet, "Note moyenne", optionalRating(k.MeanRating))
	addRow(kpiSheet, "Commandes en attente", k.Pending)
	addRow(kpiSheet, "Commandes confirmées", k.Confirmed)
	addRow(kpiSheet, "Commandes en livraison", k.InShipping)
	addRow(kpiSheet, "Commandes livrées", k.Delivered)
	addRow(kpiSheet, "Commandes annulées", k.Cancelled)

	productSheet, err := file.AddSheet("Produits")
	if err != nil {
		return err
	}
	addRow(productSheet, "ID", "Produit", "Catégorie", "Vendeur", "Prix vendeur", "Ventes", "CA", "Note", "Avis", "Stock", "Statut")
	for _, p := range data.Products {
		addRow(productSheet, p.SellerProductID, p.Title, p.CategoryName, p.SellerName, p.SellerPrice.StringFixed(2),
			p.Sales, p.Revenue.StringFixed(2), optionalRating(p.Rating), p.Reviews, p.Stock, p.Trend)
	}

	categorySheet, err := file.AddSheet("Categories")
	if err != nil {
		return err
	}
	addRow(categorySheet, "ID", "Catégorie", "CA", "Ventes", "Produits", "Prix moyen", "Note", "% CA", "% Ventes", "Performance")
	for _, c := range data.Categories {
		addRow(categorySheet, c.CategoryID, c.Name, c.Revenue.StringFixed(2), c.Sales, c.Products,
			c.MeanPrice.StringFixed(2), optionalRating(c.Rating), c.RevenueShare, c.SalesShare, c.Performance)
	}

	return file.Write(w)
}

func addRow(sheet *xlsx.Sheet, values ...interface{}) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetValue(v)
	}
}

func optionalRating(r *float64) interface{} {
	if r == nil {
		return "N/A"
	}
	return *r
}
