package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CSVHeader is the expected header of an order import file
const CSVHeader = "order_ref,buyer_id,order_date,status,seller_product_id,quantity,unit_price"

const csvColumns = 7

var csvDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
	"02/01/2006",
}

// ImportedOrder describes one order written by an import
type ImportedOrder struct {
	OrderID    uint   `json:"commandeId"`
	Ref        string `json:"reference"`
	BuyerID    uint   `json:"clientId"`
	BuyerEmail string `json:"clientEmail"`
	Lines      int    `json:"nbLignes"`
	Total      string `json:"montantTotal"`
	Status     string `json:"statut"`
}

// ImportResult reports an import or a validation run. In validation mode
// Orders counts the orders that would be written.
type ImportResult struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	TotalRows  int             `json:"totalLignes"`
	Orders     int             `json:"commandesImportees"`
	Lines      int             `json:"lignesCommandeImportees"`
	Duplicates int             `json:"doublonsIgnores"`
	Corrected  int             `json:"erreursCorrigees"`
	Errors     []string        `json:"erreurs"`
	Warnings   []string        `json:"avertissements"`
	Details    []ImportedOrder `json:"commandesDetails"`
}

func newImportResult() *ImportResult {
	return &ImportResult{Errors: []string{}, Warnings: []string{}, Details: []ImportedOrder{}}
}

func (r *ImportResult) errorf(line int, format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf("Ligne %d: ", line)+fmt.Sprintf(format, args...))
}

func (r *ImportResult) warnf(line int, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf("Ligne %d: ", line)+fmt.Sprintf(format, args...))
}

// csvRecord is a raw data row with its line number in the file
type csvRecord struct {
	line int
	cols []string
}

// csvRow is a validated data row
type csvRow struct {
	line            int
	buyerID         uint
	orderedAt       time.Time
	status          models.OrderStatus
	sellerProductID uint
	quantity        int
	unitPrice       decimal.Decimal
}

// csvGroup is the rows sharing one order reference, in file order
type csvGroup struct {
	ref  string
	rows []csvRow
}

// CSVImportService loads historical orders from CSV files
type CSVImportService struct {
	store *repository.Store
	loc   *time.Location
	now   func() time.Time
}

// NewCSVImportService creates an import service; dates without a zone are
// read in loc
func NewCSVImportService(store *repository.Store, loc *time.Location) *CSVImportService {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVImportService{store: store, loc: loc, now: time.Now}
}

// Import writes every valid order group of the file, one transaction per
// group. Imported orders do not touch product stock.
func (s *CSVImportService) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	res := newImportResult()
	groups, err := s.parse(ctx, r, res)
	if err != nil {
		return nil, err
	}
	if res.TotalRows == 0 {
		res.Message = "Le fichier CSV est vide"
		return res, nil
	}
	if len(groups) == 0 {
		res.Message = "Aucune commande valide à importer"
		return res, nil
	}

	for _, g := range groups {
		detail, err := s.writeGroup(ctx, g)
		if err != nil {
			log.Printf("[csv] order %q not imported: %v", g.ref, err)
			res.Errors = append(res.Errors, fmt.Sprintf("Erreur lors de l'insertion de la commande '%s': %v", g.ref, err))
			continue
		}
		res.Orders++
		res.Lines += detail.Lines
		res.Details = append(res.Details, *detail)
	}

	res.Success = res.Orders > 0
	res.Message = fmt.Sprintf("Import terminé: %d commande(s) et %d ligne(s) importée(s)", res.Orders, res.Lines)
	log.Printf("[csv] imported %d orders, %d lines, %d duplicates, %d errors",
		res.Orders, res.Lines, res.Duplicates, len(res.Errors))
	return res, nil
}

// Validate runs every check of Import without writing anything
func (s *CSVImportService) Validate(ctx context.Context, r io.Reader) (*ImportResult, error) {
	res := newImportResult()
	groups, err := s.parse(ctx, r, res)
	if err != nil {
		return nil, err
	}
	if res.TotalRows == 0 {
		res.Message = "Le fichier CSV est vide"
		return res, nil
	}
	res.Orders = len(groups)
	for _, g := range groups {
		res.Lines += len(g.rows)
	}
	res.Success = len(res.Errors) == 0
	if res.Success {
		res.Message = fmt.Sprintf("Fichier valide: %d commande(s) prêtes à importer", res.Orders)
	} else {
		res.Message = "Fichier contient des erreurs"
	}
	return res, nil
}

func (s *CSVImportService) writeGroup(ctx context.Context, g csvGroup) (*ImportedOrder, error) {
	first := g.rows[0]
	order := models.Order{
		BuyerID:   first.buyerID,
		OrderedAt: first.orderedAt,
		Status:    first.status,
		Total:     decimal.Zero,
	}
	for _, row := range g.rows {
		sub := models.LineSubtotal(row.quantity, row.unitPrice)
		order.Lines = append(order.Lines, models.OrderLine{
			SellerProductID: row.sellerProductID,
			Quantity:        row.quantity,
			UnitPrice:       row.unitPrice.Round(2),
			Subtotal:        sub,
		})
		order.Total = order.Total.Add(sub)
	}

	var buyer models.User
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&buyer, first.buyerID).Error; err != nil {
			return err
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}
	return &ImportedOrder{
		OrderID:    order.ID,
		Ref:        g.ref,
		BuyerID:    buyer.ID,
		BuyerEmail: buyer.Email,
		Lines:      len(order.Lines),
		Total:      order.Total.StringFixed(2) + " DH",
		Status:     string(order.Status),
	}, nil
}

// parse reads the file, drops duplicates and invalid rows into res and groups
// the remaining rows by order reference in order of first appearance
func (s *CSVImportService) parse(ctx context.Context, r io.Reader, res *ImportResult) ([]csvGroup, error) {
	records, err := readCSV(r)
	if errors.Is(err, errCSVHeader) {
		return nil, NewValidation("En-tête CSV invalide (attendu: %s)", CSVHeader)
	}
	if err != nil {
		return nil, NewValidation("Erreur lors de la lecture du fichier: %v", err)
	}
	res.TotalRows = len(records)

	buyers, listings, err := s.knownIDs(ctx, records)
	if err != nil {
		return nil, Internal(err, "Erreur lors de la validation du fichier")
	}

	seen := map[string]bool{}
	index := map[string]int{}
	var groups []csvGroup
	for _, rec := range records {
		line, cols := rec.line, rec.cols
		if len(cols) < csvColumns {
			res.errorf(line, "Nombre de colonnes insuffisant (attendu: %d, reçu: %d)", csvColumns, len(cols))
			continue
		}
		for j := range cols {
			cols[j] = strings.TrimSpace(cols[j])
		}
		ref := cols[0]

		key := ref + "|" + cols[4] + "|" + cols[5]
		if seen[key] {
			res.Duplicates++
			res.warnf(line, "Doublon ignoré (commande=%s, produit=%s)", ref, cols[4])
			continue
		}
		seen[key] = true

		row, ok := s.validateRow(line, cols, buyers, listings, res)
		if !ok {
			continue
		}
		gi, ok := index[ref]
		if !ok {
			gi = len(groups)
			index[ref] = gi
			groups = append(groups, csvGroup{ref: ref})
		}
		groups[gi].rows = append(groups[gi].rows, row)
	}
	return groups, nil
}

func (s *CSVImportService) validateRow(line int, cols []string, buyers, listings map[uint]bool, res *ImportResult) (csvRow, bool) {
	row := csvRow{line: line}

	buyerID, err := strconv.ParseUint(cols[1], 10, 64)
	if err != nil {
		res.errorf(line, "buyer_id invalide '%s'", cols[1])
		return row, false
	}
	if !buyers[uint(buyerID)] {
		res.errorf(line, "Client avec ID %d n'existe pas", buyerID)
		return row, false
	}
	row.buyerID = uint(buyerID)

	if t, ok := s.parseDate(cols[2]); ok {
		row.orderedAt = t
	} else {
		row.orderedAt = s.now()
		res.Corrected++
		res.warnf(line, "Date invalide, utilisation de la date actuelle")
	}

	if st, ok := models.ParseOrderStatus(cols[3]); ok {
		row.status = st
	} else {
		row.status = models.StatusPending
		res.Corrected++
		res.warnf(line, "Statut invalide '%s', utilisation de PENDING", cols[3])
	}

	spID, err := strconv.ParseUint(cols[4], 10, 64)
	if err != nil {
		res.errorf(line, "seller_product_id invalide '%s'", cols[4])
		return row, false
	}
	if !listings[uint(spID)] {
		res.errorf(line, "Produit vendeur avec ID %d n'existe pas", spID)
		return row, false
	}
	row.sellerProductID = uint(spID)

	qty, err := strconv.Atoi(cols[5])
	if err != nil {
		res.errorf(line, "quantity invalide '%s'", cols[5])
		return row, false
	}
	if qty <= 0 {
		res.errorf(line, "Quantité doit être positive")
		return row, false
	}
	row.quantity = qty

	price, err := decimal.NewFromString(strings.ReplaceAll(cols[6], ",", "."))
	if err != nil {
		res.errorf(line, "unit_price invalide '%s'", cols[6])
		return row, false
	}
	if !price.IsPositive() {
		res.errorf(line, "Prix unitaire doit être positif")
		return row, false
	}
	row.unitPrice = price
	return row, true
}

func (s *CSVImportService) parseDate(v string) (time.Time, bool) {
	for _, layout := range csvDateLayouts {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// knownIDs loads which buyer and listing ids referenced by the file exist
func (s *CSVImportService) knownIDs(ctx context.Context, records []csvRecord) (map[uint]bool, map[uint]bool, error) {
	var buyerIDs, spIDs []uint
	for _, rec := range records {
		cols := rec.cols
		if len(cols) < csvColumns {
			continue
		}
		if id, err := strconv.ParseUint(strings.TrimSpace(cols[1]), 10, 64); err == nil {
			buyerIDs = append(buyerIDs, uint(id))
		}
		if id, err := strconv.ParseUint(strings.TrimSpace(cols[4]), 10, 64); err == nil {
			spIDs = append(spIDs, uint(id))
		}
	}

	db := s.store.DB(ctx)
	buyers, listings := map[uint]bool{}, map[uint]bool{}
	if len(buyerIDs) > 0 {
		var found []uint
		err := db.Model(&models.User{}).
			Where("id IN ? AND role = ?", buyerIDs, models.RoleBuyer).
			Pluck("id", &found).Error
		if err != nil {
			return nil, nil, err
		}
		for _, id := range found {
			buyers[id] = true
		}
	}
	if len(spIDs) > 0 {
		var found []uint
		if err := db.Model(&models.SellerProduct{}).Where("id IN ?", spIDs).Pluck("id", &found).Error; err != nil {
			return nil, nil, err
		}
		for _, id := range found {
			listings[id] = true
		}
	}
	return buyers, listings, nil
}

var errCSVHeader = errors.New("unexpected csv header")

// readCSV returns the data records of a UTF-8 file with a header row. The
// delimiter is a semicolon when the header holds one, a comma otherwise.
// Records keep their physical line number, blank lines included.
func readCSV(r io.Reader) ([]csvRecord, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	header = strings.TrimPrefix(header, "\ufeff")
	if strings.TrimSpace(header) == "" {
		return nil, nil
	}

	comma := ','
	if strings.Contains(header, ";") {
		comma = ';'
	}
	if !validHeader(header, comma) {
		return nil, errCSVHeader
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var records []csvRecord
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		// the header was consumed before the reader saw the stream
		line, _ := cr.FieldPos(0)
		records = append(records, csvRecord{line: line + 1, cols: rec})
	}
	return records, nil
}

// validHeader matches the column names of CSVHeader, ignoring case and
// surrounding spaces
func validHeader(header string, comma rune) bool {
	got := strings.Split(strings.TrimSpace(header), string(comma))
	want := strings.Split(CSVHeader, ",")
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if !strings.EqualFold(strings.Trim(strings.TrimSpace(got[i]), `"`), want[i]) {
			return false
		}
	}
	return true
}

// Sample returns an example import file built from real buyers and approved
// listings, or fixed placeholder rows when there are none
func (s *CSVImportService) Sample(ctx context.Context) (string, error) {
	db := s.store.DB(ctx)
	var buyers []models.User
	if err := db.Where("role = ?", models.RoleBuyer).Order("id").Limit(3).Find(&buyers).Error; err != nil {
		return "", Internal(err, "Erreur lors de la génération de l'exemple")
	}
	var listings []models.SellerProduct
	if err := db.Where("approved = ?", true).Order("id").Limit(3).Find(&listings).Error; err != nil {
		return "", Internal(err, "Erreur lors de la génération de l'exemple")
	}

	var b strings.Builder
	b.WriteString(CSVHeader + "\n")
	if len(buyers) == 0 || len(listings) == 0 {
		b.WriteString("CMD001,1,2026-01-08 10:30:00,PENDING,1,2,150.00\n")
		b.WriteString("CMD001,1,2026-01-08 10:30:00,PENDING,2,1,75.50\n")
		b.WriteString("CMD002,1,2026-01-08 11:00:00,CONFIRMED,3,3,200.00\n")
		b.WriteString("CMD003,2,2026-01-08 12:00:00,IN_SHIPPING,1,1,150.00\n")
		return b.String(), nil
	}

	statuses := []models.OrderStatus{models.StatusPending, models.StatusConfirmed, models.StatusInShipping, models.StatusDelivered}
	now := s.now().In(s.loc)
	for i, buyer := range buyers {
		ref := fmt.Sprintf("CMD%03d", i+1)
		date := now.AddDate(0, 0, -rand.IntN(30)).Format(csvDateLayouts[0])
		status := statuses[rand.IntN(len(statuses))]
		for j := 0; j <= rand.IntN(len(listings)); j++ {
			sp := listings[j]
			fmt.Fprintf(&b, "%s,%d,%s,%s,%d,%d,%s\n", ref, buyer.ID, date, status, sp.ID, 1+rand.IntN(5), sp.Price.StringFixed(2))
		}
	}
	return b.String(), nil
}
