// Package importer loads property listings from CSV and XLSX spreadsheets.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"github.com/xuri/excelize/v2"
)

// MaxRows caps the data rows accepted in one file.
const MaxRows = 5000

var requiredColumns = []string{"title", "category", "type", "city"}

// columnAliases maps accepted header spellings to canonical names.
var columnAliases = map[string]string{
	"name":          "title",
	"operation":     "category",
	"property_type": "type",
	"rooms":         "bedrooms",
	"beds":          "bedrooms",
	"baths":         "bathrooms",
	"size":          "area",
	"m2":            "area",
	"address":       "location",
	"photos":        "images",
	"active":        "is_active",
	"featured":      "is_featured",
}

// Sink receives the rows that passed validation.
type Sink interface {
	CreateBatch(ctx context.Context, actorID uint, reqs []models.PropertyCreateRequest) (int, error)
}

// Importer parses spreadsheets into property create requests.
type Importer struct {
	sink      Sink
	validator *validation.Validator
	log       logger.Logger
}

// New creates an importer writing to sink.
func New(sink Sink, v *validation.Validator, log logger.Logger) *Importer {
	if v == nil {
		v = validation.New(nil)
	}
	return &Importer{sink: sink, validator: v, log: logger.OrNop(log)}
}

// Import reads filename's content from r, validates every row and stores the
// valid ones in a single batch. Invalid rows are reported, not fatal.
func (im *Importer) Import(ctx context.Context, actorID uint, filename string, r io.Reader) (*models.ImportResponse, error) {
	rows, err := readRows(filename, r)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, domain.NewBadRequestError("File has no data rows")
	}
	if len(rows)-1 > MaxRows {
		return nil, domain.NewBadRequestError(fmt.Sprintf("File exceeds the limit of %d rows", MaxRows))
	}

	cols, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	resp := &models.ImportResponse{Errors: []models.ImportError{}}
	var valid []models.PropertyCreateRequest
	for i, rec := range rows[1:] {
		line := i + 2
		if blank(rec) {
			continue
		}
		req, err := im.parseRow(cols, rec)
		if err != nil {
			resp.Errors = append(resp.Errors, models.ImportError{Row: line, Message: err.Error()})
			continue
		}
		valid = append(valid, *req)
	}

	n, err := im.sink.CreateBatch(ctx, actorID, valid)
	if err != nil {
		return nil, err
	}
	resp.Imported = n
	resp.Failed = len(resp.Errors)
	im.log.Info("properties imported", "file", filename, "imported", resp.Imported, "failed", resp.Failed)
	return resp, nil
}

func readRows(filename string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, domain.NewBadRequestError(fmt.Sprintf("Invalid CSV file: %v", err))
		}
		return rows, nil
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, domain.NewBadRequestError("Invalid XLSX file")
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, domain.NewBadRequestError("Workbook has no sheets")
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet: %w", err)
		}
		return rows, nil
	default:
		return nil, domain.NewBadRequestError("Unsupported file type, expected .csv or .xlsx")
	}
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		name = strings.ReplaceAll(name, " ", "_")
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, domain.NewBadRequestError(fmt.Sprintf("Missing required column: %s", c))
		}
	}
	return cols, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type row struct {
	cols map[string]int
	rec  []string
}

func (r row) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r row) float(col string) (float64, error) {
	v := r.get(col)
	if v == "" {
		return 0, nil
	}
	v = strings.NewReplacer(",", "", "$", "", "€", "", " ", "").Replace(v)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", col, r.get(col))
	}
	return f, nil
}

func (r row) int(col string) (int, error) {
	f, err := r.float(col)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func (r row) bool(col string) (*bool, error) {
	switch strings.ToLower(r.get(col)) {
	case "":
		return nil, nil
	case "1", "true", "yes", "y", "si", "sí":
		t := true
		return &t, nil
	case "0", "false", "no", "n":
		f := false
		return &f, nil
	default:
		return nil, fmt.Errorf("%s: %q is not a boolean", col, r.get(col))
	}
}

func (r row) list(col string) []string {
	v := r.get(col)
	if v == "" {
		return nil
	}
	parts := strings.FieldsFunc(v, func(c rune) bool { return c == '|' || c == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (im *Importer) parseRow(cols map[string]int, rec []string) (*models.PropertyCreateRequest, error) {
	r := row{cols: cols, rec: rec}
	req := &models.PropertyCreateRequest{
		Title:        r.get("title"),
		Description:  r.get("description"),
		Category:     strings.ToUpper(r.get("category")),
		Type:         strings.ToLower(r.get("type")),
		PriceDisplay: r.get("price_display"),
		Location:     r.get("location"),
		City:         r.get("city"),
		Images:       r.list("images"),
		Features:     r.list("features"),
	}
	if req.Category == "ALQUILER" {
		req.Category = "RENT"
	}
	if req.Category == "VENTA" {
		req.Category = "SALE"
	}

	var errs []error
	var err error
	if req.Price, err = r.float("price"); err != nil {
		errs = append(errs, err)
	}
	if req.Area, err = r.float("area"); err != nil {
		errs = append(errs, err)
	}
	if req.Bedrooms, err = r.int("bedrooms"); err != nil {
		errs = append(errs, err)
	}
	if req.Bathrooms, err = r.int("bathrooms"); err != nil {
		errs = append(errs, err)
	}
	if req.IsActive, err = r.bool("is_active"); err != nil {
		errs = append(errs, err)
	}
	featured, err := r.bool("is_featured")
	if err != nil {
		errs = append(errs, err)
	} else if featured != nil {
		req.IsFeatured = *featured
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	im.validator.Sanitizer().SanitizeStruct(req)
	if fields := im.validator.Check(req); len(fields) > 0 {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			msgs = append(msgs, f.Field+": "+f.Message)
		}
		return nil, errors.New(strings.Join(msgs, "; "))
	}
	return req, nil
}
