package sheet

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/phenrril/attarstore/internal/domain"
)

const catalogSheet = "Catalog"

var exportHeader = []interface{}{"id", "name", "kind", "price", "unit_price", "category", "variant_id", "image", "description"}

// ExportCatalog writes the products as one XLSX sheet, one row per product.
func ExportCatalog(w io.Writer, products []domain.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", catalogSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(catalogSheet, "A1", &exportHeader); err != nil {
		return err
	}
	for i, p := range products {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{p.ID, p.Name, string(p.Kind), p.Price, p.UnitPrice.InexactFloat64(), p.Category, p.VariantID, p.Image(), p.DescriptionLong}
		if err := f.SetSheetRow(catalogSheet, cell, &row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// Source reads raw products from a spreadsheet. Rows sharing a product_id
// add variants and media to the first row's product. Recognised columns:
// product_id, product_name, product_type, price, variant_id, variant_price,
// category, description, ingredients, how_to_use, image.
type Source struct {
	Path string
}

var _ domain.ProductAPI = (*Source)(nil)

func (s *Source) ListProducts(ctx context.Context) ([]domain.RawProduct, error) {
	fh, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog sheet: %w", err)
	}
	defer fh.Close()
	return ReadProducts(fh)
}

func (s *Source) GetProduct(ctx context.Context, id string) (*domain.RawProduct, error) {
	list, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if fmt.Sprint(list[i].ProductID) == id {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
}

func ReadProducts(r io.Reader) ([]domain.RawProduct, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog sheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []domain.RawProduct{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.RawProduct{}, nil
	}

	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	opt := func(row []string, name string) *string {
		v := get(row, name)
		if v == "" {
			return nil
		}
		return &v
	}

	out := []domain.RawProduct{}
	pos := map[string]int{}
	for _, row := range rows[1:] {
		id := get(row, "product_id")
		if id == "" && get(row, "product_name") == "" {
			continue
		}
		i, seen := pos[id]
		if !seen || id == "" {
			p := domain.RawProduct{
				ProductID:   id,
				ProductName: get(row, "product_name"),
				ProductType: get(row, "product_type"),
				Category:    opt(row, "category"),
				Description: opt(row, "description"),
				Ingredients: opt(row, "ingredients"),
				HowToUse:    opt(row, "how_to_use"),
			}
			if price := get(row, "price"); price != "" {
				p.Price = price
			}
			out = append(out, p)
			i = len(out) - 1
			if id != "" {
				pos[id] = i
			}
		}
		if vid := get(row, "variant_id"); vid != "" {
			out[i].Variants = append(out[i].Variants, domain.RawVariant{VariantID: vid, Price: get(row, "variant_price")})
		}
		if img := get(row, "image"); img != "" {
			out[i].Media = append(out[i].Media, domain.RawMedia{Src: img})
		}
	}
	return out, nil
}
