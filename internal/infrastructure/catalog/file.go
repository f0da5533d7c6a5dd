// Package catalog provides CatalogSource adapters: local files and a
// paginated HTTP API.
package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/macrolens/grocer/internal/domain"
)

// Columns with a fixed meaning in CSV catalogs. Every other column is a
// nutrition label.
var csvFields = map[string]func(*domain.RawProduct, string){
	"id":              func(p *domain.RawProduct, v string) { p.ID = v },
	"code":            func(p *domain.RawProduct, v string) { p.ID = v },
	"name":            func(p *domain.RawProduct, v string) { p.Name = v },
	"product_name":    func(p *domain.RawProduct, v string) { p.Name = v },
	"price":           func(p *domain.RawProduct, v string) { p.Price = v },
	"package_size":    func(p *domain.RawProduct, v string) { p.PackageSize = v },
	"quantity":        func(p *domain.RawProduct, v string) { p.PackageSize = v },
	"serving_size":    func(p *domain.RawProduct, v string) { p.ServingSize = v },
	"nutrition_basis": func(p *domain.RawProduct, v string) { p.NutritionBasis = v },
	"category":        func(p *domain.RawProduct, v string) { p.Category = v },
}

// FileSource reads a catalog from a CSV or JSON file.
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed catalog source
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the source name
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Products reads the whole file. The format follows the extension: .json,
// otherwise CSV with ';' or ',' separators.
func (s *FileSource) Products(ctx context.Context) ([]domain.RawProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogSourceFailure, err)
	}

	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".json":
		return DecodeJSON(data)
	default:
		return DecodeCSV(bytes.NewReader(data))
	}
}

// DecodeJSON accepts either an array of products or {"products": [...]}.
func DecodeJSON(data []byte) ([]domain.RawProduct, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var products []domain.RawProduct
		if err := json.Unmarshal(trimmed, &products); err != nil {
			return nil, fmt.Errorf("%w: decoding catalog: %v", domain.ErrCatalogSourceFailure, err)
		}
		return products, nil
	}
	var wrapped struct {
		Products []domain.RawProduct `json:"products"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: decoding catalog: %v", domain.ErrCatalogSourceFailure, err)
	}
	return wrapped.Products, nil
}

// DecodeCSV reads a catalog with a header row. The separator is detected
// from the header: ';' when it has more semicolons than commas.
func DecodeCSV(r io.Reader) ([]domain.RawProduct, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("%w: reading catalog: %v", domain.ErrCatalogSourceFailure, err)
	}
	firstLine := string(head)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}

	reader := csv.NewReader(br)
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		reader.Comma = ';'
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", domain.ErrCatalogSourceFailure, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var products []domain.RawProduct
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrCatalogSourceFailure, line, err)
		}

		p := domain.RawProduct{Nutrition: make(map[string]string)}
		for i, value := range record {
			if i >= len(header) {
				break
			}
			value = strings.TrimSpace(value)
			if set, ok := csvFields[strings.ToLower(header[i])]; ok {
				set(&p, value)
				continue
			}
			if value != "" {
				p.Nutrition[header[i]] = value
			}
		}
		products = append(products, p)
	}
	return products, nil
}
