package mapping

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"bitbucket.org/mmdatafocus/fieldbooks_sync/config"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/utils"
)

// DefaultKey is the reserved SourceProductID used as the wildcard row.
const DefaultKey = "DEFAULT"

var mappingColumns = []string{"SourceProductID", "TargetItemID", "DisplayName", "IncludeDescription"}

// ProductMapping describes how one FieldOps product id translates into a
// Books line item.
type ProductMapping struct {
	SourceProductID    string
	TargetItemID       string
	DisplayName        string
	IncludeDescription bool
}

// Table is the read-only lookup built once at startup.
type Table struct {
	entries    map[string]ProductMapping
	hasDefault bool
}

// Load reads the mapping file. Extension decides the format: .xlsx is read
// with excelize (first sheet), anything else as CSV. With strict default
// policy a missing DEFAULT row fails the load.
func Load(path string) (*Table, error) {
	var rows [][]string
	var err error
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err = readWorkbookRows(path)
	} else {
		rows, err = readCSVRows(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: mapping file %s: %v", utils.ErrConfig, path, err)
	}
	return build(rows)
}

func readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func readWorkbookRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func build(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: mapping file is empty", utils.ErrConfig)
	}

	header := rows[0]
	if len(header) < len(mappingColumns) {
		return nil, fmt.Errorf("%w: mapping header has %d columns, want %d", utils.ErrConfig, len(header), len(mappingColumns))
	}
	for i, want := range mappingColumns {
		if strings.TrimSpace(header[i]) != want {
			return nil, fmt.Errorf("%w: mapping column %d is %q, want %q", utils.ErrConfig, i+1, header[i], want)
		}
	}

	logger := config.GetLogger()
	t := &Table{entries: make(map[string]ProductMapping)}
	for n, row := range rows[1:] {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if len(row) < len(mappingColumns) {
			return nil, fmt.Errorf("%w: mapping row %d has %d columns, want %d", utils.ErrConfig, n+2, len(row), len(mappingColumns))
		}
		m := ProductMapping{
			SourceProductID: strings.TrimSpace(row[0]),
			TargetItemID:    strings.TrimSpace(row[1]),
			DisplayName:     strings.TrimSpace(row[2]),
			// Exact literal match per the file contract; anything else is No.
			IncludeDescription: strings.TrimSpace(row[3]) == "Yes",
		}
		if m.SourceProductID == "" {
			return nil, fmt.Errorf("%w: mapping row %d has empty SourceProductID", utils.ErrConfig, n+2)
		}
		if m.TargetItemID == "" {
			return nil, fmt.Errorf("%w: mapping row %d has empty TargetItemID", utils.ErrConfig, n+2)
		}
		// First row wins on duplicates.
		if _, exists := t.entries[m.SourceProductID]; exists {
			config.LogWarn(logger, "mapping", "build", m.SourceProductID, "duplicate mapping row ignored (first wins)")
			continue
		}
		t.entries[m.SourceProductID] = m
		if m.SourceProductID == DefaultKey {
			t.hasDefault = true
		}
	}

	if len(t.entries) == 0 {
		return nil, fmt.Errorf("%w: mapping file has no data rows", utils.ErrConfig)
	}
	if !t.hasDefault && config.StrictDefaultMapping() {
		return nil, fmt.Errorf("%w: mapping file has no %s row", utils.ErrConfig, DefaultKey)
	}
	if !t.hasDefault {
		config.LogWarn(logger, "mapping", "build", "", "no DEFAULT mapping row; unmapped line items will be skipped")
	}
	return t, nil
}

// Resolve returns the exact mapping for sourceProductID, or the DEFAULT
// mapping. utils.ErrNoMapping is returned only under the lenient policy;
// callers must skip the line item and log, never drop it silently.
func (t *Table) Resolve(sourceProductID string) (ProductMapping, error) {
	if m, ok := t.entries[sourceProductID]; ok {
		return m, nil
	}
	if m, ok := t.entries[DefaultKey]; ok {
		return m, nil
	}
	return ProductMapping{}, fmt.Errorf("%w: product %q", utils.ErrNoMapping, sourceProductID)
}

// Len reports the number of mapping rows, DEFAULT included.
func (t *Table) Len() int { return len(t.entries) }
