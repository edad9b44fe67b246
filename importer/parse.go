package importer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Parse reads the first sheet of an xlsx workbook. The first row supplies the
// keys; every following row that has at least one non-blank cell becomes a
// Row. Columns with a blank header are ignored. Cells are read as their
// stored values, so a number format never changes what a row contains:
// numeric cells arrive as plain numbers and date cells as Excel serials.
func Parse(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	cells, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(cells) == 0 {
		return nil, nil
	}

	header := make([]string, len(cells[0]))
	for i, h := range cells[0] {
		header[i] = normalizeHeader(h)
	}

	rows := make([]Row, 0, len(cells)-1)
	for _, line := range cells[1:] {
		if isBlank(line) {
			continue
		}
		row := make(Row, len(header))
		for i, key := range header {
			if key == "" {
				continue
			}
			if i < len(line) {
				row[key] = line[i]
			} else {
				row[key] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(line []string) bool {
	for _, c := range line {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
