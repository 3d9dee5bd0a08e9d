package spreadsheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract flattens every sheet into tab-separated rows, sheets separated by
// blank lines and prefixed with the sheet name.
func (e *Extractor) Extract(_ context.Context, path string) (string, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer file.Close()

	var sheets []string
	for _, name := range file.GetSheetList() {
		rows, err := file.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", name, err)
		}

		lines := make([]string, 0, len(rows)+1)
		lines = append(lines, name)
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 1 {
			sheets = append(sheets, strings.Join(lines, "\n"))
		}
	}

	return strings.Join(sheets, "\n\n"), nil
}
