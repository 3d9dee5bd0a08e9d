package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/adaptive-rag/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/extractor/spreadsheet"
)

// Extractor dispatches to a format-specific extractor by file extension,
// falling back to the declared MIME type.
type Extractor struct {
	pdf   *pdftext.Extractor
	plain *plaintext.Extractor
	sheet *spreadsheet.Extractor
}

func New() *Extractor {
	return &Extractor{
		pdf:   pdftext.NewExtractor(),
		plain: plaintext.NewExtractor(),
		sheet: spreadsheet.NewExtractor(),
	}
}

func (e *Extractor) Extract(ctx context.Context, path, filename, mimeType string) (string, error) {
	switch detectFormat(filename, mimeType) {
	case "pdf":
		return e.pdf.Extract(ctx, path)
	case "spreadsheet":
		return e.sheet.Extract(ctx, path)
	case "text":
		return e.plain.Extract(ctx, path)
	default:
		return "", fmt.Errorf("unsupported document format: %s (%s)", filename, mimeType)
	}
}

func detectFormat(filename, mimeType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".xlsx", ".xlsm":
		return "spreadsheet"
	case ".txt", ".md", ".csv", ".log":
		return "text"
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mimeType == "application/pdf":
		return "pdf"
	case strings.Contains(mimeType, "spreadsheet"):
		return "spreadsheet"
	case strings.HasPrefix(mimeType, "text/"):
		return "text"
	case mimeType == "", mimeType == "application/octet-stream":
		// Unknown type: try plaintext, it rejects binary content itself.
		return "text"
	default:
		return ""
	}
}
