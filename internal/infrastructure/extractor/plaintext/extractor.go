package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file is not valid utf-8 text: %s", path)
	}

	return strings.TrimSpace(string(raw)), nil
}
