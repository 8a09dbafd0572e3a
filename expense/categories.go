package expense

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DefaultCategories is the built-in category list served when no override
// file is present.
var DefaultCategories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Travel",
	"Education",
	"Business",
	"Other",
}

// CategoryProvider supplies the display list of expense categories. It is
// independent of the categories actually stored with expenses.
type CategoryProvider struct {
	// Path is an optional JSON file whose contents replace the built-in list.
	Path string
}

// NewCategoryProvider returns a provider that prefers the file at path.
func NewCategoryProvider(path string) *CategoryProvider {
	return &CategoryProvider{Path: path}
}

type categoryDocument struct {
	Categories []string `json:"categories"`
}

// Categories returns a JSON document of the form {"categories": [...]}.
// An existing override file is returned verbatim without validation.
func (p *CategoryProvider) Categories(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p != nil && p.Path != "" {
		data, err := os.ReadFile(p.Path)
		switch {
		case err == nil:
			return data, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read categories file %q: %w", p.Path, err)
		}
	}
	return defaultDocument()
}

func defaultDocument() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(categoryDocument{Categories: DefaultCategories}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
