package products

import (
	"fmt"
	"os"
	"strings"
)

// LoadCatalogFile reads a catalog from path. An empty path gives an empty catalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewCatalog(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}
