package products

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/arrowtech/storefront/internal/cart"
)

// AllCategories disables category filtering.
const AllCategories = "all"

// Product is a catalog entry.
type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Price       decimal.Decimal   `json:"price"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Specs       map[string]string `json:"specs,omitempty"`
	Images      []string          `json:"images,omitempty"`
	InStock     bool              `json:"inStock"`
	Featured    bool              `json:"featured"`
	Rating      float64           `json:"rating"`
	Reviews     int               `json:"reviews"`
}

// CartProduct returns the fields the cart snapshots at add time.
func (p Product) CartProduct() cart.Product {
	return cart.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Images:      p.Images,
	}
}

// LoadCatalog decodes a JSON array of products. Duplicate ids are rejected.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var items []Product
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(items))
	for i, p := range items {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate product id %q", id)
		}
		seen[id] = struct{}{}
		items[i].ID = id
	}
	return NewCatalog(items), nil
}
