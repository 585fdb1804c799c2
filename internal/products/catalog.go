package products

import (
	"sort"
	"strings"
	"sync"

	"github.com/arrowtech/storefront/internal/cart"
	"github.com/arrowtech/storefront/pkg/enums"
)

// Catalog is the immutable full product list.
type Catalog struct {
	products []Product
	byID     map[string]int
}

func NewCatalog(items []Product) *Catalog {
	c := &Catalog{
		products: append([]Product(nil), items...),
		byID:     make(map[string]int, len(items)),
	}
	for i, p := range c.products {
		c.byID[p.ID] = i
	}
	return c
}

// All returns every product in catalog order.
func (c *Catalog) All() []Product {
	return append([]Product(nil), c.products...)
}

func (c *Catalog) ByID(id string) (Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// Featured returns featured products in catalog order.
func (c *Catalog) Featured() []Product {
	var out []Product
	for _, p := range c.products {
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}

// Categories lists distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range c.products {
		if _, ok := seen[p.Category]; ok || p.Category == "" {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// Query selects and orders products.
type Query struct {
	Category string
	SortBy   enums.SortOption
	Search   string
}

// Apply filters by category, then by case-insensitive substring on name or description,
// then sorts stably so equal keys keep catalog order.
func Apply(items []Product, q Query) []Product {
	out := make([]Product, 0, len(items))
	search := strings.ToLower(strings.TrimSpace(q.Search))
	for _, p := range items {
		if q.Category != "" && q.Category != AllCategories && p.Category != q.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		out = append(out, p)
	}

	switch q.SortBy {
	case enums.SortPriceLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case enums.SortPriceHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	case enums.SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Featured && !out[j].Featured })
	}
	return out
}

// View is a browsing session over a catalog: each setter re-derives Filtered.
type View struct {
	mu       sync.RWMutex
	catalog  *Catalog
	query    Query
	filtered []Product
}

// View starts a browsing session with category "all" and featured sorting.
func (c *Catalog) View() *View {
	v := &View{catalog: c, query: Query{Category: AllCategories, SortBy: enums.SortFeatured}}
	v.filtered = Apply(c.products, v.query)
	return v
}

func (v *View) SetCategory(category string) {
	v.update(func(q *Query) { q.Category = category })
}

// SetSortBy accepts any string; unknown keys fall back to featured.
func (v *View) SetSortBy(sortBy string) {
	v.update(func(q *Query) { q.SortBy = enums.ParseSortOption(sortBy) })
}

func (v *View) SetSearchQuery(search string) {
	v.update(func(q *Query) { q.Search = search })
}

// Query returns the current selection.
func (v *View) Query() Query {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.query
}

// Filtered returns the derived product list.
func (v *View) Filtered() []Product {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Product(nil), v.filtered...)
}

func (v *View) update(fn func(*Query)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(&v.query)
	v.filtered = Apply(v.catalog.products, v.query)
}

// CartProduct looks up id and returns its cart projection.
func (c *Catalog) CartProduct(id string) (cart.Product, bool) {
	p, ok := c.ByID(id)
	if !ok {
		return cart.Product{}, false
	}
	return p.CartProduct(), true
}
