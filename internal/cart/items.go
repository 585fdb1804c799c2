package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Item is one cart line. Price is the unit price captured when the line was first added.
type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Images      []string        `json:"images,omitempty"`
}

// Subtotal is price × quantity, unrounded.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Product is what the cart needs to know about a catalog entry.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Images      []string
}

// Add merges qty of p into items. Products without an id or a positive price are
// rejected; a non-positive qty counts as one.
func Add(items []Item, p Product, qty int) ([]Item, bool) {
	id := strings.TrimSpace(p.ID)
	if id == "" || !p.Price.IsPositive() {
		return items, false
	}
	if qty <= 0 {
		qty = 1
	}
	out := clone(items)
	for i := range out {
		if out[i].ID == id {
			out[i].Quantity += qty
			return out, true
		}
	}
	return append(out, Item{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    qty,
		Images:      append([]string(nil), p.Images...),
	}), true
}

// Remove drops the line with id.
func Remove(items []Item, id string) ([]Item, bool) {
	if id == "" {
		return items, false
	}
	out := make([]Item, 0, len(items))
	removed := false
	for _, item := range items {
		if item.ID == id {
			removed = true
			continue
		}
		out = append(out, item)
	}
	if !removed {
		return items, false
	}
	return out, true
}

// SetQuantity replaces the quantity of id; qty <= 0 removes the line.
func SetQuantity(items []Item, id string, qty int) ([]Item, bool) {
	if id == "" {
		return items, false
	}
	if qty <= 0 {
		return Remove(items, id)
	}
	out := clone(items)
	for i := range out {
		if out[i].ID == id {
			out[i].Quantity = qty
			return out, true
		}
	}
	return items, false
}

// Total is Σ price × quantity rounded to two decimals.
func Total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Subtotal())
	}
	return sum.Round(2)
}

// Count is the number of units across all lines.
func Count(items []Item) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// Find returns a copy of the line with id.
func Find(items []Item, id string) (Item, bool) {
	for _, item := range items {
		if item.ID == id {
			return item.clone(), true
		}
	}
	return Item{}, false
}

func (i Item) clone() Item {
	if i.Images != nil {
		i.Images = append([]string(nil), i.Images...)
	}
	return i
}

func clone(items []Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = item.clone()
	}
	return out
}
