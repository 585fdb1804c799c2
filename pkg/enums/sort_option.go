package enums

// SortOption orders the product listing.
type SortOption string

const (
	SortFeatured  SortOption = "featured"
	SortPriceLow  SortOption = "price-low"
	SortPriceHigh SortOption = "price-high"
	SortRating    SortOption = "rating"
)

var validSortOptions = []SortOption{
	SortFeatured,
	SortPriceLow,
	SortPriceHigh,
	SortRating,
}

// String implements fmt.Stringer.
func (s SortOption) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SortOption.
func (s SortOption) IsValid() bool {
	for _, candidate := range validSortOptions {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSortOption converts raw input into a SortOption; unknown values fall back to featured.
func ParseSortOption(value string) SortOption {
	for _, candidate := range validSortOptions {
		if string(candidate) == value {
			return candidate
		}
	}
	return SortFeatured
}
