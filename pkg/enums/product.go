package enums

import "fmt"

// ProductGender is the storefront's catalog segmentation axis.
type ProductGender string

const (
	ProductGenderMen    ProductGender = "men"
	ProductGenderWomen  ProductGender = "women"
	ProductGenderUnisex ProductGender = "unisex"
	ProductGenderKids   ProductGender = "kids"
)

var validProductGenders = []ProductGender{
	ProductGenderMen,
	ProductGenderWomen,
	ProductGenderUnisex,
	ProductGenderKids,
}

// String implements fmt.Stringer.
func (g ProductGender) String() string {
	return string(g)
}

// IsValid reports whether the value is a known ProductGender.
func (g ProductGender) IsValid() bool {
	for _, candidate := range validProductGenders {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseProductGender converts raw input into a ProductGender.
func ParseProductGender(value string) (ProductGender, error) {
	for _, candidate := range validProductGenders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product gender %q", value)
}

// ProductSort enumerates the supported listing sort keys.
type ProductSort string

const (
	ProductSortName      ProductSort = "name"
	ProductSortPrice     ProductSort = "price"
	ProductSortStock     ProductSort = "stock"
	ProductSortRating    ProductSort = "rating"
	ProductSortCreatedAt ProductSort = "created_at"
)

var validProductSorts = []ProductSort{
	ProductSortName,
	ProductSortPrice,
	ProductSortStock,
	ProductSortRating,
	ProductSortCreatedAt,
}

// IsValid reports whether the value is a known ProductSort.
func (s ProductSort) IsValid() bool {
	for _, candidate := range validProductSorts {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductSort converts raw input into a ProductSort.
func ParseProductSort(value string) (ProductSort, error) {
	for _, candidate := range validProductSorts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product sort %q", value)
}
