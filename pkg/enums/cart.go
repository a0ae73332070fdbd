package enums

import "fmt"

// CartLineStatus tracks whether a line has a mutation pending settlement.
type CartLineStatus string

const (
	CartLineStatusOK         CartLineStatus = "ok"
	CartLineStatusProcessing CartLineStatus = "processing"
)

var validCartLineStatuses = []CartLineStatus{
	CartLineStatusOK,
	CartLineStatusProcessing,
}

// String implements fmt.Stringer.
func (c CartLineStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CartLineStatus) IsValid() bool {
	for _, candidate := range validCartLineStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// CartWarningType classifies per-line warnings surfaced after settlement.
type CartWarningType string

const (
	// CartWarningQuantityClamped flags that the committed quantity was
	// lowered to the server-confirmed available stock.
	CartWarningQuantityClamped CartWarningType = "quantity_clamped"
)

// IsValid reports whether the value is known.
func (c CartWarningType) IsValid() bool {
	return c == CartWarningQuantityClamped
}

// ParseCartWarningType converts raw input into a CartWarningType.
func ParseCartWarningType(value string) (CartWarningType, error) {
	if CartWarningType(value).IsValid() {
		return CartWarningType(value), nil
	}
	return "", fmt.Errorf("invalid cart warning type %q", value)
}
