package types

// AddressSnapshot is the immutable shipping address copied onto an order
// at checkout. Later edits to the saved address never touch it.
type AddressSnapshot struct {
	FullName   string  `json:"fullName"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}
