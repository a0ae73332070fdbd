package addresses

import (
	"time"

	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/types"
)

// AddressDTO is the public representation of a saved address.
type AddressDTO struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"fullName"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	Phone      *string   `json:"phone,omitempty"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ToDTO maps the persistence model onto the public shape.
func ToDTO(address *models.Address) *AddressDTO {
	if address == nil {
		return nil
	}
	return &AddressDTO{
		ID:         address.ID,
		FullName:   address.FullName,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
		Phone:      address.Phone,
		IsDefault:  address.IsDefault,
		CreatedAt:  address.CreatedAt,
	}
}

// Snapshot copies the address into the immutable shape stored on orders.
func Snapshot(address *models.Address) types.AddressSnapshot {
	return types.AddressSnapshot{
		FullName:   address.FullName,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
		Phone:      address.Phone,
	}
}

// UpsertAddressRequest captures the create/update payload.
type UpsertAddressRequest struct {
	FullName   string  `json:"fullName" validate:"required,max=120"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=80"`
	State      string  `json:"state" validate:"required,max=80"`
	PostalCode string  `json:"postalCode" validate:"required,max=20"`
	Country    string  `json:"country" validate:"required,max=80"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
	IsDefault  bool    `json:"isDefault"`
}
