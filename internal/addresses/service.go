package addresses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/db/models"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
)

// Service defines the address book behavior needed by the controllers.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Create(ctx context.Context, userID uuid.UUID, req UpsertAddressRequest) (*AddressDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, req UpsertAddressRequest) (*AddressDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	SetDefault(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error)
}

type repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	FindByID(ctx context.Context, userID, id uuid.UUID) (*models.Address, error)
	Create(ctx context.Context, address *models.Address) error
	Save(ctx context.Context, address *models.Address) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	SetDefault(ctx context.Context, userID, id uuid.UUID) error
	ClearDefault(ctx context.Context, userID uuid.UUID) error
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   repository
	tx     txRunner
	txRepo func(tx *gorm.DB) repository
}

// ServiceParams bundles the dependencies required to build an addresses service.
type ServiceParams struct {
	Repo repository
	Tx   txRunner
	// TxRepo returns a repository bound to the given transaction.
	TxRepo func(tx *gorm.DB) repository
}

// NewService constructs an addresses service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("addresses repository is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	txRepo := params.TxRepo
	if txRepo == nil {
		txRepo = func(tx *gorm.DB) repository { return NewRepository(tx) }
	}
	return &service{repo: params.Repo, tx: params.Tx, txRepo: txRepo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	dtos := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *ToDTO(&rows[i]))
	}
	return dtos, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req UpsertAddressRequest) (*AddressDTO, error) {
	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count addresses")
	}

	address := modelFromRequest(userID, req)
	// The first saved address is always the default.
	if count == 0 {
		address.IsDefault = true
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.txRepo(tx)
		if address.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, address)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create address")
	}
	return ToDTO(address), nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, req UpsertAddressRequest) (*AddressDTO, error) {
	address, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}

	wasDefault := address.IsDefault
	applyRequest(address, req)
	// Demoting the only default is not allowed; defaults move by
	// promoting another address.
	if wasDefault {
		address.IsDefault = true
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.txRepo(tx)
		if address.IsDefault && !wasDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return repo.Save(ctx, address)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update address")
	}
	return ToDTO(address), nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	address, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.txRepo(tx)
		if err := repo.Delete(ctx, userID, id); err != nil {
			return err
		}
		if !address.IsDefault {
			return nil
		}
		// Promote the oldest remaining address so the default
		// never silently disappears.
		remaining, err := repo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return nil
		}
		return repo.SetDefault(ctx, userID, remaining[0].ID)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete address")
	}
	return nil
}

func (s *service) SetDefault(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error) {
	address, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.txRepo(tx)
		if err := repo.ClearDefault(ctx, userID); err != nil {
			return err
		}
		return repo.SetDefault(ctx, userID, id)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set default address")
	}

	address.IsDefault = true
	return ToDTO(address), nil
}

func modelFromRequest(userID uuid.UUID, req UpsertAddressRequest) *models.Address {
	return &models.Address{
		UserID:     userID,
		FullName:   strings.TrimSpace(req.FullName),
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      req.Line2,
		City:       strings.TrimSpace(req.City),
		State:      strings.TrimSpace(req.State),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.TrimSpace(req.Country),
		Phone:      req.Phone,
		IsDefault:  req.IsDefault,
	}
}

func applyRequest(address *models.Address, req UpsertAddressRequest) {
	address.FullName = strings.TrimSpace(req.FullName)
	address.Line1 = strings.TrimSpace(req.Line1)
	address.Line2 = req.Line2
	address.City = strings.TrimSpace(req.City)
	address.State = strings.TrimSpace(req.State)
	address.PostalCode = strings.TrimSpace(req.PostalCode)
	address.Country = strings.TrimSpace(req.Country)
	address.Phone = req.Phone
	address.IsDefault = req.IsDefault
}
