package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/db"
	"github.com/trendora/trendora-backend/pkg/db/models"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
	"github.com/trendora/trendora-backend/pkg/pagination"
)

// Service covers the shopper-facing coupon slot plus the admin catalog.
type Service interface {
	Apply(ctx context.Context, userID uuid.UUID, req ApplyCouponRequest, subtotalCents int) (*AppliedDTO, error)
	Remove(ctx context.Context, userID uuid.UUID) error
	Resolve(ctx context.Context, userID uuid.UUID, subtotalCents int) (string, int, error)

	Create(ctx context.Context, req CreateCouponRequest) (*CouponDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*CouponDTO, error)
	List(ctx context.Context, params ListParams) ([]CouponDTO, pagination.Meta, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateCouponRequest) (*CouponDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, params ListParams, page pagination.Params) ([]models.Coupon, int64, error)
	Save(ctx context.Context, coupon *models.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type appliedStore interface {
	Put(ctx context.Context, userID, code string) error
	Get(ctx context.Context, userID string) (string, error)
	Clear(ctx context.Context, userID string) error
}

type clock func() time.Time

type service struct {
	repo  repository
	store appliedStore
	logg  *logger.Logger
	now   clock
}

// ServiceParams bundles the dependencies required to build a coupon service.
type ServiceParams struct {
	Repo   repository
	Store  appliedStore
	Logger *logger.Logger
	// Now overrides the wall clock, for tests.
	Now clock
}

// NewService constructs a coupon service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("coupon repository is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("applied coupon store is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:  params.Repo,
		store: params.Store,
		logg:  params.Logger,
		now:   now,
	}, nil
}

func (s *service) Apply(ctx context.Context, userID uuid.UUID, req ApplyCouponRequest, subtotalCents int) (*AppliedDTO, error) {
	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.failClosed(ctx, userID, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found"))
		}
		return nil, s.failClosed(ctx, userID, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon"))
	}

	if err := s.eligibility(coupon, subtotalCents); err != nil {
		return nil, s.failClosed(ctx, userID, err)
	}

	if err := s.store.Put(ctx, userID.String(), coupon.Code); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store applied coupon")
	}

	return &AppliedDTO{Code: coupon.Code, DiscountPercent: coupon.DiscountPercent}, nil
}

// failClosed empties the applied slot before surfacing the error, so a
// rejected code never leaves a stale coupon discounting the cart.
func (s *service) failClosed(ctx context.Context, userID uuid.UUID, applyErr error) error {
	if err := s.store.Clear(ctx, userID.String()); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "clear applied coupon after failed apply", err)
	}
	return applyErr
}

func (s *service) Remove(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.Clear(ctx, userID.String()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear applied coupon")
	}
	return nil
}

// Resolve re-checks the user's applied coupon against the current
// subtotal. A coupon that has since become invalid is dropped from the
// slot rather than surfaced as an error.
func (s *service) Resolve(ctx context.Context, userID uuid.UUID, subtotalCents int) (string, int, error) {
	code, err := s.store.Get(ctx, userID.String())
	if err != nil {
		return "", 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read applied coupon")
	}
	if code == "" {
		return "", 0, nil
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", 0, s.drop(ctx, userID)
		}
		return "", 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	if err := s.eligibility(coupon, subtotalCents); err != nil {
		return "", 0, s.drop(ctx, userID)
	}

	return coupon.Code, coupon.DiscountPercent, nil
}

func (s *service) drop(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.Clear(ctx, userID.String()); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "drop stale applied coupon", err)
	}
	return nil
}

func (s *service) eligibility(coupon *models.Coupon, subtotalCents int) error {
	now := s.now()
	if !coupon.IsActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "coupon is not active")
	}
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "coupon is not yet active")
	}
	if coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "coupon has expired")
	}
	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "coupon has been fully redeemed")
	}
	if coupon.MinOrderCents != nil && subtotalCents < *coupon.MinOrderCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "order does not meet the coupon minimum").
			WithDetails(map[string]any{
				"minOrderCents": *coupon.MinOrderCents,
				"subtotalCents": subtotalCents,
			})
	}
	return nil
}

func (s *service) Create(ctx context.Context, req CreateCouponRequest) (*CouponDTO, error) {
	coupon := &models.Coupon{
		Code:            NormalizeCode(req.Code),
		Description:     req.Description,
		DiscountPercent: req.DiscountPercent,
		MinOrderCents:   req.MinOrderCents,
		MaxUses:         req.MaxUses,
		StartsAt:        req.StartsAt,
		ExpiresAt:       req.ExpiresAt,
		IsActive:        true,
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}
	if err := validateWindow(coupon.StartsAt, coupon.ExpiresAt); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		if isDuplicateCode(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create coupon")
	}

	dto := couponDTO(coupon)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CouponDTO, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	dto := couponDTO(coupon)
	return &dto, nil
}

func (s *service) List(ctx context.Context, params ListParams) ([]CouponDTO, pagination.Meta, error) {
	page := pagination.Normalize(pagination.Params{Page: params.Page, Limit: params.Limit})
	coupons, total, err := s.repo.List(ctx, params, page)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coupons")
	}

	dtos := make([]CouponDTO, 0, len(coupons))
	for i := range coupons {
		dtos = append(dtos, couponDTO(&coupons[i]))
	}
	return dtos, pagination.BuildMeta(page, total), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateCouponRequest) (*CouponDTO, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}

	if req.Description != nil {
		coupon.Description = req.Description
	}
	if req.DiscountPercent != nil {
		coupon.DiscountPercent = *req.DiscountPercent
	}
	if req.MinOrderCents != nil {
		coupon.MinOrderCents = req.MinOrderCents
	}
	if req.MaxUses != nil {
		coupon.MaxUses = req.MaxUses
	}
	if req.StartsAt != nil {
		coupon.StartsAt = req.StartsAt
	}
	if req.ExpiresAt != nil {
		coupon.ExpiresAt = req.ExpiresAt
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}
	if err := validateWindow(coupon.StartsAt, coupon.ExpiresAt); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, coupon); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update coupon")
	}

	dto := couponDTO(coupon)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete coupon")
	}
	return nil
}

func validateWindow(startsAt, expiresAt *time.Time) error {
	if startsAt != nil && expiresAt != nil && !expiresAt.After(*startsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon expiry must be after its start")
	}
	return nil
}

func isDuplicateCode(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if db.IsUniqueViolation(err, "idx_coupons_code") {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
