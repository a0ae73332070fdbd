package coupons

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/db/models"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/pagination"
)

type stubCouponRepo struct {
	byCode map[string]*models.Coupon
}

func newStubCouponRepo() *stubCouponRepo {
	return &stubCouponRepo{byCode: map[string]*models.Coupon{}}
}

func (r *stubCouponRepo) Create(_ context.Context, coupon *models.Coupon) error {
	if _, ok := r.byCode[coupon.Code]; ok {
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	coupon.ID = uuid.New()
	copied := *coupon
	r.byCode[coupon.Code] = &copied
	return nil
}

func (r *stubCouponRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Coupon, error) {
	for _, coupon := range r.byCode {
		if coupon.ID == id {
			copied := *coupon
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCouponRepo) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	coupon, ok := r.byCode[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *coupon
	return &copied, nil
}

func (r *stubCouponRepo) List(_ context.Context, params ListParams, _ pagination.Params) ([]models.Coupon, int64, error) {
	var out []models.Coupon
	for _, coupon := range r.byCode {
		if params.ActiveOnly && !coupon.IsActive {
			continue
		}
		out = append(out, *coupon)
	}
	return out, int64(len(out)), nil
}

func (r *stubCouponRepo) Save(_ context.Context, coupon *models.Coupon) error {
	copied := *coupon
	r.byCode[coupon.Code] = &copied
	return nil
}

func (r *stubCouponRepo) Delete(_ context.Context, id uuid.UUID) error {
	for code, coupon := range r.byCode {
		if coupon.ID == id {
			delete(r.byCode, code)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type stubAppliedStore struct {
	slots map[string]string
}

func newStubAppliedStore() *stubAppliedStore {
	return &stubAppliedStore{slots: map[string]string{}}
}

func (s *stubAppliedStore) Put(_ context.Context, userID, code string) error {
	s.slots[userID] = code
	return nil
}

func (s *stubAppliedStore) Get(_ context.Context, userID string) (string, error) {
	return s.slots[userID], nil
}

func (s *stubAppliedStore) Clear(_ context.Context, userID string) error {
	delete(s.slots, userID)
	return nil
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newCouponService(t *testing.T, repo *stubCouponRepo, store *stubAppliedStore) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:  repo,
		Store: store,
		Now:   func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedCoupon(repo *stubCouponRepo, code string, percent int, mutate func(*models.Coupon)) *models.Coupon {
	coupon := &models.Coupon{
		ID:              uuid.New(),
		Code:            code,
		DiscountPercent: percent,
		IsActive:        true,
	}
	if mutate != nil {
		mutate(coupon)
	}
	repo.byCode[code] = coupon
	return coupon
}

func TestApplyStoresNormalizedCode(t *testing.T) {
	t.Parallel()

	repo := newStubCouponRepo()
	store := newStubAppliedStore()
	seedCoupon(repo, "SAVE20", 20, nil)
	svc := newCouponService(t, repo, store)
	userID := uuid.New()

	applied, err := svc.Apply(context.Background(), userID, ApplyCouponRequest{Code: "  save20 "}, 18000)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if applied.Code != "SAVE20" || applied.DiscountPercent != 20 {
		t.Fatalf("unexpected applied coupon: %+v", applied)
	}
	if store.slots[userID.String()] != "SAVE20" {
		t.Fatalf("expected slot to hold SAVE20, got %q", store.slots[userID.String()])
	}
}

func TestApplyUnknownCode(t *testing.T) {
	t.Parallel()

	svc := newCouponService(t, newStubCouponRepo(), newStubAppliedStore())
	_, err := svc.Apply(context.Background(), uuid.New(), ApplyCouponRequest{Code: "NOPE"}, 1000)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestApplyIneligibleCoupons(t *testing.T) {
	t.Parallel()

	repo := newStubCouponRepo()
	expired := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)
	maxUses := 5
	seedCoupon(repo, "INACTIVE", 10, func(c *models.Coupon) { c.IsActive = false })
	seedCoupon(repo, "EXPIRED", 10, func(c *models.Coupon) { c.ExpiresAt = &expired })
	seedCoupon(repo, "UPCOMING", 10, func(c *models.Coupon) { c.StartsAt = &future })
	seedCoupon(repo, "EXHAUSTED", 10, func(c *models.Coupon) {
		c.MaxUses = &maxUses
		c.UsedCount = 5
	})
	svc := newCouponService(t, repo, newStubAppliedStore())

	for _, code := range []string{"INACTIVE", "EXPIRED", "UPCOMING", "EXHAUSTED"} {
		_, err := svc.Apply(context.Background(), uuid.New(), ApplyCouponRequest{Code: code}, 10000)
		assertCode(t, err, pkgerrors.CodeStateConflict)
	}
}

func TestApplyFailureClearsPreviousCoupon(t *testing.T) {
	t.Parallel()

	repo := newStubCouponRepo()
	store := newStubAppliedStore()
	seedCoupon(repo, "SAVE20", 20, nil)
	expired := testNow.Add(-time.Hour)
	seedCoupon(repo, "EXPIRED", 10, func(c *models.Coupon) { c.ExpiresAt = &expired })
	svc := newCouponService(t, repo, store)
	userID := uuid.New()

	// Unknown code drops the coupon already on the cart.
	store.slots[userID.String()] = "SAVE20"
	_, err := svc.Apply(context.Background(), userID, ApplyCouponRequest{Code: "NOPE"}, 18000)
	assertCode(t, err, pkgerrors.CodeNotFound)
	if held, ok := store.slots[userID.String()]; ok {
		t.Fatalf("expected slot cleared after unknown code, still holds %q", held)
	}

	// So does a code that fails eligibility.
	store.slots[userID.String()] = "SAVE20"
	_, err = svc.Apply(context.Background(), userID, ApplyCouponRequest{Code: "EXPIRED"}, 18000)
	assertCode(t, err, pkgerrors.CodeStateConflict)
	if held, ok := store.slots[userID.String()]; ok {
		t.Fatalf("expected slot cleared after ineligible code, still holds %q", held)
	}
}

func TestApplyRejectsBlankCode(t *testing.T) {
	t.Parallel()

	store := newStubAppliedStore()
	svc := newCouponService(t, newStubCouponRepo(), store)
	userID := uuid.New()
	store.slots[userID.String()] = "SAVE20"

	for _, code := range []string{"", "   ", "\t"} {
		_, err := svc.Apply(context.Background(), userID, ApplyCouponRequest{Code: code}, 1000)
		assertCode(t, err, pkgerrors.CodeValidation)
	}
	// Local rejection never touches the slot.
	if store.slots[userID.String()] != "SAVE20" {
		t.Fatal("expected applied coupon untouched by blank input")
	}
}

func TestApplyBelowMinimumOrder(t *testing.T) {
	t.Parallel()

	repo := newStubCouponRepo()
	minOrder := 5000
	seedCoupon(repo, "BIGCART", 15, func(c *models.Coupon) { c.MinOrderCents = &minOrder })
	svc := newCouponService(t, repo, newStubAppliedStore())

	_, err := svc.Apply(context.Background(), uuid.New(), ApplyCouponRequest{Code: "BIGCART"}, 4999)
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestResolveReturnsAppliedCoupon(t *testing.T) {
	t.Parallel()

	repo := newStubCouponRepo()
	store := newStubAppliedStore()
	seedCoupon(repo, "SAVE20", 20, nil)
	svc := newCouponService(t, repo, store)
	userID := uuid.New()
	store.slots[userID.String()] = "SAVE20"

	code, percent, err := svc.Resolve(context.Background(), userID, 18000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if code != "SAVE20" || percent != 20 {
		t.Fatalf("unexpected resolution: %s %d", code, percent)
	}
}

func TestResolveEmptySlot(t *testing.T) {
	t.Parallel()

	svc := newCouponService(t, newStubCouponRepo(), newStubAppliedStore())

	code, percent, err := svc.Resolve(context.Background(), uuid.New(), 1000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if code != "" || percent != 0 {
		t.Fatalf("expected no coupon, got %s %d", code, percent)
	}
}

func TestResolveDropsStaleCoupon(t *testing.T) {
	t.Parallel()

	repo := newStubCouponRepo()
	store := newStubAppliedStore()
	expired := testNow.Add(-time.Minute)
	seedCoupon(repo, "GONE", 10, func(c *models.Coupon) { c.ExpiresAt = &expired })
	svc := newCouponService(t, repo, store)
	userID := uuid.New()
	store.slots[userID.String()] = "GONE"

	code, percent, err := svc.Resolve(context.Background(), userID, 10000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if code != "" || percent != 0 {
		t.Fatalf("expected stale coupon dropped, got %s %d", code, percent)
	}
	if _, ok := store.slots[userID.String()]; ok {
		t.Fatal("expected slot cleared")
	}
}

func TestResolveDropsDeletedCoupon(t *testing.T) {
	t.Parallel()

	store := newStubAppliedStore()
	svc := newCouponService(t, newStubCouponRepo(), store)
	userID := uuid.New()
	store.slots[userID.String()] = "REMOVED"

	code, _, err := svc.Resolve(context.Background(), userID, 10000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if code != "" {
		t.Fatalf("expected no coupon, got %s", code)
	}
	if _, ok := store.slots[userID.String()]; ok {
		t.Fatal("expected slot cleared")
	}
}

func TestRemoveClearsSlot(t *testing.T) {
	t.Parallel()

	store := newStubAppliedStore()
	svc := newCouponService(t, newStubCouponRepo(), store)
	userID := uuid.New()
	store.slots[userID.String()] = "SAVE20"

	if err := svc.Remove(context.Background(), userID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := store.slots[userID.String()]; ok {
		t.Fatal("expected slot cleared")
	}
}

func TestCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	t.Parallel()

	repo := newStubCouponRepo()
	svc := newCouponService(t, repo, newStubAppliedStore())

	dto, err := svc.Create(context.Background(), CreateCouponRequest{Code: "welcome10", DiscountPercent: 10})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.Code != "WELCOME10" {
		t.Fatalf("expected upper-cased code, got %q", dto.Code)
	}
	if !dto.IsActive {
		t.Fatal("expected coupon active by default")
	}

	_, err = svc.Create(context.Background(), CreateCouponRequest{Code: "WELCOME10", DiscountPercent: 10})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestCreateRejectsInvertedWindow(t *testing.T) {
	t.Parallel()

	svc := newCouponService(t, newStubCouponRepo(), newStubAppliedStore())
	start := testNow
	end := testNow.Add(-time.Hour)

	_, err := svc.Create(context.Background(), CreateCouponRequest{
		Code:            "BROKEN",
		DiscountPercent: 10,
		StartsAt:        &start,
		ExpiresAt:       &end,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateAndDelete(t *testing.T) {
	t.Parallel()

	repo := newStubCouponRepo()
	coupon := seedCoupon(repo, "SAVE20", 20, nil)
	svc := newCouponService(t, repo, newStubAppliedStore())

	percent := 25
	inactive := false
	dto, err := svc.Update(context.Background(), coupon.ID, UpdateCouponRequest{
		DiscountPercent: &percent,
		IsActive:        &inactive,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if dto.DiscountPercent != 25 || dto.IsActive {
		t.Fatalf("unexpected coupon after update: %+v", dto)
	}

	if err := svc.Delete(context.Background(), coupon.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = svc.Delete(context.Background(), coupon.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected app error, got %v", err)
	}
	if appErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code())
	}
}
