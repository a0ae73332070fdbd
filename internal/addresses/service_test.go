package addresses

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/db/models"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
)

type stubRepo struct {
	rows map[uuid.UUID]*models.Address
	seq  int
}

func newStubRepo() *stubRepo {
	return &stubRepo{rows: map[uuid.UUID]*models.Address{}}
}

func (s *stubRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var out []models.Address
	for _, a := range s.rows {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *stubRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*models.Address, error) {
	a, ok := s.rows[id]
	if !ok || a.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *stubRepo) Create(ctx context.Context, address *models.Address) error {
	address.ID = uuid.New()
	s.seq++
	address.CreatedAt = time.Unix(int64(s.seq), 0)
	s.rows[address.ID] = address
	return nil
}

func (s *stubRepo) Save(ctx context.Context, address *models.Address) error {
	if _, ok := s.rows[address.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.rows[address.ID] = address
	return nil
}

func (s *stubRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	a, ok := s.rows[id]
	if !ok || a.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *stubRepo) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	a, ok := s.rows[id]
	if !ok || a.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	a.IsDefault = true
	return nil
}

func (s *stubRepo) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	for _, a := range s.rows {
		if a.UserID == userID {
			a.IsDefault = false
		}
	}
	return nil
}

func (s *stubRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, a := range s.rows {
		if a.UserID == userID {
			count++
		}
	}
	return count, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo *stubRepo) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Tx:     stubTx{},
		TxRepo: func(tx *gorm.DB) repository { return repo },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func sampleRequest(isDefault bool) UpsertAddressRequest {
	return UpsertAddressRequest{
		FullName:   "Ada Nwosu",
		Line1:      "12 Market Street",
		City:       "Lagos",
		State:      "LA",
		PostalCode: "100001",
		Country:    "NG",
		IsDefault:  isDefault,
	}
}

func defaultCount(repo *stubRepo, userID uuid.UUID) int {
	count := 0
	for _, a := range repo.rows {
		if a.UserID == userID && a.IsDefault {
			count++
		}
	}
	return count
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo)
	userID := uuid.New()

	dto, err := svc.Create(context.Background(), userID, sampleRequest(false))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !dto.IsDefault {
		t.Fatal("first address must be default")
	}
}

func TestCreateDefaultDemotesOthers(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo)
	userID := uuid.New()

	first, err := svc.Create(context.Background(), userID, sampleRequest(false))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}

	second, err := svc.Create(context.Background(), userID, sampleRequest(true))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	if !second.IsDefault {
		t.Fatal("second address should be default")
	}
	if repo.rows[first.ID].IsDefault {
		t.Fatal("first address should have been demoted")
	}
	if got := defaultCount(repo, userID); got != 1 {
		t.Fatalf("expected exactly one default, got %d", got)
	}
}

func TestSetDefaultMovesFlag(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo)
	userID := uuid.New()

	first, _ := svc.Create(context.Background(), userID, sampleRequest(false))
	second, _ := svc.Create(context.Background(), userID, sampleRequest(false))

	dto, err := svc.SetDefault(context.Background(), userID, second.ID)
	if err != nil {
		t.Fatalf("set default: %v", err)
	}
	if !dto.IsDefault {
		t.Fatal("expected promoted address to be default")
	}
	if repo.rows[first.ID].IsDefault {
		t.Fatal("previous default should have been demoted")
	}
	if got := defaultCount(repo, userID); got != 1 {
		t.Fatalf("expected exactly one default, got %d", got)
	}
}

func TestDeleteDefaultPromotesOldest(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo)
	userID := uuid.New()

	first, _ := svc.Create(context.Background(), userID, sampleRequest(false))
	second, _ := svc.Create(context.Background(), userID, sampleRequest(false))

	if err := svc.Delete(context.Background(), userID, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !repo.rows[second.ID].IsDefault {
		t.Fatal("remaining address should have been promoted to default")
	}
}

func TestAddressOwnershipEnforced(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo)
	owner := uuid.New()
	intruder := uuid.New()

	created, _ := svc.Create(context.Background(), owner, sampleRequest(false))

	_, err := svc.Update(context.Background(), intruder, created.ID, sampleRequest(false))
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for foreign address, got %v", err)
	}

	if err := svc.Delete(context.Background(), intruder, created.ID); err == nil {
		t.Fatal("expected delete of foreign address to fail")
	}
}
