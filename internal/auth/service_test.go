package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/internal/users"
	"github.com/trendora/trendora-backend/pkg/config"
	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/security"
)

type stubUserRepo struct {
	byEmail    map[string]*models.User
	byID       map[uuid.UUID]*models.User
	created    []users.CreateUserDTO
	createErr  error
	lastLogins []uuid.UUID
}

func (s *stubUserRepo) Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, dto)
	user := dto.ToModel()
	user.ID = uuid.New()
	return user, nil
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := s.byID[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.lastLogins = append(s.lastLogins, id)
	return nil
}

type stubSessions struct {
	generated []string
	revoked   []string
	rotateErr error
}

func (s *stubSessions) Generate(ctx context.Context, accessID string) (string, error) {
	s.generated = append(s.generated, accessID)
	return "refresh-" + accessID, nil
}

func (s *stubSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	return "new-access-id", "new-refresh-token", nil
}

func (s *stubSessions) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "trendora",
		ExpirationMinutes: 30,
	}
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func seedUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, testPasswordConfig())
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Ada",
		LastName:     "Nwosu",
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
}

func TestRegisterIssuesTokenPair(t *testing.T) {
	t.Parallel()

	repo := &stubUserRepo{}
	sessions := &stubSessions{}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
		PasswordConfig: testPasswordConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "Shopper@Example.com",
		Password:  "correct-horse",
		FirstName: "Ada",
		LastName:  "Nwosu",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if resp.User == nil || resp.User.Email != "shopper@example.com" {
		t.Fatalf("expected normalized email, got %+v", resp.User)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one create, got %d", len(repo.created))
	}
	if repo.created[0].Role != "" && repo.created[0].Role != enums.UserRoleCustomer {
		t.Fatalf("register must not assign elevated roles, got %s", repo.created[0].Role)
	}
	if len(sessions.generated) != 1 {
		t.Fatal("expected a session to be created")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	repo := &stubUserRepo{createErr: gorm.ErrDuplicatedKey}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessions{},
		JWTConfig:      testJWTConfig(),
		PasswordConfig: testPasswordConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Register(context.Background(), RegisterRequest{
		Email:     "shopper@example.com",
		Password:  "correct-horse",
		FirstName: "Ada",
		LastName:  "Nwosu",
	})
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	t.Parallel()

	user := seedUser(t, "shopper@example.com", "correct-horse")
	repo := &stubUserRepo{byEmail: map[string]*models.User{user.Email: user}}
	sessions := &stubSessions{}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
		PasswordConfig: testPasswordConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "Shopper@Example.com ",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if len(repo.lastLogins) != 1 || repo.lastLogins[0] != user.ID {
		t.Fatal("expected last login to be recorded")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	user := seedUser(t, "shopper@example.com", "correct-horse")
	repo := &stubUserRepo{byEmail: map[string]*models.User{user.Email: user}}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessions{},
		JWTConfig:      testJWTConfig(),
		PasswordConfig: testPasswordConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "shopper@example.com",
		Password: "wrong",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	t.Parallel()

	user := seedUser(t, "shopper@example.com", "correct-horse")
	user.IsActive = false
	repo := &stubUserRepo{byEmail: map[string]*models.User{user.Email: user}}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessions{},
		JWTConfig:      testJWTConfig(),
		PasswordConfig: testPasswordConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{
		Email:    "shopper@example.com",
		Password: "correct-horse",
	}); err == nil {
		t.Fatal("expected error for disabled account")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	t.Parallel()

	sessions := &stubSessions{}
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{},
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
		PasswordConfig: testPasswordConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.Logout(context.Background(), "access-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "access-1" {
		t.Fatal("expected session revocation")
	}
}
