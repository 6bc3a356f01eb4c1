package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	userID := uuid.New()
	token, err := issuer.Issue(userID, "nurse.kim", "STAFF")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != userID.String() {
		t.Errorf("subject = %q, want %q", claims.Subject, userID)
	}
	if claims.Username != "nurse.kim" || claims.Role != "STAFF" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)

	issued := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issued }

	token, err := issuer.Issue(uuid.New(), "nurse.kim", "STAFF")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	issuer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify after expiry = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a", time.Hour).Issue(uuid.New(), "nurse.kim", "STAFF")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := NewTokenIssuer("secret-b", time.Hour).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestRequireTokenMiddleware(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	var seen *Claims
	handler := RequireToken(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/appointments", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	// Garbage token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	// Valid token.
	token, err := issuer.Issue(uuid.New(), "nurse.kim", "STAFF")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("valid token: status = %d, want 204", rec.Code)
	}
	if seen == nil || seen.Username != "nurse.kim" {
		t.Errorf("claims in context = %+v", seen)
	}
}

type memUserRepo struct {
	users map[string]*User
}

func (m *memUserRepo) CreateUser(_ context.Context, u *User) (*User, error) {
	if _, ok := m.users[u.Username]; ok {
		return nil, ErrDuplicateUser
	}
	created := *u
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	m.users[u.Username] = &created
	return &created, nil
}

func (m *memUserRepo) GetUserByUsername(_ context.Context, username string) (*User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func TestRegisterAndLogin(t *testing.T) {
	repo := &memUserRepo{users: map[string]*User{}}
	svc := NewService(repo, NewTokenIssuer("test-secret", time.Hour), zerolog.Nop())

	ctx := context.Background()
	if _, err := svc.Register(ctx, "dr.okafor", "s3cure-pass", "DOCTOR"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Register(ctx, "dr.okafor", "another-pass", "DOCTOR"); !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("duplicate Register = %v, want ErrDuplicateUser", err)
	}

	if _, err := svc.Register(ctx, "dr.short", "short", "DOCTOR"); err == nil {
		t.Error("Register with short password succeeded, want error")
	}

	token, err := svc.Login(ctx, "dr.okafor", "s3cure-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Error("Login returned empty token")
	}

	if _, err := svc.Login(ctx, "dr.okafor", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password Login = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody", "s3cure-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user Login = %v, want ErrInvalidCredentials", err)
	}
}
