package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/devpulse/internal/apperror"
	"github.com/sakif/devpulse/internal/model"
)

func validRegister() RegisterInput {
	return RegisterInput{
		Email:    "Ada@Example.com ",
		Password: "correct-horse",
		FullName: "Ada Lovelace",
	}
}

// ===== REGISTER =====

func TestRegister_Success(t *testing.T) {
	store := newMemStore()
	svc := newTestAuthService(t, store)

	res, err := svc.Register(context.Background(), validRegister())
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if res.Account.ID == "" {
		t.Error("account ID should be set")
	}
	if res.Account.Email != "ada@example.com" {
		t.Errorf("Email = %q, want normalized ada@example.com", res.Account.Email)
	}
	if !res.Account.HasPassword() || res.Account.PasswordHash == "correct-horse" {
		t.Error("password should be stored hashed")
	}
	if !res.Account.IsActive {
		t.Error("new account should be active")
	}
	if res.Session == nil || res.Session.Token == "" || res.Session.CSRFToken == "" {
		t.Errorf("Session = %+v, want token and csrf token", res.Session)
	}
}

func TestRegister_DuplicateEmailIgnoresCase(t *testing.T) {
	store := newMemStore()
	svc := newTestAuthService(t, store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, validRegister()); err != nil {
		t.Fatalf("first Register() error: %v", err)
	}

	in := validRegister()
	in.Email = "ADA@EXAMPLE.COM"
	_, err := svc.Register(ctx, in)

	assertCode(t, err, apperror.CodeDuplicateEmail)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Error("duplicate email should wrap ErrConflict")
	}
	if store.accountCount() != 1 {
		t.Errorf("accounts = %d, want 1", store.accountCount())
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*RegisterInput)
		field string
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"short password", func(in *RegisterInput) { in.Password = "short" }, "password"},
		{"password over 72 bytes", func(in *RegisterInput) { in.Password = strings.Repeat("é", 40) }, "password"},
		{"missing name", func(in *RegisterInput) { in.FullName = "   " }, "fullName"},
		{"long name", func(in *RegisterInput) { in.FullName = strings.Repeat("a", 101) }, "fullName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestAuthService(t, store)

			in := validRegister()
			tt.edit(&in)
			_, err := svc.Register(context.Background(), in)

			assertCode(t, err, apperror.CodeValidation)
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
			if store.accountCount() != 0 {
				t.Error("nothing should be stored on validation failure")
			}
		})
	}
}

// ===== LOGIN =====

func TestLogin_Success(t *testing.T) {
	store := newMemStore()
	svc := newTestAuthService(t, store)
	ctx := context.Background()

	reg, err := svc.Register(ctx, validRegister())
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	res, err := svc.Login(ctx, LoginInput{Email: " ADA@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if res.Account.ID != reg.Account.ID {
		t.Errorf("logged in as %q, want %q", res.Account.ID, reg.Account.ID)
	}
	if res.Session.Token == reg.Session.Token && res.Session.CSRFToken == reg.Session.CSRFToken {
		t.Error("login should issue a fresh session")
	}
}

// Every failure mode gives the same error so callers cannot probe which
// emails exist.
func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	store := newMemStore()
	svc := newTestAuthService(t, store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, validRegister()); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	// GitHub-only account: no password hash.
	oauthOnly := &model.Account{
		Email:    "octo@example.com",
		FullName: "octo",
		IsActive: true,
		GitHub:   &model.GitHubIdentity{ID: 7, Username: "octo", AccessToken: "gho_x"},
	}
	if err := store.CreateAccount(ctx, oauthOnly); err != nil {
		t.Fatalf("CreateAccount() error: %v", err)
	}
	// Inactive password account.
	inactive, err := svc.Register(ctx, RegisterInput{Email: "off@example.com", Password: "correct-horse", FullName: "Off"})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	store.accounts[inactive.Account.ID].IsActive = false

	tests := []struct {
		name string
		in   LoginInput
	}{
		{"unknown email", LoginInput{Email: "nobody@example.com", Password: "correct-horse"}},
		{"wrong password", LoginInput{Email: "ada@example.com", Password: "wrong-horse"}},
		{"oauth-only account", LoginInput{Email: "octo@example.com", Password: "anything-at-all"}},
		{"inactive account", LoginInput{Email: "off@example.com", Password: "correct-horse"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.in)
			assertCode(t, err, apperror.CodeInvalidCredentials)
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Error("should wrap ErrUnauthorized")
			}
		})
	}
}

func TestLogin_Validation(t *testing.T) {
	svc := newTestAuthService(t, newMemStore())

	_, err := svc.Login(context.Background(), LoginInput{Email: "ada@example.com"})
	assertCode(t, err, apperror.CodeValidation)
}

func TestLogin_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.failFind = errors.New("connection reset")
	svc := newTestAuthService(t, store)

	_, err := svc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		t.Errorf("store failure should not become an AppError, got code %q", appErr.Code)
	}
}

// ===== CURRENT ACCOUNT =====

func TestCurrentAccount(t *testing.T) {
	store := newMemStore()
	svc := newTestAuthService(t, store)
	ctx := context.Background()

	reg, err := svc.Register(ctx, validRegister())
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	got, err := svc.CurrentAccount(ctx, reg.Session.Token)
	if err != nil {
		t.Fatalf("CurrentAccount() error: %v", err)
	}
	if got.ID != reg.Account.ID {
		t.Errorf("ID = %q, want %q", got.ID, reg.Account.ID)
	}
}

func TestCurrentAccount_Rejections(t *testing.T) {
	store := newMemStore()
	svc := newTestAuthService(t, store)
	ctx := context.Background()

	reg, err := svc.Register(ctx, validRegister())
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	// A token for an account that is later removed.
	ghost, err := svc.Register(ctx, RegisterInput{Email: "ghost@example.com", Password: "correct-horse", FullName: "Ghost"})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	delete(store.accounts, ghost.Account.ID)

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.CurrentAccount(ctx, "")
		assertCode(t, err, apperror.CodeUnauthenticated)
	})
	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.CurrentAccount(ctx, "not.a.jwt")
		assertCode(t, err, apperror.CodeInvalidToken)
	})
	t.Run("tampered token", func(t *testing.T) {
		_, err := svc.CurrentAccount(ctx, reg.Session.Token+"x")
		assertCode(t, err, apperror.CodeInvalidToken)
	})
	t.Run("deleted account", func(t *testing.T) {
		_, err := svc.CurrentAccount(ctx, ghost.Session.Token)
		assertCode(t, err, apperror.CodeAccountNotFound)
	})
	t.Run("inactive account", func(t *testing.T) {
		store.accounts[reg.Account.ID].IsActive = false
		_, err := svc.CurrentAccount(ctx, reg.Session.Token)
		assertCode(t, err, apperror.CodeAccountNotFound)
	})
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Mixed.Case@Example.COM\t"); got != "mixed.case@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}
