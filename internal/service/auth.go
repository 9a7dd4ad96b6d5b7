// Package service holds the business rules of devpulse.
//
//	handler (HTTP) → service (rules) → repository (store)
//	                               ↘ auth (sessions, passwords), github (API)
//
// Services never read requests or write cookies; they take plain inputs and
// return models, sessions and *apperror.AppError values.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/devpulse/internal/apperror"
	"github.com/sakif/devpulse/internal/auth"
	"github.com/sakif/devpulse/internal/model"
	"github.com/sakif/devpulse/internal/repository"
	"github.com/sakif/devpulse/internal/validate"
)

// AuthService registers and signs in password accounts and resolves session
// tokens back to accounts.
type AuthService struct {
	accounts  repository.AccountRepository
	sessions  *auth.SessionIssuer
	passwords *auth.PasswordService
	validator *validate.Validator
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	accounts repository.AccountRepository,
	sessions *auth.SessionIssuer,
	passwords *auth.PasswordService,
	validator *validate.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts:  accounts,
		sessions:  sessions,
		passwords: passwords,
		validator: validator,
		logger:    logger,
	}
}

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
	FullName string `json:"fullName" validate:"required,max=100"`
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult bundles the resolved account with the session issued for it,
// so the handler can set cookies and respond in one step.
type AuthResult struct {
	Account *model.Account
	Session *auth.Session
}

// NormalizeEmail trims and lower-cases an address. Every lookup and insert
// goes through it, which is what makes email uniqueness case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account and signs it in.
//
// The pre-check gives a fast, friendly duplicate error; the store's unique
// index still decides races and reports the same apperror.DuplicateEmail.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.accounts.FindAccountByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}
	if existing.IsPresent() {
		return nil, apperror.DuplicateEmail(in.Email)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "password must be at most 72 bytes long")
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	account := &model.Account{
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating account: %w", err)
	}

	s.logger.Info("account registered", slog.String("accountID", account.ID))

	return s.issue(account)
}

// Login verifies a password and signs the account in.
//
// Unknown email, OAuth-only account, inactive account and wrong password all
// return the same apperror.InvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	found, err := s.accounts.FindAccountByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up account: %w", err)
	}
	if !found.IsPresent() {
		return nil, apperror.InvalidCredentials()
	}

	account := found.MustGet()
	if !account.HasPassword() || !account.IsActive {
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(account.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", account.ID, err)
	}

	s.logger.Info("account signed in", slog.String("accountID", account.ID))

	return s.issue(account)
}

// CurrentAccount resolves a session token to its account.
func (s *AuthService) CurrentAccount(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, apperror.Unauthenticated()
	}

	claims, err := s.sessions.Verify(token)
	if err != nil {
		s.logger.Debug("rejected session token", slog.String("error", err.Error()))
		return nil, apperror.InvalidToken()
	}

	account, err := s.accounts.GetAccountByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.AccountNotFound()
		}
		return nil, fmt.Errorf("service/auth: loading account %s: %w", claims.AccountID(), err)
	}
	if !account.IsActive {
		return nil, apperror.AccountNotFound()
	}

	return account, nil
}

func (s *AuthService) issue(account *model.Account) (*AuthResult, error) {
	session, err := s.sessions.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session for %s: %w", account.ID, err)
	}
	return &AuthResult{Account: account, Session: session}, nil
}
