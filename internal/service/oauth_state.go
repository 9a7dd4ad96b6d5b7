package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/devpulse/internal/apperror"
	"github.com/sakif/devpulse/internal/auth"
	"github.com/sakif/devpulse/internal/model"
	"github.com/sakif/devpulse/internal/repository"
)

// stateBytes is the entropy of an OAuth state value (hex encoded to 64 chars).
const stateBytes = 32

// StateManager issues and consumes single-use OAuth state values.
type StateManager struct {
	states repository.OAuthStateRepository
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewStateManager creates a StateManager whose states live for ttl.
func NewStateManager(states repository.OAuthStateRepository, ttl time.Duration, logger *slog.Logger) *StateManager {
	return &StateManager{
		states: states,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Issue stores a fresh state. accountID is the signed-in account starting a
// "connect GitHub" flow, or "" for a plain sign-in.
func (m *StateManager) Issue(ctx context.Context, accountID string) (string, error) {
	value, err := auth.RandomToken(stateBytes)
	if err != nil {
		return "", fmt.Errorf("service/state: generating state: %w", err)
	}

	now := m.now().UTC()
	state := &model.OAuthState{
		State:     value,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.states.CreateState(ctx, state); err != nil {
		return "", fmt.Errorf("service/state: storing state: %w", err)
	}

	return value, nil
}

// Consume takes a state out of the store.
//
// An unknown (or already consumed) value is apperror.InvalidState. An expired
// value is apperror.ExpiredState; it has been deleted all the same, so a
// retry with it is InvalidState.
func (m *StateManager) Consume(ctx context.Context, value string) (*model.OAuthState, error) {
	if value == "" {
		return nil, apperror.InvalidState()
	}

	taken, err := m.states.TakeState(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("service/state: taking state: %w", err)
	}
	if !taken.IsPresent() {
		return nil, apperror.InvalidState()
	}

	state := taken.MustGet()
	if state.Expired(m.now()) {
		return nil, apperror.ExpiredState()
	}
	return state, nil
}

// PurgeExpired deletes states whose expiry has passed.
func (m *StateManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.states.DeleteExpiredStates(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("service/state: purging: %w", err)
	}
	if n > 0 {
		m.logger.Debug("purged expired oauth states", slog.Int64("count", n))
	}
	return n, nil
}
