package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/sakif/devpulse/internal/model"
)

// CreateState stores a pending OAuth state.
func (s *Store) CreateState(ctx context.Context, state *model.OAuthState) error {
	if _, err := s.states().InsertOne(ctx, state); err != nil {
		return fmt.Errorf("mongodb: inserting oauth state: %w", err)
	}
	return nil
}

// TakeState removes the state document with FindOneAndDelete, which is atomic
// on a single document.
func (s *Store) TakeState(ctx context.Context, state string) (mo.Option[*model.OAuthState], error) {
	var taken model.OAuthState
	err := s.states().FindOneAndDelete(ctx, bson.M{"_id": state}).Decode(&taken)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return mo.None[*model.OAuthState](), nil
		}
		return mo.None[*model.OAuthState](), fmt.Errorf("mongodb: taking oauth state: %w", err)
	}

	taken.CreatedAt = taken.CreatedAt.UTC()
	taken.ExpiresAt = taken.ExpiresAt.UTC()
	return mo.Some(&taken), nil
}

// DeleteExpiredStates removes every state that expired at or before now.
func (s *Store) DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.states().DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("mongodb: deleting expired oauth states: %w", err)
	}
	return res.DeletedCount, nil
}
