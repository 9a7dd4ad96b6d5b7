package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/samber/mo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sakif/devpulse/internal/apperror"
	"github.com/sakif/devpulse/internal/model"
)

const (
	emailIndexName    = "email_unique"
	githubIDIndexName = "github_id_unique"
)

func (s *Store) ensureIndexes(ctx context.Context) error {
	accountIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(emailIndexName),
		},
		{
			// Partial: unlinked accounts have no github sub-document and must
			// not collide on a missing key.
			Keys: bson.D{{Key: "github.id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName(githubIDIndexName).
				SetPartialFilterExpression(bson.M{"github.id": bson.M{"$exists": true}}),
		},
	}
	if _, err := s.accounts().Indexes().CreateMany(ctx, accountIndexes); err != nil {
		return fmt.Errorf("mongodb: creating account indexes: %w", err)
	}

	stateIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	if _, err := s.states().Indexes().CreateMany(ctx, stateIndexes); err != nil {
		return fmt.Errorf("mongodb: creating oauth state indexes: %w", err)
	}

	return nil
}

// CreateAccount inserts a new account, generating its ID and timestamps.
func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	now := time.Now().UTC()
	account.ID = xid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	if _, err := s.accounts().InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateAccountError(err, account.Email)
		}
		return fmt.Errorf("mongodb: inserting account: %w", err)
	}
	return nil
}

// GetAccountByID retrieves an account by its internal ID.
func (s *Store) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := s.accounts().FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("mongodb: getting account %s: %w", id, err)
	}
	return &account, nil
}

// FindAccountByEmail looks up an account by its normalized email.
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (mo.Option[*model.Account], error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindAccountByGitHubID looks up the account linked to a GitHub user ID.
func (s *Store) FindAccountByGitHubID(ctx context.Context, githubID int64) (mo.Option[*model.Account], error) {
	return s.findOne(ctx, bson.M{"github.id": githubID})
}

// LinkGitHub replaces the github sub-document of an account.
func (s *Store) LinkGitHub(ctx context.Context, accountID string, identity model.GitHubIdentity) error {
	identity.LinkedAt = identity.LinkedAt.UTC()

	res, err := s.accounts().UpdateOne(ctx,
		bson.M{"_id": accountID},
		bson.M{"$set": bson.M{
			"github":     identity,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.GitHubAlreadyLinked("this GitHub account is already linked to another account")
		}
		return fmt.Errorf("mongodb: linking github to account %s: %w", accountID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("account", accountID)
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (mo.Option[*model.Account], error) {
	var account model.Account
	err := s.accounts().FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return mo.None[*model.Account](), nil
		}
		return mo.None[*model.Account](), fmt.Errorf("mongodb: finding account: %w", err)
	}
	return mo.Some(&account), nil
}

// duplicateAccountError tells the two unique indexes apart by name; the
// server names the violated index in the write error message.
func duplicateAccountError(err error, email string) error {
	if strings.Contains(err.Error(), githubIDIndexName) {
		return apperror.GitHubAlreadyLinked("this GitHub account is already linked to another account")
	}
	return apperror.DuplicateEmail(email)
}
